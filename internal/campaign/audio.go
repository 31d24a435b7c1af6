package campaign

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Message keys used by the call flow. Campaigns may override any of
// them with recorded audio or custom text.
const (
	MsgIntro            = "msg_intro"
	MsgIntroConfirm     = "msg_intro_confirm"
	MsgIntroLocation    = "msg_intro_location"
	MsgLocation         = "msg_location"
	MsgUnparsedLocation = "msg_unparsed_location"
	MsgInvalidLocation  = "msg_invalid_location"
	MsgCallBlockIntro   = "msg_call_block_intro"
	MsgTargetIntro      = "msg_target_intro"
	MsgTargetBusy       = "msg_target_busy"
	MsgBetweenCalls     = "msg_between_calls"
	MsgFinalThanks      = "msg_final_thanks"
	MsgPromptSchedule   = "msg_prompt_schedule"
	MsgScheduleStart    = "msg_schedule_start"
	MsgScheduleStop     = "msg_schedule_stop"
	MsgGoodbye          = "msg_goodbye"
)

// Prompt is one playable message: either synthesized text, possibly
// with {{variable}} placeholders, or a recorded audio URL.
type Prompt struct {
	TTS     string `yaml:"tts"`
	FileURL string `yaml:"file_url"`
}

func (p Prompt) Empty() bool { return p.TTS == "" && p.FileURL == "" }

// defaultPrompts are the fallback messages when neither the catalog
// file nor the campaign overrides a key.
var defaultPrompts = map[string]Prompt{
	MsgIntro:            {TTS: "Welcome to the call tool."},
	MsgIntroConfirm:     {TTS: "Press any key to continue."},
	MsgLocation:         {TTS: "Please enter your zip code on the keypad."},
	MsgUnparsedLocation: {TTS: "We were unable to understand that location. Please try again."},
	MsgInvalidLocation:  {TTS: "We were unable to find a representative for your location. Goodbye."},
	MsgCallBlockIntro:   {TTS: "We will connect you to each of your representatives in turn. This call may be monitored."},
	MsgTargetIntro:      {TTS: "Connecting you to {{target.title}} {{target.name}}."},
	MsgTargetBusy:       {TTS: "The office you called was busy or did not answer."},
	MsgBetweenCalls:     {TTS: "Press star to continue to your next representative."},
	MsgFinalThanks:      {TTS: "Thank you for calling. Goodbye."},
	MsgPromptSchedule:   {TTS: "Press 1 to schedule a daily reminder call for this campaign."},
	MsgScheduleStart:    {TTS: "You are signed up for daily reminder calls. Call this number again to cancel."},
	MsgScheduleStop:     {TTS: "Your daily reminder calls are canceled."},
	MsgGoodbye:          {TTS: "Goodbye."},
}

// Catalog resolves message keys to prompts. A deployment can override
// the built-in defaults with a YAML file mapping keys to prompts.
type Catalog struct {
	prompts map[string]Prompt
}

func DefaultCatalog() *Catalog {
	return &Catalog{prompts: defaultPrompts}
}

// LoadCatalog merges a YAML prompt file over the built-in defaults.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	var overrides map[string]Prompt
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	merged := make(map[string]Prompt, len(defaultPrompts)+len(overrides))
	for k, v := range defaultPrompts {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return &Catalog{prompts: merged}, nil
}

func (c *Catalog) Get(key string) Prompt {
	return c.prompts[key]
}

// AudioOrDefault returns the campaign's override for a message key, or
// the catalog default. The bool reports whether the default was used.
func (c *Campaign) AudioOrDefault(key string, catalog *Catalog) (Prompt, bool) {
	if p, ok := c.Audio[key]; ok && !p.Empty() {
		return p, false
	}
	return catalog.Get(key), true
}
