package callflow

import (
	"strings"

	"callserver/internal/campaign"
	"callserver/internal/telephony"
)

// ttsLanguages are the locales the carrier's speech engine accepts.
// Anything else falls back to its bare language code, then to en.
var ttsLanguages = map[string]bool{
	"da-DK": true, "de-DE": true, "en-AU": true, "en-CA": true,
	"en-GB": true, "en-IN": true, "en-US": true, "ca-ES": true,
	"es-ES": true, "es-MX": true, "fi-FI": true, "fr-CA": true,
	"fr-FR": true, "it-IT": true, "ja-JP": true, "ko-KR": true,
	"nb-NO": true, "nl-NL": true, "pl-PL": true, "pt-BR": true,
	"pt-PT": true, "ru-RU": true, "sv-SE": true, "zh-CN": true,
	"zh-HK": true, "zh-TW": true,
	"en": true, "es": true, "fr": true, "de": true, "it": true, "pl": true,
}

func ttsLanguage(lang string) string {
	if ttsLanguages[lang] {
		return lang
	}
	if base, _, ok := strings.Cut(lang, "-"); ok && ttsLanguages[base] {
		return base
	}
	return "en"
}

// renderTemplate substitutes {{name}} placeholders in prompt text.
func renderTemplate(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// verbSink is anything TwiML verbs can be appended to: a response or
// a gather.
type verbSink interface {
	Append(verbs ...any)
}

// playOrSay appends the prompt as a Play verb for recorded audio or a
// rendered Say verb for text.
func playOrSay(sink verbSink, p campaign.Prompt, lang string, vars map[string]string) {
	if p.FileURL != "" {
		sink.Append(telephony.Play{URL: p.FileURL})
		return
	}
	if p.TTS != "" {
		sink.Append(telephony.Say{
			Voice:    "alice",
			Language: ttsLanguage(lang),
			Text:     renderTemplate(p.TTS, vars),
		})
		return
	}
	// a missing prompt should be audible during campaign setup, not
	// silent
	sink.Append(telephony.Say{Voice: "alice", Language: "en", Text: "Error: no recording defined"})
}
