// Package campaign holds the campaign model and its target
// materialization path.
package campaign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"callserver/internal/political"
)

var ErrNotFound = errors.New("campaign: not found")

// Campaign status codes, stored as small integers.
const (
	StatusArchived = 0
	StatusPaused   = 1
	StatusLive     = 2
)

var statusNames = map[int]string{
	StatusArchived: "archived",
	StatusPaused:   "paused",
	StatusLive:     "live",
}

type Campaign struct {
	ID        int64
	CreatedAt time.Time

	Name        string
	CountryCode string
	Type        string
	Region      string
	Subtype     string
	Language    string

	SegmentBy      string
	LocateBy       string
	IncludeSpecial string
	TargetOrdering string
	TargetOffices  string

	// CallMaximum caps how many targets one session dials through.
	// Zero means unlimited.
	CallMaximum int

	AllowCallIn    bool
	PromptSchedule bool

	StatusCode int

	// PhoneNumbers are the campaign's outbound caller ids, E.164.
	PhoneNumbers []string

	// CustomTargets holds admin-chosen target uids in display order.
	CustomTargets []string

	// Audio holds per-campaign prompt overrides keyed by message key.
	Audio map[string]Prompt

	// EmbedScript and EmbedRedirect configure the embedded web form
	// that initiates calls; both are echoed back to it on create.
	EmbedScript   string
	EmbedRedirect string
}

func (c *Campaign) Status() string {
	return statusNames[c.StatusCode]
}

func (c *Campaign) IsLive() bool {
	return c.StatusCode == StatusLive
}

// LanguageCode combines the campaign language and country into a TTS
// language tag, like en-US.
func (c *Campaign) LanguageCode() string {
	if c.Language != "" && c.CountryCode != "" {
		return fmt.Sprintf("%s-%s", strings.ToLower(c.Language), strings.ToUpper(c.CountryCode))
	}
	return "en-US"
}

// PhoneNumbersFor narrows the campaign's caller ids to those dialable
// from a caller's region, so US callers see a US number even on
// multi-country campaigns. An unknown region returns all numbers.
func (c *Campaign) PhoneNumbersFor(regionCode string) []string {
	if regionCode == "" {
		return c.PhoneNumbers
	}
	countryCode := phonenumbers.GetCountryCodeForRegion(strings.ToUpper(regionCode))
	if countryCode == 0 {
		return c.PhoneNumbers
	}
	var out []string
	for _, raw := range c.PhoneNumbers {
		num, err := phonenumbers.Parse(raw, "")
		if err != nil {
			continue
		}
		if int(num.GetCountryCode()) == countryCode {
			out = append(out, raw)
		}
	}
	if out == nil {
		return c.PhoneNumbers
	}
	return out
}

// Spec projects the campaign onto the slice target resolution needs.
func (c *Campaign) Spec() political.CampaignSpec {
	return political.CampaignSpec{
		ID:             c.ID,
		Country:        c.CountryCode,
		Type:           c.Type,
		Subtype:        c.Subtype,
		Region:         c.Region,
		SegmentBy:      c.SegmentBy,
		LocateBy:       c.LocateBy,
		IncludeSpecial: c.IncludeSpecial,
		TargetOrder:    c.TargetOrdering,
		CustomTargets:  append([]string(nil), c.CustomTargets...),
	}
}

// RequiredFields describes what an embedding form must collect before
// it can start a call.
func (c *Campaign) RequiredFields() map[string]string {
	fields := map[string]string{"userPhone": c.CountryCode}
	if c.SegmentBy == political.SegmentByLocation {
		fields["userLocation"] = c.LocateBy
	}
	return fields
}
