// Package callflow implements the stateless webhook chain that walks a
// caller through a campaign's targets. All per-call state rides in the
// webhook URLs; the server keeps none between requests.
package callflow

import (
	"net/url"
	"strconv"
	"strings"
)

// CallState is the continuation passed between webhook steps. It is
// serialized into every action, redirect and callback URL, so field
// names are part of the wire contract with in-flight calls.
type CallState struct {
	CampaignID string
	SessionID  int64

	UserPhone    string
	UserCountry  string
	UserLocation string

	// TargetIDs is the resolved target uid list, in call order.
	TargetIDs []string

	// CallIndex is the position in TargetIDs currently being dialed.
	CallIndex int

	// Attempt counts location gather retries within one call.
	Attempt int

	// Scheduled marks that the caller already answered the reminder
	// subscription prompt this session.
	Scheduled bool

	// TriedOffices holds office uids already dialed for the current
	// target, for busy-retry office selection.
	TriedOffices []string
}

// ParseState rehydrates a CallState from webhook parameters.
func ParseState(v url.Values) CallState {
	s := CallState{
		CampaignID:   v.Get("campaignId"),
		UserPhone:    v.Get("userPhone"),
		UserCountry:  strings.ToUpper(v.Get("userCountry")),
		UserLocation: v.Get("userLocation"),
		TargetIDs:    v["targetIds"],
		TriedOffices: v["triedOffices"],
	}
	s.SessionID, _ = strconv.ParseInt(v.Get("sessionId"), 10, 64)
	s.CallIndex, _ = strconv.Atoi(v.Get("call_index"))
	s.Attempt, _ = strconv.Atoi(v.Get("attempt"))
	s.Scheduled = v.Get("scheduled") == "1"
	return s
}

// Values serializes the state back to URL parameters. Zero-valued
// optional fields are omitted to keep the URLs short.
func (s CallState) Values() url.Values {
	v := url.Values{}
	if s.CampaignID != "" {
		v.Set("campaignId", s.CampaignID)
	}
	if s.SessionID != 0 {
		v.Set("sessionId", strconv.FormatInt(s.SessionID, 10))
	}
	if s.UserPhone != "" {
		v.Set("userPhone", s.UserPhone)
	}
	if s.UserCountry != "" {
		v.Set("userCountry", s.UserCountry)
	}
	if s.UserLocation != "" {
		v.Set("userLocation", s.UserLocation)
	}
	for _, id := range s.TargetIDs {
		v.Add("targetIds", id)
	}
	if s.CallIndex != 0 {
		v.Set("call_index", strconv.Itoa(s.CallIndex))
	}
	if s.Attempt != 0 {
		v.Set("attempt", strconv.Itoa(s.Attempt))
	}
	if s.Scheduled {
		v.Set("scheduled", "1")
	}
	for _, uid := range s.TriedOffices {
		v.Add("triedOffices", uid)
	}
	return v
}

// URL builds a webhook URL carrying this state.
func (s CallState) URL(base, path string) string {
	u := base + path
	if q := s.Values().Encode(); q != "" {
		u += "?" + q
	}
	return u
}
