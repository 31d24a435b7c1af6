package callflow

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyaruka/phonenumbers"

	"callserver/internal/blocklist"
	"callserver/internal/cache"
	"callserver/internal/campaign"
	"callserver/internal/political"
	"callserver/internal/schedule"
	"callserver/internal/session"
	"callserver/internal/telephony"
)

// Config carries the deployment knobs the flow needs.
type Config struct {
	// BaseURL is the externally reachable server root the carrier
	// fetches webhooks from, without trailing slash.
	BaseURL string

	// RingTimeout is how long target calls ring, in seconds.
	RingTimeout int

	// TimeLimit caps the length of one bridged call, in seconds.
	TimeLimit int

	// LogPhoneNumbers opts into storing raw caller numbers alongside
	// their hashes.
	LogPhoneNumbers bool
}

// Handlers serves the webhook chain. Every dependency is injected;
// the handlers themselves hold no per-call state.
type Handlers struct {
	Campaigns campaign.Store
	Targets   campaign.TargetStore
	Sessions  session.Store
	Cache     cache.Store
	Political *political.Registry
	Carrier   telephony.Carrier
	Blocklist blocklist.Gate
	Schedules *schedule.Service
	Prompts   *campaign.Catalog
	Limiter   Limiter

	Cfg  Config
	Log  *slog.Logger
	Rand *rand.Rand
}

// Register mounts the webhook chain. The carrier may use GET or POST
// depending on number configuration, so every route accepts both.
func (h *Handlers) Register(r gin.IRouter) {
	for path, fn := range map[string]gin.HandlerFunc{
		"/call/create":          h.Create,
		"/call/incoming":        h.Incoming,
		"/call/connection":      h.Connection,
		"/call/location_parse":  h.LocationParse,
		"/call/schedule_parse":  h.ScheduleParse,
		"/call/make_calls":      h.MakeCalls,
		"/call/make_single":     h.MakeSingle,
		"/call/complete":        h.Complete,
		"/call/complete_status": h.StatusCallback,
		"/call/status_inbound":  h.StatusInbound,
	} {
		r.GET(path, fn)
		r.POST(path, fn)
	}
}

/* ===================== request plumbing ===================== */

// parseParams rehydrates the call state and loads its campaign. On
// failure it writes the error response and reports false.
func (h *Handlers) parseParams(c *gin.Context, inbound bool) (CallState, *campaign.Campaign, bool) {
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return CallState{}, nil, false
	}
	state := ParseState(c.Request.Form)

	if state.UserPhone == "" && !inbound {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userPhone required"})
		return CallState{}, nil, false
	}
	if state.CampaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaignId required"})
		return CallState{}, nil, false
	}

	camp, err := h.Campaigns.Lookup(c.Request.Context(), state.CampaignID)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid campaignId " + state.CampaignID})
		} else {
			h.Log.Error("campaign lookup failed", "campaign", state.CampaignID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		}
		return CallState{}, nil, false
	}
	return state, camp, true
}

func (h *Handlers) xml(c *gin.Context, resp *telephony.Response) {
	body, err := resp.Render()
	if err != nil {
		h.Log.Error("twiml render failed", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}

func (h *Handlers) audio(camp *campaign.Campaign, key string) campaign.Prompt {
	p, _ := camp.AudioOrDefault(key, h.Prompts)
	return p
}

// e164 normalizes a raw number for the caller's country. Parse
// failures fall through to the raw input so the call is still
// attempted.
func (h *Handlers) e164(raw, country string) string {
	num, err := phonenumbers.Parse(raw, strings.ToUpper(country))
	if err != nil {
		h.Log.Warn("unable to parse phone number", "country", country)
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// parseTarget splits a target key into uid and namespace prefix.
func parseTarget(key string) (uid, prefix string) {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:], key[:i]
	}
	return key, ""
}

/* ===================== outbound entry ===================== */

// Create places the outbound call to the user. This is the only
// endpoint the public embed form hits.
func (h *Handlers) Create(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	userPhone := h.e164(state.UserPhone, state.UserCountry)

	blocked, err := h.Blocklist.UserBlocked(ctx, userPhone, c.ClientIP())
	if err != nil {
		h.Log.Error("blocklist check failed", "err", err)
	}

	fromNumbers := camp.PhoneNumbersFor(state.UserCountry)
	if len(fromNumbers) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "no numbers available for campaign " + state.CampaignID + " in " + state.UserCountry,
		})
		return
	}
	fromNumber := fromNumbers[h.Rand.Intn(len(fromNumbers))]

	if blocked {
		// blocked callers get a success-shaped response and no call;
		// revealing the block invites workarounds
		h.Log.Info("blocked caller dropped", "campaign", camp.ID, "ip", c.ClientIP())
		c.JSON(http.StatusOK, gin.H{
			"campaign":   camp.Status(),
			"call":       telephony.StatusQueued,
			"script":     camp.EmbedScript,
			"redirect":   camp.EmbedRedirect,
			"fromNumber": fromNumber,
		})
		return
	}

	allowed, err := h.Limiter.Acquire(ctx, state.CampaignID)
	if err != nil {
		h.Log.Error("limiter acquire failed", "campaign", camp.ID, "err", err)
		allowed = true
	}
	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "too many concurrent calls for campaign " + state.CampaignID,
		})
		return
	}

	sess := &session.Session{
		CampaignID: camp.ID,
		PhoneHash:  session.HashPhone(userPhone),
		FromNumber: fromNumber,
		Direction:  session.DirectionOutbound,
		Location:   state.UserLocation,
	}
	if h.Cfg.LogPhoneNumbers {
		sess.PhoneNumber = userPhone
	}
	if err := h.Sessions.CreateSession(ctx, sess); err != nil {
		h.Log.Error("session create failed", "campaign", camp.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
		return
	}
	state.SessionID = sess.ID

	info, err := h.Carrier.CreateCall(ctx, telephony.CreateCallRequest{
		To:             userPhone,
		From:           fromNumber,
		URL:            state.URL(h.Cfg.BaseURL, "/call/connection"),
		StatusCallback: state.URL(h.Cfg.BaseURL, "/call/complete_status"),
		Timeout:        h.Cfg.RingTimeout,
		Record:         c.Request.FormValue("record") == "true",
	})
	if err != nil {
		var apiErr *telephony.Error
		if errors.As(err, &apiErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apiErr.Message})
			return
		}
		h.Log.Error("carrier create call failed", "campaign", camp.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unable to place call"})
		return
	}

	status := http.StatusOK
	if info.Status == telephony.StatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"campaign":   camp.Status(),
		"call":       info.Status,
		"script":     camp.EmbedScript,
		"redirect":   camp.EmbedRedirect,
		"fromNumber": fromNumber,
	})
}

// Incoming handles calls placed to the campaign's numbers directly.
// The carrier number must be configured to point here with a
// campaignId parameter.
func (h *Handlers) Incoming(c *gin.Context) {
	state, camp, ok := h.parseParams(c, true)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	state.UserPhone = form.From

	sess := &session.Session{
		CampaignID: camp.ID,
		PhoneHash:  session.HashPhone(form.From),
		FromNumber: form.To,
		Direction:  session.DirectionInbound,
	}
	if h.Cfg.LogPhoneNumbers {
		sess.PhoneNumber = form.From
	}
	if err := h.Sessions.CreateSession(ctx, sess); err != nil {
		h.Log.Error("inbound session create failed", "campaign", camp.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
		return
	}
	state.SessionID = sess.ID

	if h.needsLocation(camp) {
		h.xml(c, h.introLocationGather(state, camp))
		return
	}
	h.xml(c, h.introWaitHuman(state, camp))
}

// Connection is the first webhook of an outbound call, fetched when
// the user answers.
func (h *Handlers) Connection(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	if h.needsLocation(camp) && state.UserLocation == "" {
		h.xml(c, h.introLocationGather(state, camp))
		return
	}
	h.xml(c, h.introWaitHuman(state, camp))
}

func (h *Handlers) needsLocation(camp *campaign.Campaign) bool {
	return camp.SegmentBy == political.SegmentByLocation &&
		(camp.LocateBy == political.LocationPostal || camp.LocateBy == political.LocationDistrict)
}

/* ===================== intro steps ===================== */

// introWaitHuman plays the intro and waits for a keypress, so
// voicemail doesn't get connected to a target office.
func (h *Handlers) introWaitHuman(state CallState, camp *campaign.Campaign) *telephony.Response {
	lang := camp.LanguageCode()
	var resp telephony.Response
	playOrSay(&resp, h.audio(camp, campaign.MsgIntro), lang, nil)

	g := telephony.Gather{
		NumDigits: 1,
		Method:    "POST",
		Timeout:   10,
		Action:    state.URL(h.Cfg.BaseURL, "/call/make_calls"),
	}
	playOrSay(&g, h.audio(camp, campaign.MsgIntroConfirm), lang, nil)
	resp.Append(&g)
	return &resp
}

func (h *Handlers) introLocationGather(state CallState, camp *campaign.Campaign) *telephony.Response {
	lang := camp.LanguageCode()
	var resp telephony.Response
	if p, ok := camp.Audio[campaign.MsgIntroLocation]; ok && !p.Empty() {
		playOrSay(&resp, p, lang, nil)
	} else {
		playOrSay(&resp, h.audio(camp, campaign.MsgIntro), lang, nil)
	}
	h.locationGather(&resp, state, camp)
	return &resp
}

func (h *Handlers) locationGather(resp *telephony.Response, state CallState, camp *campaign.Campaign) {
	g := telephony.Gather{
		NumDigits: 5,
		Method:    "POST",
		Action:    state.URL(h.Cfg.BaseURL, "/call/location_parse"),
	}
	playOrSay(&g, h.audio(camp, campaign.MsgLocation), camp.LanguageCode(), nil)
	resp.Append(&g)
}

// LocationParse validates the digits the caller entered. One retry is
// allowed before the call ends.
func (h *Handlers) LocationParse(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	digits := c.Request.FormValue("Digits")
	lang := camp.LanguageCode()

	// force postal resolution so call-ins work even for campaigns that
	// normally locate by district; skip the special list because this
	// only checks whether the entry is usable
	spec := camp.Spec()
	spec.LocateBy = political.LocationPostal
	located, err := h.Political.LocateTargets(ctx, spec, digits, true)
	if err != nil {
		h.Log.Error("locate targets failed", "campaign", camp.ID, "err", err)
	}

	if len(located) == 0 {
		var resp telephony.Response
		if state.Attempt >= 1 {
			playOrSay(&resp, h.audio(camp, campaign.MsgInvalidLocation), lang,
				map[string]string{"location": digits})
			resp.Append(telephony.Hangup{})
			h.xml(c, &resp)
			return
		}
		state.Attempt++
		playOrSay(&resp, h.audio(camp, campaign.MsgUnparsedLocation), lang, nil)
		h.locationGather(&resp, state, camp)
		h.xml(c, &resp)
		return
	}

	state.UserLocation = digits
	if state.SessionID != 0 {
		if err := h.Sessions.SetSessionLocation(ctx, state.SessionID, digits); err != nil {
			h.Log.Warn("session location update failed", "session", state.SessionID, "err", err)
		}
	}
	h.xml(c, h.makeCalls(ctx, state, camp))
}

/* ===================== the call block ===================== */

// MakeCalls resolves targets and starts the call sequence.
func (h *Handlers) MakeCalls(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	h.xml(c, h.makeCalls(c.Request.Context(), state, camp))
}

func (h *Handlers) makeCalls(ctx context.Context, state CallState, camp *campaign.Campaign) *telephony.Response {
	lang := camp.LanguageCode()
	var resp telephony.Response

	if len(state.TargetIDs) == 0 {
		switch camp.SegmentBy {
		case political.SegmentByCustom, political.SegmentByLocation:
			// custom lists go through the resolver too, so the
			// campaign's shuffle ordering applies to them
			located, err := h.Political.LocateTargets(ctx, camp.Spec(), state.UserLocation, false)
			if err != nil {
				h.Log.Error("locate targets failed", "campaign", camp.ID,
					"location", state.UserLocation, "err", err)
			}
			state.TargetIDs = located
		default:
			h.Log.Error("unknown segment_by", "campaign", camp.ID, "segment_by", camp.SegmentBy)
		}
	}

	if len(state.TargetIDs) == 0 {
		playOrSay(&resp, h.audio(camp, campaign.MsgInvalidLocation), lang,
			map[string]string{"location": state.UserLocation})
		resp.Append(telephony.Hangup{})
		return &resp
	}

	if camp.CallMaximum > 0 && len(state.TargetIDs) > camp.CallMaximum {
		state.TargetIDs = state.TargetIDs[:camp.CallMaximum]
	}

	if camp.PromptSchedule && !state.Scheduled {
		return h.schedulePrompt(state, camp)
	}

	n := len(state.TargetIDs)
	playOrSay(&resp, h.audio(camp, campaign.MsgCallBlockIntro), lang,
		map[string]string{"n_targets": strconv.Itoa(n)})

	state.CallIndex = 0
	resp.Append(telephony.Redirect{URL: state.URL(h.Cfg.BaseURL, "/call/make_single")})
	return &resp
}

// schedulePrompt offers a daily reminder subscription before the call
// block starts. Timeouts and non-1 digits decline.
func (h *Handlers) schedulePrompt(state CallState, camp *campaign.Campaign) *telephony.Response {
	lang := camp.LanguageCode()
	var resp telephony.Response

	action := state.URL(h.Cfg.BaseURL, "/call/schedule_parse")
	g := telephony.Gather{NumDigits: 1, Method: "POST", Timeout: 5, Action: action}
	playOrSay(&g, h.audio(camp, campaign.MsgPromptSchedule), lang, nil)
	resp.Append(&g)
	// gather timeout falls through here: treat as a decline
	resp.Append(telephony.Redirect{URL: action})
	return &resp
}

// ScheduleParse records the caller's answer to the reminder prompt
// and continues to the call block either way. Pressing 1 toggles:
// unsubscribed callers sign up, subscribed callers cancel, which is
// what the signup message promises.
func (h *Handlers) ScheduleParse(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	lang := camp.LanguageCode()
	state.Scheduled = true

	var resp telephony.Response
	if c.Request.FormValue("Digits") == "1" {
		phone := h.e164(state.UserPhone, state.UserCountry)
		if h.Schedules.IsSubscribed(ctx, camp.ID, phone) {
			if err := h.Schedules.ScheduleDeleted(ctx, camp.ID, phone); err != nil {
				h.Log.Error("schedule delete failed", "campaign", camp.ID, "err", err)
			} else {
				playOrSay(&resp, h.audio(camp, campaign.MsgScheduleStop), lang, nil)
			}
		} else {
			if err := h.Schedules.ScheduleCreated(ctx, camp.ID, phone, state.UserLocation); err != nil {
				h.Log.Error("schedule create failed", "campaign", camp.ID, "err", err)
			} else {
				playOrSay(&resp, h.audio(camp, campaign.MsgScheduleStart), lang, nil)
			}
		}
	}
	resp.Append(telephony.Redirect{URL: state.URL(h.Cfg.BaseURL, "/call/make_calls")})
	h.xml(c, &resp)
}

// MakeSingle dials the target at the current call index.
func (h *Handlers) MakeSingle(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	lang := camp.LanguageCode()

	if state.CallIndex < 0 || state.CallIndex >= len(state.TargetIDs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_index out of range"})
		return
	}

	uid, prefix := parseTarget(state.TargetIDs[state.CallIndex])
	target, _, err := campaign.GetOrCacheTarget(ctx, h.Targets, h.Cache, uid, prefix, h.Log)
	if err != nil || target.Number == "" {
		if err != nil {
			h.Log.Error("target resolution failed", "uid", state.TargetIDs[state.CallIndex], "err", err)
		}
		var resp telephony.Response
		playOrSay(&resp, h.audio(camp, campaign.MsgInvalidLocation), lang, nil)
		resp.Append(telephony.Hangup{})
		h.xml(c, &resp)
		return
	}

	targetPhone, office := h.pickNumber(camp, target, state.TriedOffices)
	if office != nil {
		state.TriedOffices = append(state.TriedOffices, office.UID)
	}

	officeName := ""
	if office != nil {
		officeName = office.Name
	}
	var resp telephony.Response
	playOrSay(&resp, h.audio(camp, campaign.MsgTargetIntro), lang, map[string]string{
		"target.title": target.Title,
		"target.name":  target.Name,
		"office_type":  officeName,
	})

	resp.Append(telephony.Dial{
		Action:       state.URL(h.Cfg.BaseURL, "/call/complete"),
		CallerID:     h.e164(state.UserPhone, state.UserCountry),
		TimeLimit:    h.Cfg.TimeLimit,
		Timeout:      h.Cfg.RingTimeout,
		HangupOnStar: true,
		Number:       &telephony.Number{Value: targetPhone},
	})
	h.xml(c, &resp)
}

// pickNumber chooses which of the target's numbers to dial per the
// campaign's office policy.
func (h *Handlers) pickNumber(camp *campaign.Campaign, target *campaign.Target, tried []string) (string, *campaign.Office) {
	if len(target.Offices) == 0 {
		return target.Number, nil
	}
	switch camp.TargetOffices {
	case political.TargetOfficeDistrict:
		o := target.Offices[h.Rand.Intn(len(target.Offices))]
		return o.Number, &o
	case political.TargetOfficeBusy:
		triedSet := make(map[string]bool, len(tried))
		for _, uid := range tried {
			triedSet[uid] = true
		}
		for _, o := range target.Offices {
			if !triedSet[o.UID] {
				return o.Number, &o
			}
		}
		// every office tried; fall back to the main line
		return target.Number, nil
	default:
		return target.Number, nil
	}
}

// Complete is the dial action callback: record the call, then move to
// the next target or wrap up.
func (h *Handlers) Complete(c *gin.Context) {
	state, camp, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	lang := camp.LanguageCode()

	if state.CallIndex < 0 || state.CallIndex >= len(state.TargetIDs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_index out of range"})
		return
	}

	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	dialStatus := form.DialCallStatus
	if dialStatus == "" {
		dialStatus = "unknown"
	}

	uid, prefix := parseTarget(state.TargetIDs[state.CallIndex])
	target, _, err := campaign.GetOrCacheTarget(ctx, h.Targets, h.Cache, uid, prefix, h.Log)
	if err != nil {
		h.Log.Error("target resolution failed on complete", "uid", state.TargetIDs[state.CallIndex], "err", err)
		target = &campaign.Target{}
	}

	call := &session.Call{
		SessionID:  state.SessionID,
		CampaignID: camp.ID,
		TargetID:   target.ID,
		CallSID:    form.CallSID,
		Status:     dialStatus,
		Duration:   form.DialCallDuration,
	}
	if err := h.Sessions.CreateCall(ctx, call); err != nil {
		// a lost stats row must not break the caller's sequence
		h.Log.Error("call log failed", "session", state.SessionID, "err", err)
	}

	var resp telephony.Response

	if dialStatus == telephony.StatusBusy {
		// with busy-retry offices, try the next untried office for the
		// same target before moving on
		if camp.TargetOffices == political.TargetOfficeBusy && len(state.TriedOffices) < len(target.Offices) {
			playOrSay(&resp, h.audio(camp, campaign.MsgTargetBusy), lang, map[string]string{
				"target.title": target.Title,
				"target.name":  target.Name,
			})
			resp.Append(telephony.Redirect{URL: state.URL(h.Cfg.BaseURL, "/call/make_single")})
			h.xml(c, &resp)
			return
		}
		playOrSay(&resp, h.audio(camp, campaign.MsgTargetBusy), lang, map[string]string{
			"target.title": target.Title,
			"target.name":  target.Name,
		})
	}

	if state.CallIndex == len(state.TargetIDs)-1 {
		playOrSay(&resp, h.audio(camp, campaign.MsgFinalThanks), lang, nil)
		h.xml(c, &resp)
		return
	}

	state.CallIndex++
	state.TriedOffices = nil
	callsLeft := len(state.TargetIDs) - state.CallIndex
	playOrSay(&resp, h.audio(camp, campaign.MsgBetweenCalls), lang,
		map[string]string{"calls_left": strconv.Itoa(callsLeft)})
	resp.Append(telephony.Redirect{URL: state.URL(h.Cfg.BaseURL, "/call/make_single")})
	h.xml(c, &resp)
}

/* ===================== status callbacks ===================== */

// terminalStatuses are the carrier call states that end a session.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// StatusCallback receives the asynchronous session status from the
// carrier. Updates are last-writer-wins: callbacks can arrive out of
// order and no ordering is reconstructed here.
func (h *Handlers) StatusCallback(c *gin.Context) {
	state, _, ok := h.parseParams(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	status := form.CallStatus
	if status == "" {
		status = "unknown"
	}

	if err := h.Sessions.UpdateSessionStatus(ctx, state.SessionID, status, form.CallDuration); err != nil {
		h.Log.Error("session status update failed", "session", state.SessionID, "err", err)
	}
	if form.QueueTime > 0 {
		h.Log.Info("carrier queue delay", "session", state.SessionID, "queue_ms", form.QueueTime)
	}

	if terminalStatuses[status] {
		if err := h.Limiter.Release(ctx, state.CampaignID); err != nil {
			h.Log.Warn("limiter release failed", "campaign", state.CampaignID, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"phoneNumber": form.To,
		"callStatus":  status,
		"targetIds":   state.TargetIDs,
		"campaignId":  state.CampaignID,
	})
}

// StatusInbound closes out call-in sessions, which have no session id
// in their callback URL; the session is found by caller hash instead.
func (h *Handlers) StatusInbound(c *gin.Context) {
	state, camp, ok := h.parseParams(c, true)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}

	sess, err := h.Sessions.LatestInboundSession(ctx, session.HashPhone(form.From), camp.ID, state.UserLocation)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no matching inbound session"})
			return
		}
		h.Log.Error("inbound session lookup failed", "campaign", camp.ID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	status := form.CallStatus
	if status == "" {
		status = "unknown"
	}
	if err := h.Sessions.UpdateSessionStatus(ctx, sess.ID, status, form.CallDuration); err != nil {
		h.Log.Error("inbound session update failed", "session", sess.ID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"phoneNumber": form.From,
		"callStatus":  status,
		"campaignId":  state.CampaignID,
	})
}
