package callflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"callserver/internal/blocklist"
	"callserver/internal/cache"
	"callserver/internal/campaign"
	"callserver/internal/political"
	"callserver/internal/political/geocode"
	"callserver/internal/schedule"
	"callserver/internal/session"
	"callserver/internal/telephony"
)

type stubCarrier struct {
	reqs []telephony.CreateCallRequest
	info telephony.CallInfo
	err  error
}

func (s *stubCarrier) CreateCall(ctx context.Context, req telephony.CreateCallRequest) (telephony.CallInfo, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return telephony.CallInfo{}, s.err
	}
	return s.info, nil
}

type stubLimiter struct {
	allow    bool
	acquired int
	released int
}

func (l *stubLimiter) Acquire(ctx context.Context, campaignID string) (bool, error) {
	l.acquired++
	return l.allow, nil
}

func (l *stubLimiter) Release(ctx context.Context, campaignID string) error {
	l.released++
	return nil
}

type flowEnv struct {
	router    *gin.Engine
	handlers  *Handlers
	carrier   *stubCarrier
	limiter   *stubLimiter
	sessions  *session.MemoryStore
	targets   *campaign.MemoryTargetStore
	blocked   *blocklist.MemoryStore
	schedules *schedule.Service
	camp      *campaign.Campaign
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := cache.NewMemory()
	seedCongress(t, mem)

	// geocoder stub that never finds anything; known zips resolve
	// through the local district index and skip it entirely
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	t.Cleanup(geo.Close)

	log := slog.New(slog.NewTextHandler(flowWriter{t}, nil))
	registry := political.NewRegistry(political.Deps{
		Cache: mem,
		Geo:   geocode.Config{BaseURL: geo.URL},
		Log:   log,
		Rand:  rand.New(rand.NewSource(1)),
	})

	camp := &campaign.Campaign{
		ID:             1,
		Name:           "clean-water-act",
		CountryCode:    "us",
		Type:           political.TypeCongress,
		Subtype:        political.SubtypeBoth,
		Language:       "en",
		SegmentBy:      political.SegmentByLocation,
		LocateBy:       political.LocationPostal,
		TargetOrdering: political.OrderUpperFirst,
		StatusCode:     campaign.StatusLive,
		PhoneNumbers:   []string{"+15105551234"},
		EmbedScript:    "Tell them to vote yes.",
		EmbedRedirect:  "https://example.org/thanks",
	}
	campaigns := campaign.NewMemoryStore()
	campaigns.Add(camp)

	env := &flowEnv{
		carrier:   &stubCarrier{info: telephony.CallInfo{SID: "CA100", Status: telephony.StatusQueued}},
		limiter:   &stubLimiter{allow: true},
		sessions:  session.NewMemoryStore(),
		targets:   campaign.NewMemoryTargetStore(),
		blocked:   blocklist.NewMemoryStore(),
		schedules: schedule.NewService(schedule.NewMemoryStore(), log),
		camp:      camp,
	}
	env.handlers = &Handlers{
		Campaigns: campaigns,
		Targets:   env.targets,
		Sessions:  env.sessions,
		Cache:     mem,
		Political: registry,
		Carrier:   env.carrier,
		Blocklist: env.blocked,
		Schedules: env.schedules,
		Prompts:   campaign.DefaultCatalog(),
		Limiter:   env.limiter,
		Cfg: Config{
			BaseURL:         "https://calls.example.org",
			RingTimeout:     25,
			TimeLimit:       14 * 60,
			LogPhoneNumbers: true,
		},
		Log:  log,
		Rand: rand.New(rand.NewSource(1)),
	}
	env.router = gin.New()
	env.handlers.Register(env.router)
	return env
}

type flowWriter struct{ t *testing.T }

func (w flowWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

// seedCongress loads zip 94612 with a house member carrying one
// district office and two senators.
func seedCongress(t *testing.T, mem *cache.Memory) {
	t.Helper()
	err := mem.SetMany(context.Background(), map[string][]cache.Record{
		"us:zipcode:94612": {
			{"zipcode": "94612", "state": "CA", "house_district": "13"},
		},
		"us:house:CA:13": {
			{
				"bioguide_id": "L000551", "first_name": "Barbara", "last_name": "Lee",
				"title": "Rep", "state": "CA", "district": "13", "phone": "12022252661",
				"offices": []any{
					map[string]any{"id": "oakland", "city": "Oakland", "phone": "15107633370"},
				},
			},
		},
		"us:senate:CA": {
			{
				"bioguide_id": "F000062", "first_name": "Dianne", "last_name": "Feinstein",
				"title": "Sen", "state": "CA", "phone": "12022243841",
			},
			{
				"bioguide_id": "P000145", "first_name": "Alex", "last_name": "Padilla",
				"title": "Sen", "state": "CA", "phone": "12022243553",
			},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *flowEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return out
}

/* ===================== create ===================== */

func TestCreatePlacesCall(t *testing.T) {
	e := newFlowEnv(t)

	w := e.do(t, "POST", "/call/create?campaignId=1&userPhone=5105550000&userCountry=us")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["call"] != "queued" || body["campaign"] != "live" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["script"] != "Tell them to vote yes." || body["fromNumber"] != "+15105551234" {
		t.Fatalf("unexpected body: %v", body)
	}

	if len(e.carrier.reqs) != 1 {
		t.Fatalf("expected 1 carrier call, got %d", len(e.carrier.reqs))
	}
	req := e.carrier.reqs[0]
	if req.To != "+15105550000" {
		t.Fatalf("expected normalized callee, got %q", req.To)
	}
	if !strings.Contains(req.URL, "/call/connection") || !strings.Contains(req.URL, "sessionId=1") {
		t.Fatalf("unexpected webhook url %q", req.URL)
	}
	if !strings.Contains(req.StatusCallback, "/call/complete_status") {
		t.Fatalf("unexpected status callback %q", req.StatusCallback)
	}

	sess, err := e.sessions.GetSession(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Direction != session.DirectionOutbound || sess.PhoneHash == "" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if e.limiter.acquired != 1 {
		t.Fatalf("expected limiter acquire, got %d", e.limiter.acquired)
	}
}

func TestCreateRequiresPhoneAndCampaign(t *testing.T) {
	e := newFlowEnv(t)

	if w := e.do(t, "POST", "/call/create?campaignId=1"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing phone: status %d", w.Code)
	}
	if w := e.do(t, "POST", "/call/create?userPhone=5105550000"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing campaign: status %d", w.Code)
	}
	if w := e.do(t, "POST", "/call/create?campaignId=99&userPhone=5105550000"); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown campaign: status %d", w.Code)
	}
}

func TestCreateBlockedCallerIsSilentlyDropped(t *testing.T) {
	e := newFlowEnv(t)
	err := e.blocked.Add(context.Background(), &blocklist.Entry{PhoneNumber: "+15105550000"})
	if err != nil {
		t.Fatal(err)
	}

	w := e.do(t, "POST", "/call/create?campaignId=1&userPhone=5105550000&userCountry=us")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	// response is indistinguishable from a successful create
	body := decodeJSON(t, w)
	if body["call"] != "queued" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(e.carrier.reqs) != 0 {
		t.Fatalf("expected no carrier call, got %d", len(e.carrier.reqs))
	}
}

func TestCreateConcurrencyLimit(t *testing.T) {
	e := newFlowEnv(t)
	e.limiter.allow = false

	w := e.do(t, "POST", "/call/create?campaignId=1&userPhone=5105550000&userCountry=us")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(e.carrier.reqs) != 0 {
		t.Fatalf("expected no carrier call, got %d", len(e.carrier.reqs))
	}
}

func TestCreateNoNumbersConfigured(t *testing.T) {
	e := newFlowEnv(t)
	e.camp.PhoneNumbers = nil

	w := e.do(t, "POST", "/call/create?campaignId=1&userPhone=5105550000&userCountry=us")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateCarrierErrorSurfaces(t *testing.T) {
	e := newFlowEnv(t)
	e.carrier.err = &telephony.Error{Status: 400, Code: 21211, Message: "Invalid 'To' Phone Number"}

	w := e.do(t, "POST", "/call/create?campaignId=1&userPhone=5105550000&userCountry=us")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Invalid 'To' Phone Number") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

/* ===================== connection ===================== */

func TestConnectionGathersLocationWhenUnknown(t *testing.T) {
	e := newFlowEnv(t)

	w := e.do(t, "POST", "/call/connection?campaignId=1&userPhone=5105550000")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "/call/location_parse") || !strings.Contains(body, `numDigits="5"`) {
		t.Fatalf("expected location gather, got %s", body)
	}
}

func TestConnectionWithLocationWaitsForKeypress(t *testing.T) {
	e := newFlowEnv(t)

	w := e.do(t, "POST", "/call/connection?campaignId=1&userPhone=5105550000&userLocation=94612")
	body := w.Body.String()
	if !strings.Contains(body, "/call/make_calls") || !strings.Contains(body, `numDigits="1"`) {
		t.Fatalf("expected keypress gather, got %s", body)
	}
}

/* ===================== location parse ===================== */

func TestLocationParseStartsCallBlock(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	sess := &session.Session{CampaignID: 1, PhoneHash: "abc", Direction: session.DirectionOutbound}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	w := e.do(t, "POST", "/call/location_parse?campaignId=1&userPhone=5105550000&sessionId=1&Digits=94612")
	body := w.Body.String()
	if !strings.Contains(body, "/call/make_single") {
		t.Fatalf("expected redirect to make_single, got %s", body)
	}
	// senators lead under upper-first ordering
	if !strings.Contains(body, "us%3Abioguide%3AF000062") {
		t.Fatalf("expected target ids in redirect, got %s", body)
	}

	got, err := e.sessions.GetSession(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location != "94612" {
		t.Fatalf("expected session location recorded, got %q", got.Location)
	}
}

func TestLocationParseRetriesOnceThenHangsUp(t *testing.T) {
	e := newFlowEnv(t)

	w := e.do(t, "POST", "/call/location_parse?campaignId=1&userPhone=5105550000&Digits=00000")
	body := w.Body.String()
	if !strings.Contains(body, "/call/location_parse") || !strings.Contains(body, "attempt=1") {
		t.Fatalf("expected re-gather with attempt counter, got %s", body)
	}

	w = e.do(t, "POST", "/call/location_parse?campaignId=1&userPhone=5105550000&Digits=00000&attempt=1")
	body = w.Body.String()
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("expected hangup after second failure, got %s", body)
	}
}

func TestMakeCallsCustomSegmentResolvesThroughRegistry(t *testing.T) {
	e := newFlowEnv(t)
	e.camp.SegmentBy = political.SegmentByCustom
	e.camp.TargetOrdering = political.OrderShuffle
	e.camp.CustomTargets = []string{"us:bioguide:F000062", "us:bioguide:P000145"}

	w := e.do(t, "POST", "/call/make_calls?campaignId=1&userPhone=5105550000")
	body := w.Body.String()
	if !strings.Contains(body, "/call/make_single") {
		t.Fatalf("expected call block start, got %s", body)
	}
	for _, uid := range []string{"us%3Abioguide%3AF000062", "us%3Abioguide%3AP000145"} {
		if !strings.Contains(body, uid) {
			t.Fatalf("custom target %s missing from state, got %s", uid, body)
		}
	}
}

func TestMakeCallsNoTargetsHangsUp(t *testing.T) {
	e := newFlowEnv(t)

	// 99999 misses the district index and the geocoder stub finds
	// nothing, so resolution yields zero targets.
	w := e.do(t, "POST", "/call/make_calls?campaignId=1&userPhone=5105550000&userLocation=99999")
	body := w.Body.String()
	if !strings.Contains(body, "unable to find a representative") {
		t.Fatalf("expected invalid location prompt, got %s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("expected hangup, got %s", body)
	}
	if strings.Contains(body, "<Redirect") {
		t.Fatalf("expected no redirect loop, got %s", body)
	}
}

/* ===================== make single / complete ===================== */

func TestMakeSingleDialsTarget(t *testing.T) {
	e := newFlowEnv(t)

	state := CallState{
		CampaignID:  "1",
		UserPhone:   "5105550000",
		UserCountry: "US",
		TargetIDs:   []string{"us:bioguide:F000062"},
	}
	w := e.do(t, "POST", state.URL("", "/call/make_single"))
	body := w.Body.String()
	if !strings.Contains(body, "Dianne Feinstein") {
		t.Fatalf("expected target intro, got %s", body)
	}
	if !strings.Contains(body, "<Dial") || !strings.Contains(body, "12022243841") {
		t.Fatalf("expected dial verb, got %s", body)
	}
	if !strings.Contains(body, `hangupOnStar="true"`) || !strings.Contains(body, `callerId="+15105550000"`) {
		t.Fatalf("unexpected dial attributes: %s", body)
	}
	if e.targets.Len() != 1 {
		t.Fatalf("expected target materialized, have %d", e.targets.Len())
	}
}

func TestMakeSingleIndexOutOfRange(t *testing.T) {
	e := newFlowEnv(t)
	w := e.do(t, "POST", "/call/make_single?campaignId=1&userPhone=5105550000&call_index=3")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestCompleteAdvancesToNextTarget(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	sess := &session.Session{CampaignID: 1, PhoneHash: "abc"}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	state := CallState{
		CampaignID: "1",
		SessionID:  1,
		UserPhone:  "5105550000",
		TargetIDs:  []string{"us:bioguide:F000062", "us:bioguide:P000145"},
	}
	u := state.URL("", "/call/complete") + "&DialCallStatus=completed&DialCallDuration=61&CallSid=CA777"
	w := e.do(t, "POST", u)
	body := w.Body.String()
	if !strings.Contains(body, "/call/make_single") || !strings.Contains(body, "call_index=1") {
		t.Fatalf("expected advance to next target, got %s", body)
	}

	calls := e.sessions.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call row, got %d", len(calls))
	}
	if calls[0].Status != "completed" || calls[0].Duration != 61 || calls[0].CallSID != "CA777" {
		t.Fatalf("unexpected call row %+v", calls[0])
	}
}

func TestCompleteLastTargetThanksCaller(t *testing.T) {
	e := newFlowEnv(t)

	state := CallState{
		CampaignID: "1",
		UserPhone:  "5105550000",
		TargetIDs:  []string{"us:bioguide:F000062"},
	}
	u := state.URL("", "/call/complete") + "&DialCallStatus=completed"
	w := e.do(t, "POST", u)
	body := w.Body.String()
	if !strings.Contains(body, "Thank you for calling") {
		t.Fatalf("expected final thanks, got %s", body)
	}
	if strings.Contains(body, "/call/make_single") {
		t.Fatalf("expected no further redirect, got %s", body)
	}
}

func TestCompleteBusyRetriesUntriedOffice(t *testing.T) {
	e := newFlowEnv(t)
	e.camp.TargetOffices = political.TargetOfficeBusy

	state := CallState{
		CampaignID: "1",
		UserPhone:  "5105550000",
		TargetIDs:  []string{"us:bioguide:L000551"},
	}
	u := state.URL("", "/call/complete") + "&DialCallStatus=busy"
	w := e.do(t, "POST", u)
	body := w.Body.String()
	if !strings.Contains(body, "busy") {
		t.Fatalf("expected busy message, got %s", body)
	}
	// same index retried against the remaining office
	if !strings.Contains(body, "/call/make_single") || strings.Contains(body, "call_index=1") {
		t.Fatalf("expected retry of same target, got %s", body)
	}
}

/* ===================== schedule prompt ===================== */

func TestScheduleFlow(t *testing.T) {
	e := newFlowEnv(t)
	e.camp.PromptSchedule = true
	ctx := context.Background()

	w := e.do(t, "POST", "/call/make_calls?campaignId=1&userPhone=5105550000&userLocation=94612")
	body := w.Body.String()
	if !strings.Contains(body, "/call/schedule_parse") {
		t.Fatalf("expected schedule prompt, got %s", body)
	}

	state := CallState{
		CampaignID:   "1",
		UserPhone:    "5105550000",
		UserCountry:  "US",
		UserLocation: "94612",
	}
	w = e.do(t, "POST", state.URL("", "/call/schedule_parse")+"&Digits=1")
	body = w.Body.String()
	if !strings.Contains(body, "signed up") || !strings.Contains(body, "/call/make_calls") {
		t.Fatalf("expected subscription confirmation, got %s", body)
	}
	if !strings.Contains(body, "scheduled=1") {
		t.Fatalf("expected scheduled flag in redirect, got %s", body)
	}
	if !e.schedules.IsSubscribed(ctx, 1, "+15105550000") {
		t.Fatal("expected caller subscribed")
	}

	// a scheduled state must not be prompted again
	w = e.do(t, "POST", "/call/make_calls?campaignId=1&userPhone=5105550000&userLocation=94612&scheduled=1")
	if strings.Contains(w.Body.String(), "/call/schedule_parse") {
		t.Fatalf("expected no second prompt, got %s", w.Body.String())
	}

	// a subscribed caller pressing 1 again cancels, per the signup
	// message's promise
	w = e.do(t, "POST", state.URL("", "/call/schedule_parse")+"&Digits=1")
	body = w.Body.String()
	if !strings.Contains(body, "canceled") || !strings.Contains(body, "/call/make_calls") {
		t.Fatalf("expected cancellation confirmation, got %s", body)
	}
	if e.schedules.IsSubscribed(ctx, 1, "+15105550000") {
		t.Fatal("expected caller unsubscribed")
	}
}

/* ===================== status callbacks ===================== */

func TestStatusCallbackReleasesSlot(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	sess := &session.Session{CampaignID: 1, PhoneHash: "abc"}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	u := "/call/complete_status?campaignId=1&userPhone=5105550000&sessionId=1" +
		"&CallStatus=completed&CallDuration=95&To=%2B15105550000"
	w := e.do(t, "POST", u)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["callStatus"] != "completed" || body["phoneNumber"] != "+15105550000" {
		t.Fatalf("unexpected body: %v", body)
	}

	got, err := e.sessions.GetSession(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "completed" || got.Duration != 95 {
		t.Fatalf("unexpected session %+v", got)
	}
	if e.limiter.released != 1 {
		t.Fatalf("expected slot released, got %d", e.limiter.released)
	}
}

func TestStatusCallbackNonTerminalKeepsSlot(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	sess := &session.Session{CampaignID: 1, PhoneHash: "abc"}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	e.do(t, "POST", "/call/complete_status?campaignId=1&userPhone=x&sessionId=1&CallStatus=in-progress")
	if e.limiter.released != 0 {
		t.Fatalf("expected slot held, got %d releases", e.limiter.released)
	}
}

func TestStatusInbound(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	sess := &session.Session{
		CampaignID: 1,
		PhoneHash:  session.HashPhone("+15105550001"),
		Direction:  session.DirectionInbound,
	}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	u := "/call/status_inbound?campaignId=1&From=%2B15105550001&CallStatus=completed&CallDuration=30"
	w := e.do(t, "POST", u)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	got, err := e.sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "completed" || got.Duration != 30 {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestStatusInboundNoSession(t *testing.T) {
	e := newFlowEnv(t)
	w := e.do(t, "POST", "/call/status_inbound?campaignId=1&From=%2B15105559999&CallStatus=completed")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}
