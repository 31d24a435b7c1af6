package political

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"callserver/internal/cache"
)

func testRegistry(t *testing.T) (*Registry, *cache.Memory) {
	t.Helper()
	mem := cache.NewMemory()
	return NewRegistry(Deps{
		Cache: mem,
		Log:   slog.New(slog.NewTextHandler(testWriter{t}, nil)),
		Rand:  rand.New(rand.NewSource(1)),
	}), mem
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

// seedOakland loads the minimum congressional data for zipcode 94612:
// one house member and two senators.
func seedOakland(t *testing.T, mem *cache.Memory) {
	t.Helper()
	ctx := context.Background()
	err := mem.SetMany(ctx, map[string][]cache.Record{
		"us:zipcode:94612": {
			{"zipcode": "94612", "state": "CA", "house_district": "13"},
		},
		"us:house:CA:13": {
			{"bioguide_id": "L000551", "first_name": "Barbara", "last_name": "Lee", "chamber": "house"},
		},
		"us:senate:CA": {
			{"bioguide_id": "F000062", "first_name": "Dianne", "last_name": "Feinstein", "chamber": "senate"},
			{"bioguide_id": "P000145", "first_name": "Alex", "last_name": "Padilla", "chamber": "senate"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func congressSpec() CampaignSpec {
	return CampaignSpec{
		ID:        1,
		Country:   "us",
		Type:      TypeCongress,
		Subtype:   SubtypeBoth,
		SegmentBy: SegmentByLocation,
		LocateBy:  LocationPostal,
	}
}

func TestProviderNotFound(t *testing.T) {
	r, _ := testRegistry(t)
	if _, err := r.Provider("xx"); err == nil {
		t.Fatal("expected error for unknown country")
	} else if !strings.Contains(err.Error(), "provider not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProviderMemoized(t *testing.T) {
	r, _ := testRegistry(t)
	a, err := r.Provider("us")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Provider("us")
	if a != b {
		t.Fatal("expected the same provider instance")
	}
}

func TestLocateTargetsBicameral(t *testing.T) {
	r, mem := testRegistry(t)
	seedOakland(t, mem)

	spec := congressSpec()
	spec.TargetOrder = OrderLowerFirst
	got, err := r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"us:bioguide:L000551", "us:bioguide:F000062", "us:bioguide:P000145"}
	assertUIDs(t, got, want)

	spec.TargetOrder = OrderUpperFirst
	got, err = r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatal(err)
	}
	want = []string{"us:bioguide:F000062", "us:bioguide:P000145", "us:bioguide:L000551"}
	assertUIDs(t, got, want)
}

func TestLocateTargetsShuffleKeepsMembers(t *testing.T) {
	r, mem := testRegistry(t)
	seedOakland(t, mem)

	spec := congressSpec()
	spec.TargetOrder = OrderShuffle
	got, err := r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(got))
	}
	members := map[string]bool{}
	for _, uid := range got {
		members[uid] = true
	}
	for _, uid := range []string{"us:bioguide:L000551", "us:bioguide:F000062", "us:bioguide:P000145"} {
		if !members[uid] {
			t.Fatalf("shuffle dropped %s", uid)
		}
	}
}

func TestLocateTargetsSingleChamber(t *testing.T) {
	r, mem := testRegistry(t)
	seedOakland(t, mem)

	spec := congressSpec()
	spec.Subtype = SubtypeLower
	got, err := r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatal(err)
	}
	assertUIDs(t, got, []string{"us:bioguide:L000551"})
}

func TestLocateTargetsCustomSegment(t *testing.T) {
	r, _ := testRegistry(t)
	spec := CampaignSpec{
		Country:       "us",
		Type:          TypeCustom,
		SegmentBy:     SegmentByCustom,
		CustomTargets: []string{"custom:1", "custom:2"},
	}
	got, err := r.LocateTargets(context.Background(), spec, "", false)
	if err != nil {
		t.Fatal(err)
	}
	assertUIDs(t, got, []string{"custom:1", "custom:2"})
}

func TestLocateTargetsCustomSegmentShuffles(t *testing.T) {
	r, _ := testRegistry(t)
	spec := CampaignSpec{
		Country:       "us",
		Type:          TypeCustom,
		SegmentBy:     SegmentByCustom,
		TargetOrder:   OrderShuffle,
		CustomTargets: []string{"custom:1", "custom:2", "custom:3", "custom:4"},
	}

	reordered := false
	for i := 0; i < 50 && !reordered; i++ {
		got, err := r.LocateTargets(context.Background(), spec, "", false)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(spec.CustomTargets) {
			t.Fatalf("shuffle changed membership: %v", got)
		}
		members := map[string]bool{}
		for _, uid := range got {
			members[uid] = true
		}
		for _, uid := range spec.CustomTargets {
			if !members[uid] {
				t.Fatalf("shuffle dropped %s", uid)
			}
		}
		for i := range got {
			if got[i] != spec.CustomTargets[i] {
				reordered = true
				break
			}
		}
	}
	if !reordered {
		t.Fatal("custom list never reordered under shuffle ordering")
	}

	// The configured order must hold without shuffle.
	spec.TargetOrder = OrderLowerFirst
	got, err := r.LocateTargets(context.Background(), spec, "", false)
	if err != nil {
		t.Fatal(err)
	}
	assertUIDs(t, got, spec.CustomTargets)
}

func TestLocateTargetsMergePolicies(t *testing.T) {
	special := []string{"us:bioguide:P000145", "custom:extra"}

	run := func(t *testing.T, policy string, skip bool) []string {
		r, mem := testRegistry(t)
		seedOakland(t, mem)
		spec := congressSpec()
		spec.TargetOrder = OrderLowerFirst
		spec.IncludeSpecial = policy
		spec.CustomTargets = special
		got, err := r.LocateTargets(context.Background(), spec, "94612", skip)
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	// only: custom order, restricted to what the location produced
	assertUIDs(t, run(t, IncludeSpecialOnly, false),
		[]string{"us:bioguide:P000145"})

	// first: custom list leads, location results deduplicated after
	assertUIDs(t, run(t, IncludeSpecialFirst, false),
		[]string{"us:bioguide:P000145", "custom:extra", "us:bioguide:L000551", "us:bioguide:F000062"})

	// last: location results lead
	assertUIDs(t, run(t, IncludeSpecialLast, false),
		[]string{"us:bioguide:L000551", "us:bioguide:F000062", "us:bioguide:P000145", "custom:extra"})

	// no policy: a configured custom list takes priority
	assertUIDs(t, run(t, "", false), special)

	// skipSpecial ignores the custom list entirely
	assertUIDs(t, run(t, IncludeSpecialFirst, true),
		[]string{"us:bioguide:L000551", "us:bioguide:F000062", "us:bioguide:P000145"})
}

func TestLocateTargetsUnknownTypeIsEmpty(t *testing.T) {
	r, _ := testRegistry(t)
	spec := congressSpec()
	spec.Type = "galactic-senate"
	got, err := r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatalf("misconfigured type must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no targets, got %v", got)
	}
}

func TestExecutiveCampaignType(t *testing.T) {
	r, mem := testRegistry(t)
	seedOakland(t, mem)
	err := mem.Set(context.Background(), keyUSExecutive, []cache.Record{
		{"uid": keyUSExecutive, "number": "12024561111"},
	})
	if err != nil {
		t.Fatal(err)
	}

	spec := CampaignSpec{
		Country:   "us",
		Type:      TypeExecutive,
		Subtype:   SubtypeExec,
		SegmentBy: SegmentByLocation,
		LocateBy:  LocationPostal,
	}
	got, err := r.LocateTargets(context.Background(), spec, "94612", false)
	if err != nil {
		t.Fatal(err)
	}
	assertUIDs(t, got, []string{keyUSExecutive})
}

func TestBoundaryURLToKey(t *testing.T) {
	got := boundaryURLToKey("/boundaries/federal-electoral-districts/ottawa-centre/")
	if got != "federal-electoral-districts:ottawa-centre" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestSearchHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, mem := testRegistry(t)
	seedOakland(t, mem)

	router := gin.New()
	router.GET("/political_data/search", r.SearchHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/political_data/search?key=us:senate:CA&filter=last_name=fe", nil)
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Feinstein") || strings.Contains(body, "Padilla") {
		t.Fatalf("filter not applied: %s", body)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/political_data/search?country=xx&key=a", nil)
	router.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400 for unknown country, got %d", w.Code)
	}
}

func assertUIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
