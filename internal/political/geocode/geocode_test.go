package geocode

import (
	"context"
	"errors"
	"testing"
)

type stubBackend struct {
	name    string
	loc     Location
	revLoc  Location
	err     error
	revErr  error
	geoHits int
	revHits int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Geocode(ctx context.Context, query, country string) (Location, error) {
	s.geoHits++
	return s.loc, s.err
}

func (s *stubBackend) Reverse(ctx context.Context, lat, lng float64) (Location, error) {
	s.revHits++
	return s.revLoc, s.revErr
}

type stubDistricts struct {
	rows []District
}

func (s stubDistricts) Districts(ctx context.Context, postal string) []District {
	return s.rows
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPostalLocalFastPath(t *testing.T) {
	backend := &stubBackend{name: ServiceNominatim}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Postal(context.Background(), "94612", stubDistricts{rows: []District{
		{Zipcode: "94612", State: "CA", HouseDistrict: "13"},
	}})

	if loc.Service != ServiceLocalDistricts {
		t.Fatalf("expected local-districts service, got %q", loc.Service)
	}
	if loc.Postal() != "94612" || loc.State() != "CA" {
		t.Fatalf("unexpected postal/state: %q %q", loc.Postal(), loc.State())
	}
	if backend.geoHits != 0 {
		t.Fatalf("expected no network call on single district match")
	}
}

func TestPostalMultipleDistrictsFallsThrough(t *testing.T) {
	// zipcodes can cross districts; then we need a real geocode
	backend := &stubBackend{name: ServiceNominatim, loc: Location{
		Service:          ServiceNominatim,
		HasCoords:        true,
		Latitude:         45.1,
		Longitude:        -89.1,
		NominatimAddress: map[string]string{"postcode": "54409", "state": "Wisconsin"},
	}}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Postal(context.Background(), "54409", stubDistricts{rows: []District{
		{Zipcode: "54409", State: "WI", HouseDistrict: "7"},
		{Zipcode: "54409", State: "WI", HouseDistrict: "8"},
	}})

	if backend.geoHits != 1 {
		t.Fatalf("expected geocode call, got %d", backend.geoHits)
	}
	if loc.Postal() != "54409" {
		t.Fatalf("unexpected postal %q", loc.Postal())
	}
	if loc.State() != "WI" {
		t.Fatalf("expected nominatim state name mapped to abbreviation, got %q", loc.State())
	}
}

func TestPostalTimeoutYieldsSentinel(t *testing.T) {
	backend := &stubBackend{name: ServiceNominatim, err: timeoutErr{}}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Postal(context.Background(), "94612", nil)

	if loc.Service != ServiceTimeout {
		t.Fatalf("expected timeout sentinel, got %q", loc.Service)
	}
	if loc.Postal() != "" || loc.State() != "" {
		t.Fatalf("timeout location must be empty, got %q %q", loc.Postal(), loc.State())
	}
	if loc.Found() {
		t.Fatalf("timeout location must not read as found")
	}
}

func TestPostalSecondReversePassRecoversPostcode(t *testing.T) {
	// forward geocode of a bare code comes back too coarse; the
	// geocoder reverses its own result to recover a postcode
	backend := &stubBackend{
		name: ServiceNominatim,
		loc: Location{
			Service:          ServiceNominatim,
			HasCoords:        true,
			Latitude:         37.8,
			Longitude:        -122.27,
			NominatimAddress: map[string]string{"state": "California"},
		},
		revLoc: Location{
			Service:          ServiceNominatim,
			HasCoords:        true,
			Latitude:         37.8,
			Longitude:        -122.27,
			NominatimAddress: map[string]string{"postcode": "94612", "state": "California"},
		},
	}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Postal(context.Background(), "94612", nil)

	if backend.revHits != 1 {
		t.Fatalf("expected one reverse pass, got %d", backend.revHits)
	}
	if loc.Postal() != "94612" {
		t.Fatalf("expected recovered postcode, got %q", loc.Postal())
	}
}

func TestReverseParsesLatLonString(t *testing.T) {
	backend := &stubBackend{name: ServiceGoogle, revLoc: Location{
		Service: ServiceGoogle,
		GoogleComponents: []GoogleComponent{
			{Types: []string{"postal_code"}, ShortName: "94612"},
			{Types: []string{"administrative_area_level_1"}, ShortName: "CA"},
		},
		HasCoords: true,
	}}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Reverse(context.Background(), "37.8044,-122.2711")
	if loc.Postal() != "94612" || loc.State() != "CA" {
		t.Fatalf("unexpected google accessors: %q %q", loc.Postal(), loc.State())
	}

	bad := g.Reverse(context.Background(), "not-a-latlon")
	if bad.Found() {
		t.Fatalf("expected empty location for malformed latlon")
	}
	if backend.revHits != 1 {
		t.Fatalf("malformed latlon must not hit the backend")
	}
}

func TestAddressHardErrorReturnsEmpty(t *testing.T) {
	backend := &stubBackend{name: ServiceNominatim, err: errors.New("boom")}
	g := NewWithBackend(backend, "us", nil)

	loc := g.Address(context.Background(), "1 Main St")
	if loc.Found() {
		t.Fatalf("expected empty location on backend error")
	}
	if loc.Service == ServiceTimeout {
		t.Fatalf("non-timeout errors must not be tagged as timeouts")
	}
}
