package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Input kinds accepted by Resolve. Values match the campaign
// locate-by configuration strings.
const (
	KindPostal  = "postal"
	KindAddress = "address"
	KindLatLon  = "latlon"
)

// Config selects and configures the geocoding backend.
type Config struct {
	// Provider is "google" or "nominatim". Nominatim is the default
	// because it needs no API key.
	Provider string
	APIKey   string

	// BaseURL overrides the backend endpoint, for tests.
	BaseURL string

	Timeout time.Duration
}

// Backend is one remote geocoding service.
type Backend interface {
	Name() string
	Geocode(ctx context.Context, query, country string) (Location, error)
	Reverse(ctx context.Context, lat, lng float64) (Location, error)
}

// DistrictIndex is the local zip-to-district fast path offered by a
// country data provider.
type DistrictIndex interface {
	Districts(ctx context.Context, postal string) []District
}

// Geocoder wraps a backend with a country bias and the sentinel
// failure behavior the call flow depends on: a timeout yields an
// empty Location tagged ServiceTimeout, never an error.
type Geocoder struct {
	backend Backend
	country string
	log     *slog.Logger
}

func New(cfg Config, country string, log *slog.Logger) *Geocoder {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	var b Backend
	switch strings.ToLower(cfg.Provider) {
	case "google":
		b = newGoogleBackend(cfg)
	default:
		b = newNominatimBackend(cfg)
	}
	return &Geocoder{backend: b, country: strings.ToLower(country), log: log}
}

// NewWithBackend injects a backend directly, for tests.
func NewWithBackend(b Backend, country string, log *slog.Logger) *Geocoder {
	if log == nil {
		log = slog.Default()
	}
	return &Geocoder{backend: b, country: strings.ToLower(country), log: log}
}

// Resolve turns raw caller input into a canonical Location. Failures
// come back as an empty or timeout-tagged Location, never an error:
// an aborted webhook chain strands a live phone call.
func (g *Geocoder) Resolve(ctx context.Context, kind, raw string, districts DistrictIndex) Location {
	switch kind {
	case KindPostal:
		return g.Postal(ctx, raw, districts)
	case KindAddress:
		return g.Address(ctx, raw)
	case KindLatLon:
		return g.Reverse(ctx, raw)
	default:
		g.log.Error("unknown locate kind", "kind", kind)
		return Location{}
	}
}

// Postal resolves a postal code. When the provider has a local
// zip-to-district dataset and it yields exactly one district, the
// network round-trip is skipped entirely; this is the primary caching
// optimization for the common case (US zip codes).
func (g *Geocoder) Postal(ctx context.Context, code string, districts DistrictIndex) Location {
	if districts != nil {
		ds := districts.Districts(ctx, code)
		if len(ds) == 1 {
			return Location{
				Service: ServiceLocalDistricts,
				Address: code,
				LocalComponents: map[string]string{
					"zipcode":        ds[0].Zipcode,
					"state":          ds[0].State,
					"house_district": ds[0].HouseDistrict,
				},
			}
		}
	}

	loc := g.Address(ctx, code)

	// A forward geocode of a bare postal code can come back too coarse
	// to carry the code itself (Nominatim centroids often do). Recover
	// it with a reverse pass on our own result.
	if loc.Service == ServiceNominatim && loc.Postal() == "" && loc.HasCoords {
		rev, err := g.backend.Reverse(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			if isTimeout(err) {
				return timeoutLocation()
			}
			g.log.Warn("reverse pass failed", "code", code, "err", err)
			return loc
		}
		return rev
	}
	return loc
}

func (g *Geocoder) Address(ctx context.Context, raw string) Location {
	loc, err := g.backend.Geocode(ctx, raw, g.country)
	if err != nil {
		if isTimeout(err) {
			g.log.Warn("geocode timeout", "backend", g.backend.Name(), "query", raw)
			return timeoutLocation()
		}
		g.log.Warn("geocode failed", "backend", g.backend.Name(), "query", raw, "err", err)
		return Location{}
	}
	return loc
}

// Reverse accepts "lat,lon" and reverse-geocodes it.
func (g *Geocoder) Reverse(ctx context.Context, latlon string) Location {
	parts := strings.SplitN(latlon, ",", 2)
	if len(parts) != 2 {
		g.log.Warn("unable to parse latlon", "raw", latlon)
		return Location{}
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		g.log.Warn("unable to parse latlon", "raw", latlon)
		return Location{}
	}
	loc, err := g.backend.Reverse(ctx, lat, lng)
	if err != nil {
		if isTimeout(err) {
			return timeoutLocation()
		}
		g.log.Warn("reverse geocode failed", "backend", g.backend.Name(), "err", err)
		return Location{}
	}
	return loc
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

/* ===================== google ===================== */

type googleBackend struct {
	http *resty.Client
	key  string
}

func newGoogleBackend(cfg Config) *googleBackend {
	base := cfg.BaseURL
	if base == "" {
		base = "https://maps.googleapis.com"
	}
	return &googleBackend{
		http: resty.New().SetBaseURL(base).SetTimeout(cfg.Timeout),
		key:  cfg.APIKey,
	}
}

func (b *googleBackend) Name() string { return ServiceGoogle }

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string            `json:"formatted_address"`
		AddressComponents []GoogleComponent `json:"address_components"`
		Geometry          struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (b *googleBackend) Geocode(ctx context.Context, query, country string) (Location, error) {
	// Google must be given a region bias or ambiguous postal codes
	// resolve to the wrong country.
	var out googleResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address": query,
			"region":  country,
			"key":     b.key,
		}).
		SetResult(&out).
		Get("/maps/api/geocode/json")
	if err != nil {
		return Location{}, err
	}
	if resp.IsError() {
		return Location{}, fmt.Errorf("google geocode: http %d", resp.StatusCode())
	}
	return googleToLocation(out)
}

func (b *googleBackend) Reverse(ctx context.Context, lat, lng float64) (Location, error) {
	var out googleResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latlng": fmt.Sprintf("%f,%f", lat, lng),
			"key":    b.key,
		}).
		SetResult(&out).
		Get("/maps/api/geocode/json")
	if err != nil {
		return Location{}, err
	}
	if resp.IsError() {
		return Location{}, fmt.Errorf("google reverse: http %d", resp.StatusCode())
	}
	return googleToLocation(out)
}

func googleToLocation(out googleResponse) (Location, error) {
	if len(out.Results) == 0 {
		return Location{}, nil
	}
	r := out.Results[0]
	return Location{
		Service:          ServiceGoogle,
		Address:          r.FormattedAddress,
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		HasCoords:        true,
		GoogleComponents: r.AddressComponents,
	}, nil
}

/* ===================== nominatim ===================== */

type nominatimBackend struct {
	http *resty.Client
}

func newNominatimBackend(cfg Config) *nominatimBackend {
	base := cfg.BaseURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	return &nominatimBackend{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", "callserver"),
	}
}

func (b *nominatimBackend) Name() string { return ServiceNominatim }

type nominatimResult struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func (b *nominatimBackend) Geocode(ctx context.Context, query, country string) (Location, error) {
	// Nominatim omits address metadata unless asked.
	var out []nominatimResult
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":              query,
			"format":         "jsonv2",
			"addressdetails": "1",
			"countrycodes":   country,
			"limit":          "1",
		}).
		SetResult(&out).
		Get("/search")
	if err != nil {
		return Location{}, err
	}
	if resp.IsError() {
		return Location{}, fmt.Errorf("nominatim search: http %d", resp.StatusCode())
	}
	if len(out) == 0 {
		return Location{}, nil
	}
	return nominatimToLocation(out[0]), nil
}

func (b *nominatimBackend) Reverse(ctx context.Context, lat, lng float64) (Location, error) {
	var out nominatimResult
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":            fmt.Sprintf("%f", lat),
			"lon":            fmt.Sprintf("%f", lng),
			"format":         "jsonv2",
			"addressdetails": "1",
		}).
		SetResult(&out).
		Get("/reverse")
	if err != nil {
		return Location{}, err
	}
	if resp.IsError() {
		return Location{}, fmt.Errorf("nominatim reverse: http %d", resp.StatusCode())
	}
	return nominatimToLocation(out), nil
}

func nominatimToLocation(r nominatimResult) Location {
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lng, _ := strconv.ParseFloat(r.Lon, 64)
	return Location{
		Service:          ServiceNominatim,
		Address:          r.DisplayName,
		Latitude:         lat,
		Longitude:        lng,
		HasCoords:        r.Lat != "" && r.Lon != "",
		NominatimAddress: r.Address,
	}
}
