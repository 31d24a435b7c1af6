// Package political resolves caller locations to the elected officials
// a campaign should connect them with. Each supported country is a
// Provider backed by the shared record cache.
package political

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"callserver/internal/cache"
	"callserver/internal/political/geocode"
)

// ErrNoProvider is returned when a campaign names a country this build
// has no data provider for.
var ErrNoProvider = errors.New("political: provider not found")

// CampaignType resolves location targets for one flavor of campaign.
type CampaignType interface {
	Name() string

	// AllTargets returns candidate uids grouped by subtype.
	AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string

	// SortTargets flattens the groups the subtype selects, applying
	// the campaign's chamber ordering.
	SortTargets(groups map[string][]string, subtype, order string) []string
}

// Provider is one country's data source.
type Provider interface {
	Country() string
	CountryName() string

	// LoadData primes the cache from the provider's datasets and
	// returns the number of keys written. Providers that resolve
	// purely through remote APIs return 0.
	LoadData(ctx context.Context) (int, error)

	// GetLocation resolves raw caller input per the campaign's
	// locate-by mode. Failures yield empty or timeout-tagged
	// locations, never errors.
	GetLocation(ctx context.Context, locateBy, raw string) geocode.Location

	CampaignTypes() []string
	CampaignType(key string) (CampaignType, error)

	CacheGet(ctx context.Context, key string) ([]cache.Record, error)
	CacheSearch(ctx context.Context, prefix string) (map[string][]cache.Record, error)
}

// Deps carries the shared infrastructure providers are built on.
type Deps struct {
	Cache cache.Store
	Geo   geocode.Config

	// DataDir holds the bundled CSV datasets.
	DataDir string

	// API endpoints, overridable for tests.
	OpenStatesBase string
	OpenStatesKey  string
	OpenNorthBase  string

	Log  *slog.Logger
	Rand *rand.Rand
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.OpenStatesBase == "" {
		d.OpenStatesBase = "https://openstates.org/api/v1"
	}
	if d.OpenNorthBase == "" {
		d.OpenNorthBase = "https://represent.opennorth.ca"
	}
}

// Registry holds the static country table and memoizes constructed
// providers.
type Registry struct {
	deps Deps

	mu        sync.Mutex
	providers map[string]Provider
}

// constructors is the static country table. Adding a country means
// adding a row here.
var constructors = map[string]func(Deps) Provider{
	"us": newUSProvider,
	"ca": newCAProvider,
	"fr": newEUProvider("fr", "France"),
	"de": newEUProvider("de", "Germany"),
	"es": newEUProvider("es", "Spain"),
	"ie": newEUProvider("ie", "Ireland"),
	"it": newEUProvider("it", "Italy"),
	"pl": newEUProvider("pl", "Poland"),
	"uk": newEUProvider("uk", "United Kingdom"),
}

func NewRegistry(deps Deps) *Registry {
	deps.defaults()
	return &Registry{deps: deps, providers: make(map[string]Provider)}
}

// Countries lists the supported country codes, sorted.
func (r *Registry) Countries() []string {
	out := make([]string, 0, len(constructors))
	for code := range constructors {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Provider returns the memoized provider for a country code.
func (r *Registry) Provider(country string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[country]; ok {
		return p, nil
	}
	ctor, ok := constructors[country]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, country)
	}
	p := ctor(r.deps)
	r.providers[country] = p
	return p, nil
}

// LoadAll primes every provider's datasets.
func (r *Registry) LoadAll(ctx context.Context) (int, error) {
	total := 0
	for _, code := range r.Countries() {
		p, err := r.Provider(code)
		if err != nil {
			return total, err
		}
		n, err := p.LoadData(ctx)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", code, err)
		}
		r.deps.Log.Info("political data loaded", "country", code, "keys", n)
		total += n
	}
	return total, nil
}
