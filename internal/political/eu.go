package political

import (
	"context"
	"fmt"

	"callserver/internal/cache"
	"callserver/internal/political/geocode"
)

// euProvider covers European countries where campaigns target Members
// of European Parliament through custom lists. There is no public
// district API wired in, so only custom campaigns are offered.
type euProvider struct {
	deps       Deps
	code, name string
	geo        *geocode.Geocoder
}

func newEUProvider(code, name string) func(Deps) Provider {
	return func(deps Deps) Provider {
		return &euProvider{
			deps: deps,
			code: code,
			name: name,
			geo:  geocode.New(deps.Geo, code, deps.Log),
		}
	}
}

func (p *euProvider) Country() string     { return p.code }
func (p *euProvider) CountryName() string { return p.name }

func (p *euProvider) LoadData(ctx context.Context) (int, error) { return 0, nil }

func (p *euProvider) GetLocation(ctx context.Context, locateBy, raw string) geocode.Location {
	return p.geo.Resolve(ctx, locateBy, raw, nil)
}

func (p *euProvider) CacheGet(ctx context.Context, key string) ([]cache.Record, error) {
	return p.deps.Cache.Get(ctx, key)
}

func (p *euProvider) CacheSearch(ctx context.Context, prefix string) (map[string][]cache.Record, error) {
	return p.deps.Cache.SearchPrefix(ctx, prefix)
}

func (p *euProvider) CampaignTypes() []string { return []string{TypeCustom} }

func (p *euProvider) CampaignType(key string) (CampaignType, error) {
	if key == TypeCustom {
		return staticType{name: "Custom - MEP"}, nil
	}
	return nil, fmt.Errorf("%s: unknown campaign type %q", p.code, key)
}
