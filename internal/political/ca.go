package political

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"callserver/internal/cache"
	"callserver/internal/political/geocode"
)

func keyOpenNorth(boundary string) string { return "ca:opennorth:" + boundary }

const keyCAExecutive = "ca:executive"

// caProvider resolves Canadian representatives through the OpenNorth
// Represent API. There is no local postcode-to-riding dataset, so every
// point lookup hits the API and caches the responses.
type caProvider struct {
	deps Deps
	geo  *geocode.Geocoder
	http *resty.Client
}

func newCAProvider(deps Deps) Provider {
	return &caProvider{
		deps: deps,
		geo:  geocode.New(deps.Geo, "ca", deps.Log),
		http: resty.New().SetBaseURL(deps.OpenNorthBase),
	}
}

func (p *caProvider) Country() string     { return "ca" }
func (p *caProvider) CountryName() string { return "Canada" }

func (p *caProvider) CacheGet(ctx context.Context, key string) ([]cache.Record, error) {
	return p.deps.Cache.Get(ctx, key)
}

func (p *caProvider) CacheSearch(ctx context.Context, prefix string) (map[string][]cache.Record, error) {
	return p.deps.Cache.SearchPrefix(ctx, prefix)
}

func (p *caProvider) GetLocation(ctx context.Context, locateBy, raw string) geocode.Location {
	return p.geo.Resolve(ctx, locateBy, raw, nil)
}

func (p *caProvider) LoadData(ctx context.Context) (int, error) {
	// Prime Minister's comment line only; riding lookups are resolved
	// through OpenNorth at call time.
	err := p.deps.Cache.Set(ctx, keyCAExecutive, []cache.Record{{
		"uid":    keyCAExecutive,
		"name":   "Prime Minister's Office",
		"title":  "Prime Minister",
		"number": "16139924211",
	}})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

type openNorthResponse struct {
	Objects []openNorthRep `json:"objects"`
}

type openNorthRep struct {
	Name          string `json:"name"`
	ElectedOffice string `json:"elected_office"`
	DistrictName  string `json:"district_name"`
	Related       struct {
		BoundaryURL string `json:"boundary_url"`
	} `json:"related"`
	Offices []map[string]any `json:"offices"`
}

// representatives runs an OpenNorth point lookup, caches each result
// under its boundary key, and returns the keys.
func (p *caProvider) representatives(ctx context.Context, loc geocode.Location) ([]string, error) {
	lat, lng, ok := loc.LatLon()
	if !ok {
		return nil, fmt.Errorf("opennorth lookup requires coordinates")
	}

	var out openNorthResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("point", fmt.Sprintf("%f,%f", lat, lng)).
		SetResult(&out).
		Get("/representatives/")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("opennorth: http %d", resp.StatusCode())
	}

	items := make(map[string][]cache.Record, len(out.Objects))
	keys := make([]string, 0, len(out.Objects))
	for _, rep := range out.Objects {
		key := keyOpenNorth(boundaryURLToKey(rep.Related.BoundaryURL))
		offices := make([]any, 0, len(rep.Offices))
		for _, o := range rep.Offices {
			offices = append(offices, o)
		}
		items[key] = []cache.Record{{
			"cache_key":      key,
			"name":           rep.Name,
			"elected_office": rep.ElectedOffice,
			"district_name":  rep.DistrictName,
			"offices":        offices,
		}}
		keys = append(keys, key)
	}
	if err := p.deps.Cache.SetMany(ctx, items); err != nil {
		p.deps.Log.Warn("cache opennorth responses failed", "err", err)
	}
	return keys, nil
}

// boundaryURLToKey turns OpenNorth's related boundary URL, like
// /boundaries/federal-electoral-districts/ottawa-centre/, into a cache
// key segment.
func boundaryURLToKey(url string) string {
	b := strings.Trim(url, "/")
	b = strings.TrimPrefix(b, "boundaries/")
	return strings.ReplaceAll(b, "/", ":")
}

// filterByOffice keeps the cached representative keys whose elected
// office matches, optionally restricted to a district region.
func (p *caProvider) filterByOffice(ctx context.Context, keys []string, office, region string) []string {
	var out []string
	for _, key := range keys {
		recs, err := p.CacheGet(ctx, key)
		if err != nil || len(recs) == 0 {
			continue
		}
		rec := recs[0]
		if !strings.EqualFold(recStr(rec, "elected_office"), office) {
			continue
		}
		if region != "" && !strings.EqualFold(recStr(rec, "district_name"), region) {
			continue
		}
		out = append(out, key)
	}
	return out
}

/* ===================== campaign types ===================== */

func (p *caProvider) CampaignTypes() []string {
	return []string{TypeExecutive, TypeParliament, TypeProvince, TypeLocal, TypeCustom}
}

func (p *caProvider) CampaignType(key string) (CampaignType, error) {
	switch key {
	case TypeParliament:
		return caParliament{p}, nil
	case TypeProvince:
		return caProvince{p}, nil
	case TypeExecutive:
		return staticType{name: "Executive", uids: []string{keyCAExecutive}}, nil
	case TypeLocal:
		return staticType{name: "Local"}, nil
	case TypeCustom:
		return staticType{name: "Custom"}, nil
	default:
		return nil, fmt.Errorf("ca: unknown campaign type %q", key)
	}
}

type caParliament struct{ p *caProvider }

func (caParliament) Name() string { return "Parliament" }

func (c caParliament) AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string {
	keys, err := c.p.representatives(ctx, loc)
	if err != nil {
		c.p.deps.Log.Warn("parliament lookup failed", "err", err)
		return map[string][]string{}
	}
	return map[string][]string{
		SubtypeLower: c.p.filterByOffice(ctx, keys, "MP", ""),
	}
}

func (c caParliament) SortTargets(groups map[string][]string, subtype, order string) []string {
	return sortChambers(groups, subtype, order, c.p.deps.Rand)
}

type caProvince struct{ p *caProvider }

func (caProvince) Name() string { return "Province" }

func (c caProvince) AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string {
	keys, err := c.p.representatives(ctx, loc)
	if err != nil {
		c.p.deps.Log.Warn("province lookup failed", "err", err)
		return map[string][]string{}
	}
	// TODO: Quebec returns MNA rather than MLA; needs a per-province
	// office table.
	return map[string][]string{
		SubtypeLower: c.p.filterByOffice(ctx, keys, "MLA", region),
	}
}

func (c caProvince) SortTargets(groups map[string][]string, subtype, order string) []string {
	return sortChambers(groups, subtype, order, c.p.deps.Rand)
}
