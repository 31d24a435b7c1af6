package political

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"callserver/internal/cache"
	"callserver/internal/political/geocode"
)

// US cache key namespaces. Lookup keys (senate, house, zipcode) hold
// lists; direct keys (bioguide, governor) hold a single record each.
func keyBioguide(id string) string    { return "us:bioguide:" + id }
func keySenate(state string) string   { return "us:senate:" + state }
func keyHouse(state, d string) string { return "us:house:" + state + ":" + d }
func keyZipcode(zip string) string    { return "us:zipcode:" + zip }
func keyGovernor(state string) string { return "us_state:governor:" + state }
func keyOpenStates(id string) string  { return "us_state:openstates:" + id }

const keyUSExecutive = "us:executive"

type usProvider struct {
	deps Deps
	geo  *geocode.Geocoder
	http *resty.Client
}

func newUSProvider(deps Deps) Provider {
	return &usProvider{
		deps: deps,
		geo:  geocode.New(deps.Geo, "us", deps.Log),
		http: resty.New().SetBaseURL(deps.OpenStatesBase),
	}
}

func (p *usProvider) Country() string     { return "us" }
func (p *usProvider) CountryName() string { return "United States" }

func (p *usProvider) CacheGet(ctx context.Context, key string) ([]cache.Record, error) {
	return p.deps.Cache.Get(ctx, key)
}

func (p *usProvider) CacheSearch(ctx context.Context, prefix string) (map[string][]cache.Record, error) {
	return p.deps.Cache.SearchPrefix(ctx, prefix)
}

func (p *usProvider) GetLocation(ctx context.Context, locateBy, raw string) geocode.Location {
	if locateBy == LocationPostal {
		return p.geo.Postal(ctx, raw, p)
	}
	return p.geo.Resolve(ctx, locateBy, raw, nil)
}

// Districts looks up the congressional districts covering a zipcode
// from the locally loaded dataset.
func (p *usProvider) Districts(ctx context.Context, postal string) []geocode.District {
	recs, err := p.deps.Cache.Get(ctx, keyZipcode(postal))
	if err != nil {
		p.deps.Log.Warn("district lookup failed", "zipcode", postal, "err", err)
		return nil
	}
	out := make([]geocode.District, 0, len(recs))
	for _, r := range recs {
		out = append(out, geocode.District{
			Zipcode:       recStr(r, "zipcode"),
			State:         recStr(r, "state"),
			HouseDistrict: recStr(r, "house_district"),
		})
	}
	return out
}

/* ===================== data loading ===================== */

// LoadData reads the bundled legislator, district and governor CSVs
// into the cache and returns the number of keys written.
func (p *usProvider) LoadData(ctx context.Context) (int, error) {
	items := make(map[string][]cache.Record)

	if err := p.loadLegislators(items); err != nil {
		return 0, err
	}
	if err := p.loadDistricts(items); err != nil {
		return 0, err
	}
	if err := p.loadGovernors(items); err != nil {
		return 0, err
	}

	// White House comment line, so executive campaigns resolve through
	// the same cache path as everything else
	items[keyUSExecutive] = []cache.Record{{
		"uid":    keyUSExecutive,
		"name":   "Whitehouse Comment Line",
		"title":  "President",
		"number": "12024561111",
	}}

	if err := p.deps.Cache.SetMany(ctx, items); err != nil {
		return 0, fmt.Errorf("cache political data: %w", err)
	}
	return len(items), nil
}

// loadLegislators indexes current members of Congress three ways:
// directly by bioguide id, by state for senators, and by state and
// district for representatives.
func (p *usProvider) loadLegislators(items map[string][]cache.Record) error {
	rows, err := readCSV(filepath.Join(p.deps.DataDir, "us_legislators.csv"), true)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row["in_office"] != "1" {
			continue
		}
		rec := toRecord(row)
		items[keyBioguide(row["bioguide_id"])] = append(items[keyBioguide(row["bioguide_id"])], rec)

		if row["senate_class"] != "" {
			rec["chamber"] = "senate"
			key := keySenate(row["state"])
			items[key] = append(items[key], rec)
		} else {
			rec["chamber"] = "house"
			key := keyHouse(row["state"], row["district"])
			items[key] = append(items[key], rec)
		}
	}
	return nil
}

// loadDistricts indexes zip-to-district rows by zipcode. Zipcodes can
// map to multiple districts, and occasionally multiple states.
func (p *usProvider) loadDistricts(items map[string][]cache.Record) error {
	f, err := os.Open(filepath.Join(p.deps.DataDir, "us_districts.csv"))
	if err != nil {
		return fmt.Errorf("open districts: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read districts: %w", err)
	}
	for _, row := range rows {
		key := keyZipcode(row[0])
		items[key] = append(items[key], cache.Record{
			"zipcode":        row[0],
			"state":          row[1],
			"house_district": row[2],
		})
	}
	return nil
}

func (p *usProvider) loadGovernors(items map[string][]cache.Record) error {
	rows, err := readCSV(filepath.Join(p.deps.DataDir, "us_states.csv"), true)
	if err != nil {
		return err
	}
	for _, row := range rows {
		items[keyGovernor(row["state"])] = []cache.Record{{
			"title": "Governor",
			"name":  row["name"],
			"phone": row["phone"],
			"state": row["state"],
		}}
	}
	return nil
}

func readCSV(path string, header bool) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	raw, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	fields := raw[0]
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, line := range raw[1:] {
		row := make(map[string]string, len(fields))
		for i, name := range fields {
			if i < len(line) {
				row[name] = line[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toRecord(row map[string]string) cache.Record {
	rec := make(cache.Record, len(row))
	for k, v := range row {
		rec[k] = v
	}
	return rec
}

func recStr(rec cache.Record, field string) string {
	if v, ok := rec[field].(string); ok {
		return v
	}
	return ""
}

/* ===================== campaign types ===================== */

func (p *usProvider) CampaignTypes() []string {
	return []string{TypeExecutive, TypeCongress, TypeState, TypeLocal, TypeCustom}
}

func (p *usProvider) CampaignType(key string) (CampaignType, error) {
	switch key {
	case TypeCongress:
		return usCongress{p}, nil
	case TypeState:
		return usState{p}, nil
	case TypeExecutive:
		return staticType{name: "Executive", uids: []string{keyUSExecutive}}, nil
	case TypeLocal:
		return staticType{name: "Local"}, nil
	case TypeCustom:
		return staticType{name: "Custom"}, nil
	default:
		return nil, fmt.Errorf("us: unknown campaign type %q", key)
	}
}

type usCongress struct{ p *usProvider }

func (usCongress) Name() string { return "Congress" }

func (c usCongress) AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string {
	districts := c.p.Districts(ctx, loc.Postal())

	// senators, per state; zipcodes can cross state lines
	seenStates := map[string]bool{}
	var upper []string
	for _, d := range districts {
		if seenStates[d.State] {
			continue
		}
		seenStates[d.State] = true
		recs, err := c.p.CacheGet(ctx, keySenate(d.State))
		if err != nil {
			c.p.deps.Log.Warn("senate lookup failed", "state", d.State, "err", err)
			continue
		}
		for _, r := range recs {
			upper = append(upper, keyBioguide(recStr(r, "bioguide_id")))
		}
	}

	var lower []string
	for _, d := range districts {
		recs, err := c.p.CacheGet(ctx, keyHouse(d.State, d.HouseDistrict))
		if err != nil || len(recs) == 0 {
			continue
		}
		lower = append(lower, keyBioguide(recStr(recs[0], "bioguide_id")))
	}

	return map[string][]string{SubtypeUpper: upper, SubtypeLower: lower}
}

func (c usCongress) SortTargets(groups map[string][]string, subtype, order string) []string {
	return sortChambers(groups, subtype, order, c.p.deps.Rand)
}

type usState struct{ p *usProvider }

func (usState) Name() string { return "State" }

func (s usState) AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string {
	out := map[string][]string{}

	state := loc.State()
	if state == "" {
		state = region
	}
	if state != "" {
		out[SubtypeExec] = []string{keyGovernor(state)}
	}

	lat, lng, ok := loc.LatLon()
	if !ok {
		return out
	}
	legs, err := s.openstatesGeoSearch(ctx, lat, lng)
	if err != nil {
		s.p.deps.Log.Warn("openstates geo search failed", "err", err)
		return out
	}
	for _, leg := range legs {
		if active, ok := leg["active"].(bool); ok && !active {
			continue
		}
		if region != "" && !strings.EqualFold(recStr(leg, "state"), region) {
			continue
		}
		key := keyOpenStates(recStr(leg, "leg_id"))
		if err := s.p.deps.Cache.Set(ctx, key, []cache.Record{leg}); err != nil {
			s.p.deps.Log.Warn("cache state legislator failed", "key", key, "err", err)
		}
		switch recStr(leg, "chamber") {
		case "upper":
			out[SubtypeUpper] = append(out[SubtypeUpper], key)
		case "lower":
			out[SubtypeLower] = append(out[SubtypeLower], key)
		}
	}
	return out
}

func (s usState) openstatesGeoSearch(ctx context.Context, lat, lng float64) ([]cache.Record, error) {
	var out []cache.Record
	resp, err := s.p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    fmt.Sprintf("%f", lat),
			"long":   fmt.Sprintf("%f", lng),
			"apikey": s.p.deps.OpenStatesKey,
		}).
		SetResult(&out).
		Get("/legislators/geo/")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openstates: http %d", resp.StatusCode())
	}
	return out, nil
}

func (s usState) SortTargets(groups map[string][]string, subtype, order string) []string {
	if subtype == SubtypeExec {
		return append([]string(nil), groups[SubtypeExec]...)
	}
	return sortChambers(groups, subtype, order, s.p.deps.Rand)
}
