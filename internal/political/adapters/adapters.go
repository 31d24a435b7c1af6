// Package adapters normalizes heterogeneous per-source political data
// records into the common Target/Office shape.
package adapters

import (
	"fmt"
	"strings"

	"callserver/internal/cache"
)

// TargetFields is the normalized representative shape.
type TargetFields struct {
	UID      string
	Name     string
	Title    string
	District string
	Number   string
}

// OfficeFields is one normalized secondary office.
type OfficeFields struct {
	UID     string
	Name    string
	Address string
	Number  string
}

// Adapter translates one data source's record shape.
type Adapter interface {
	// SplitKey separates an office suffix from a target key. Most
	// sources delimit with '-'; sources whose keys legitimately
	// contain dashes must not split.
	SplitKey(key string) (base, suffix string)

	Target(rec cache.Record) TargetFields
	Offices(rec cache.Record) []OfficeFields
}

// registry maps recognized key namespaces to adapters, checked in
// order. Unknown namespaces fall back to the identity adapter.
var registry = []struct {
	prefix  string
	adapter Adapter
}{
	{"us:bioguide", unitedStatesAdapter{}},
	{"us_state:openstates", openStatesAdapter{}},
	{"us_state:governor", governorAdapter{}},
	{"ca:opennorth", openNorthAdapter{}},
	{"custom", customAdapter{}},
}

// ByKey dispatches on the key's namespace prefix.
func ByKey(key string) Adapter {
	for _, e := range registry {
		if strings.HasPrefix(key, e.prefix) {
			return e.adapter
		}
	}
	return IdentityAdapter{}
}

/* ===================== helpers ===================== */

func str(rec cache.Record, field string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON decoding turns district numbers into float64
		return strings.TrimSuffix(fmt.Sprintf("%v", s), ".0")
	default:
		return fmt.Sprintf("%v", s)
	}
}

// personName prefers first+last, then full_name, then name, then the
// literal "Unknown". A missing optional field must never fail the
// whole resolution.
func personName(rec cache.Record) string {
	first, last := str(rec, "first_name"), str(rec, "last_name")
	if first != "" && last != "" {
		return first + " " + last
	}
	if full := str(rec, "full_name"); full != "" {
		return full
	}
	if name := str(rec, "name"); name != "" {
		return name
	}
	return "Unknown"
}

func officeRecords(rec cache.Record) []cache.Record {
	raw, ok := rec["offices"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]cache.Record, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func splitDash(key string) (string, string) {
	if i := strings.Index(key, "-"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

/* ===================== identity ===================== */

// IdentityAdapter passes records through untouched. It is the
// fallback for unknown namespaces.
type IdentityAdapter struct{}

func (IdentityAdapter) SplitKey(key string) (string, string) { return splitDash(key) }

func (IdentityAdapter) Target(rec cache.Record) TargetFields {
	return TargetFields{
		UID:      str(rec, "uid"),
		Name:     personName(rec),
		Title:    str(rec, "title"),
		District: str(rec, "district"),
		Number:   str(rec, "number"),
	}
}

func (IdentityAdapter) Offices(rec cache.Record) []OfficeFields {
	var out []OfficeFields
	for _, o := range officeRecords(rec) {
		number := str(o, "number")
		if number == "" {
			continue
		}
		out = append(out, OfficeFields{
			UID:     str(o, "uid"),
			Name:    str(o, "name"),
			Address: str(o, "address"),
			Number:  number,
		})
	}
	return out
}

/* ===================== custom ===================== */

type customAdapter struct{}

func (customAdapter) SplitKey(key string) (string, string) { return splitDash(key) }

func (customAdapter) Target(rec cache.Record) TargetFields {
	return TargetFields{
		UID:    str(rec, "uid"),
		Name:   personName(rec),
		Title:  str(rec, "title"),
		Number: str(rec, "number"),
	}
}

func (customAdapter) Offices(rec cache.Record) []OfficeFields { return nil }

/* ===================== us congress (bioguide) ===================== */

type unitedStatesAdapter struct{}

func (unitedStatesAdapter) SplitKey(key string) (string, string) { return splitDash(key) }

func (unitedStatesAdapter) Target(rec cache.Record) TargetFields {
	f := TargetFields{
		UID:    str(rec, "bioguide_id"),
		Name:   personName(rec),
		Title:  str(rec, "title"),
		Number: str(rec, "phone"), // DC office number
	}
	if d := str(rec, "district"); d != "" {
		f.District = str(rec, "state") + "-" + d
	} else {
		f.District = str(rec, "state")
	}
	return f
}

func (unitedStatesAdapter) Offices(rec cache.Record) []OfficeFields {
	// district office numbers
	var out []OfficeFields
	for _, o := range officeRecords(rec) {
		phone := str(o, "phone")
		if phone == "" {
			continue
		}
		of := OfficeFields{
			UID:    str(o, "id"),
			Name:   str(o, "city"),
			Number: phone,
		}
		city, state := str(o, "city"), str(o, "state")
		if city != "" && state != "" {
			parts := []string{}
			if a := str(o, "address"); a != "" {
				parts = append(parts, a)
			}
			if b := str(o, "building"); b != "" {
				parts = append(parts, b)
			}
			parts = append(parts, city, state)
			of.Address = strings.Join(parts, " ")
		}
		out = append(out, of)
	}
	return out
}

/* ===================== us state (openstates) ===================== */

type openStatesAdapter struct{}

func (openStatesAdapter) SplitKey(key string) (string, string) { return splitDash(key) }

func (openStatesAdapter) Target(rec cache.Record) TargetFields {
	title := "Representative"
	if str(rec, "chamber") == "upper" {
		title = "Senator"
	}
	f := TargetFields{
		UID:      str(rec, "leg_id"),
		Name:     personName(rec),
		Title:    title,
		District: str(rec, "district"),
	}
	offices := officeRecords(rec)
	// default to the capitol office number
	for _, o := range offices {
		if str(o, "type") == "capitol" {
			f.Number = str(o, "phone")
		}
	}
	if f.Number == "" && len(offices) > 0 {
		f.Number = str(offices[0], "phone")
	}
	return f
}

func (openStatesAdapter) Offices(rec cache.Record) []OfficeFields {
	var out []OfficeFields
	for _, o := range officeRecords(rec) {
		if str(o, "type") == "capitol" {
			// capitol office is already the target's main number
			continue
		}
		phone := str(o, "phone")
		if phone == "" {
			continue
		}
		out = append(out, OfficeFields{
			Name:    str(o, "name"),
			Address: str(o, "address"),
			Number:  phone,
		})
	}
	return out
}

/* ===================== us governor ===================== */

type governorAdapter struct{}

func (governorAdapter) SplitKey(key string) (string, string) { return splitDash(key) }

func (governorAdapter) Target(rec cache.Record) TargetFields {
	return TargetFields{
		UID:      str(rec, "state"),
		Name:     personName(rec),
		Title:    str(rec, "title"),
		District: str(rec, "state"),
		Number:   str(rec, "phone"),
	}
}

func (governorAdapter) Offices(rec cache.Record) []OfficeFields { return nil }

/* ===================== ca (opennorth) ===================== */

type openNorthAdapter struct{}

// SplitKey is deliberately a no-op: OpenNorth boundary keys are built
// from district names which legitimately contain dashes.
func (openNorthAdapter) SplitKey(key string) (string, string) { return key, "" }

func (openNorthAdapter) Target(rec cache.Record) TargetFields {
	f := TargetFields{
		UID:      str(rec, "cache_key"),
		Name:     personName(rec),
		Title:    str(rec, "elected_office"),
		District: str(rec, "district_name"),
	}
	// the legislature office number is the main one
	for _, o := range officeRecords(rec) {
		if str(o, "type") == "legislature" {
			f.Number = str(o, "tel")
			break
		}
	}
	return f
}

func (openNorthAdapter) Offices(rec cache.Record) []OfficeFields {
	var out []OfficeFields
	for _, o := range officeRecords(rec) {
		if str(o, "type") == "legislature" {
			// captured as the target's main number
			continue
		}
		tel := str(o, "tel")
		if tel == "" {
			continue
		}
		out = append(out, OfficeFields{
			Name:    str(o, "type"),
			Address: str(o, "postal"),
			Number:  tel,
		})
	}
	return out
}
