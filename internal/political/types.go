package political

import (
	"context"
	"math/rand"

	"callserver/internal/political/geocode"
)

// staticType covers campaign types whose targets do not depend on the
// caller's location: executives with a fixed comment line, and local
// or custom campaigns whose targets come from the campaign itself.
type staticType struct {
	name string
	uids []string
}

func (t staticType) Name() string { return t.name }

func (t staticType) AllTargets(ctx context.Context, loc geocode.Location, region string) map[string][]string {
	if len(t.uids) == 0 {
		return map[string][]string{}
	}
	return map[string][]string{SubtypeExec: append([]string(nil), t.uids...)}
}

func (t staticType) SortTargets(groups map[string][]string, subtype, order string) []string {
	return append([]string(nil), groups[SubtypeExec]...)
}

// sortChambers flattens upper and lower chamber groups per the
// campaign's subtype and ordering. It always returns a fresh slice so
// callers can append without aliasing the group maps.
func sortChambers(groups map[string][]string, subtype, order string, rnd *rand.Rand) []string {
	var result []string
	switch subtype {
	case SubtypeBoth:
		if order == OrderUpperFirst {
			result = append(result, groups[SubtypeUpper]...)
			result = append(result, groups[SubtypeLower]...)
		} else {
			result = append(result, groups[SubtypeLower]...)
			result = append(result, groups[SubtypeUpper]...)
		}
	case SubtypeUpper:
		result = append(result, groups[SubtypeUpper]...)
	case SubtypeLower:
		result = append(result, groups[SubtypeLower]...)
	}

	if order == OrderShuffle && rnd != nil {
		rnd.Shuffle(len(result), func(i, j int) {
			result[i], result[j] = result[j], result[i]
		})
	}
	return result
}
