package political

import (
	"context"
)

// LocateTargets resolves the full, ordered list of target uids a
// caller should be connected with. skipSpecial drops the campaign's
// custom list from the merge, which admin previews use to inspect the
// pure location results.
func (r *Registry) LocateTargets(ctx context.Context, spec CampaignSpec, rawLocation string, skipSpecial bool) ([]string, error) {
	special := append([]string(nil), spec.CustomTargets...)
	if spec.TargetOrder == OrderShuffle {
		r.deps.Rand.Shuffle(len(special), func(i, j int) {
			special[i], special[j] = special[j], special[i]
		})
	}

	if spec.SegmentBy == SegmentByCustom {
		return special, nil
	}

	provider, err := r.Provider(spec.Country)
	if err != nil {
		return nil, err
	}

	ct, err := provider.CampaignType(spec.Type)
	if err != nil {
		// a stored campaign naming an unknown type is operator
		// misconfiguration; strand no calls over it
		r.deps.Log.Error("campaign type not available", "campaign", spec.ID,
			"country", spec.Country, "type", spec.Type, "err", err)
		return []string{}, nil
	}

	location := provider.GetLocation(ctx, spec.LocateBy, rawLocation)
	groups := ct.AllTargets(ctx, location, spec.Region)
	located := ct.SortTargets(groups, spec.Subtype, spec.TargetOrder)

	if skipSpecial || len(special) == 0 {
		return located, nil
	}

	switch spec.IncludeSpecial {
	case IncludeSpecialOnly:
		// keep only custom targets the location also produced,
		// preserving the custom list's order
		return intersect(special, located), nil
	case IncludeSpecialFirst:
		return dedupe(special, located), nil
	case IncludeSpecialLast:
		return dedupe(located, special), nil
	default:
		// a non-empty custom list with no merge policy takes priority
		// over location results
		if spec.IncludeSpecial != "" {
			r.deps.Log.Warn("unknown include_special policy", "campaign", spec.ID,
				"policy", spec.IncludeSpecial)
		}
		return special, nil
	}
}

// dedupe concatenates the two lists, dropping later duplicates.
func dedupe(first, second []string) []string {
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, uid := range first {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	for _, uid := range second {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	return out
}

// intersect keeps entries of keep that also appear in within,
// preserving keep's order.
func intersect(keep, within []string) []string {
	allowed := make(map[string]bool, len(within))
	for _, uid := range within {
		allowed[uid] = true
	}
	out := make([]string, 0, len(keep))
	for _, uid := range keep {
		if allowed[uid] {
			out = append(out, uid)
		}
	}
	return out
}
