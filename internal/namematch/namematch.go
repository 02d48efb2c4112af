// Package namematch implements the name similarity tiers shared by the
// bounding-box backfill, the inventory reconciler and the duplicate-group
// finder.
//
// Precedence, strongest first:
//
//	TierExact      normalized names are equal
//	TierSubstring  one normalized name contains the other
//	TierWordSubset every word of the shorter normalized name appears in
//	               the longer one
//	TierNone       no similarity
//
// Callers state the weakest tier they accept; everything stronger also
// matches.
package namematch

import "strings"

// Tier is the strength of a name match.
type Tier int

const (
	TierNone Tier = iota
	TierWordSubset
	TierSubstring
	TierExact
)

// String returns a human-readable tier name for logs.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSubstring:
		return "substring"
	case TierWordSubset:
		return "word-subset"
	default:
		return "none"
	}
}

// Normalize lowercases a name and trims surrounding whitespace. All
// comparisons in this package operate on normalized names.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Match classifies the similarity between two names.
func Match(a, b string) Tier {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return TierNone
	}
	if na == nb {
		return TierExact
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return TierSubstring
	}
	if wordSubset(na, nb) {
		return TierWordSubset
	}
	return TierNone
}

// Matches reports whether a and b match at least as strongly as min.
func Matches(a, b string, min Tier) bool {
	return Match(a, b) >= min
}

// wordSubset reports whether every word of the shorter name appears in
// the longer one. A single shared word ("Red Chair" / "Red Mug") is not
// enough; the shorter name must be wholly contained word-wise.
func wordSubset(na, nb string) bool {
	wa := strings.Fields(na)
	wb := strings.Fields(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	if len(wb) < len(wa) {
		wa, wb = wb, wa
	}
	set := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		set[w] = struct{}{}
	}
	for _, w := range wa {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// BestIndex finds the strongest match for name among candidates, accepting
// matches of at least minTier. Candidates are scanned in reverse so that on
// equal strength the most recent (highest index) candidate wins. Returns
// -1 and TierNone when nothing qualifies.
func BestIndex(name string, candidates []string, minTier Tier) (int, Tier) {
	bestIdx := -1
	bestTier := TierNone
	for i := len(candidates) - 1; i >= 0; i-- {
		tier := Match(name, candidates[i])
		if tier < minTier {
			continue
		}
		if tier > bestTier {
			bestTier = tier
			bestIdx = i
			if bestTier == TierExact {
				break
			}
		}
	}
	return bestIdx, bestTier
}
