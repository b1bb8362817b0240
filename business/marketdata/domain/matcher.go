package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// knownAssets is the fixed set of asset substrings the extractor recognizes.
var knownAssets = []string{"BTC", "ETH", "SOL"}

// sourceAliasGroups lets "Coinbase" match "coinbase.com" or "Coinbase Pro"
// without demanding exact string equality.
var sourceAliasGroups = [][]string{
	{"coinbase"},
	{"binance"},
	{"chainlink"},
	{"kraken"},
}

const maxResolutionSkew = 60 * time.Second

// Matcher decides whether two MarketEvents on different venues refer to the
// same real-world event. Equivalence is symmetric: Equivalent(a, b) ==
// Equivalent(b, a) for all inputs, by construction (rule 1 only compares
// venue tags, and every later rule is itself symmetric).
type Matcher struct {
	TitleSimilarityThreshold float64
}

// NewMatcher builds a Matcher with the given minimum title-similarity score
// for the rule-6 fallback.
func NewMatcher(titleSimilarityThreshold float64) *Matcher {
	return &Matcher{TitleSimilarityThreshold: titleSimilarityThreshold}
}

// Equivalent applies the six ordered rules from the component design, in
// order, rejecting on the first failing rule.
func (m *Matcher) Equivalent(a, b MarketEvent) bool {
	// Rule 1: different venue.
	if a.Venue == b.Venue {
		return false
	}

	// Rule 2: resolution times within 60s of each other.
	skew := a.ResolutionTime.Sub(b.ResolutionTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxResolutionSkew {
		return false
	}

	// Rule 3: asset extraction must intersect.
	assetsA := extractAssets(a.Title)
	assetsB := extractAssets(b.Title)
	if !intersects(assetsA, assetsB) {
		return false
	}

	// Rule 4: direction parity / strike agreement.
	if !m.directionCompatible(a.Title, b.Title) {
		return false
	}

	// Rule 5: resolution-source compatibility, only if both declare one.
	if a.ResolutionSource != "" && b.ResolutionSource != "" {
		if !sourceCompatible(a.ResolutionSource, b.ResolutionSource) {
			return false
		}
	}

	// Rule 6: fallback title similarity.
	if titleSimilarity(a.Title, b.Title) < m.TitleSimilarityThreshold {
		return false
	}

	return true
}

// Pair builds a MarketPair from two equivalent events, tagging it
// HEURISTIC_15M when both resolution times fall on a 15-minute boundary
// (the common cadence for the "up or down" markets this bot targets),
// otherwise GENERIC.
func (m *Matcher) Pair(id string, eventK, eventP MarketEvent) MarketPair {
	kind := KindGeneric
	if eventK.ResolutionTime.Minute()%15 == 0 && eventP.ResolutionTime.Minute()%15 == 0 {
		kind = KindHeuristic15m
	}
	return MarketPair{ID: id, EventK: eventK, EventP: eventP, Kind: kind}
}

func extractAssets(title string) []string {
	upper := strings.ToUpper(title)
	var found []string
	for _, asset := range knownAssets {
		if strings.Contains(upper, asset) {
			found = append(found, asset)
		}
	}
	return found
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func (m *Matcher) directionCompatible(titleA, titleB string) bool {
	lowerA, lowerB := strings.ToLower(titleA), strings.ToLower(titleB)

	upDownA := strings.Contains(lowerA, "up") && strings.Contains(lowerA, "down")
	upDownB := strings.Contains(lowerB, "up") && strings.Contains(lowerB, "down")
	if upDownA && upDownB {
		return true
	}

	strikeA, okA := extractStrike(titleA)
	strikeB, okB := extractStrike(titleB)
	switch {
	case okA && okB:
		return math.Abs(strikeA-strikeB) <= 10
	case okA != okB:
		return false
	default:
		// Neither side carries a recognizable strike or up/down marker;
		// defer to the title-similarity fallback (rule 6).
		return true
	}
}

// extractStrike pulls the first "$NNN" (or "NNN") token above $500 from title.
func extractStrike(title string) (float64, bool) {
	var digits strings.Builder
	flush := func() (float64, bool) {
		if digits.Len() == 0 {
			return 0, false
		}
		s := digits.String()
		digits.Reset()
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 500 {
			return 0, false
		}
		return v, true
	}

	for _, r := range title {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ',':
			// thousands separator, skip without flushing
		default:
			if v, ok := flush(); ok {
				return v, true
			}
		}
	}
	return flush()
}

func sourceCompatible(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return true
	}
	for _, group := range sourceAliasGroups {
		inA, inB := false, false
		for _, alias := range group {
			if strings.Contains(la, alias) {
				inA = true
			}
			if strings.Contains(lb, alias) {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// titleSimilarity returns a normalized character-level similarity ratio in
// [0, 1], case-folded, based on longest-common-subsequence length.
func titleSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(la, lb)
	return float64(2*lcs) / float64(len(la)+len(lb))
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
