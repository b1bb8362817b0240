package domain

import "time"

// PairKind tags a MarketPair for observability only; it never changes matching
// behavior.
type PairKind string

const (
	KindHeuristic15m PairKind = "HEURISTIC_15M"
	KindGeneric       PairKind = "GENERIC"
)

// MarketPair is an ordered tuple (EventK, EventP) the Matcher judged
// equivalent. Controller owns the authoritative set of these; BookCache and
// RiskGate hold no references to them.
type MarketPair struct {
	ID     string
	EventK MarketEvent
	EventP MarketEvent
	Kind   PairKind
}

// Expired reports whether either leg's resolution time has passed.
func (p *MarketPair) Expired(now time.Time) bool {
	return p.EventK.ResolutionTime.Before(now) || p.EventP.ResolutionTime.Before(now)
}
