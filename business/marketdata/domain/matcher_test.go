package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func event(venue Venue, title string, resolution time.Time) MarketEvent {
	return MarketEvent{
		Venue:          venue,
		InstrumentID:   string(venue) + "-" + title,
		Title:          title,
		ResolutionTime: resolution,
		YesAsk:         decimal.RequireFromString("0.5"),
		NoAsk:          decimal.RequireFromString("0.5"),
	}
}

func TestMatcherEquivalentSymmetric(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(0.5)

	tests := []struct {
		name   string
		titleA string
		titleB string
	}{
		{"identical_titles", "BTC up or down 3pm", "BTC up or down 3pm"},
		{"shared_strike", "BTC above $50,000?", "Will BTC close above 50000"},
		{"unrelated_assets", "BTC up or down 3pm", "ETH up or down 3pm"},
		{"different_resolution_source", "BTC above $1000 per coinbase.com", "BTC above $1000 per chainlink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := event(VenueK, tt.titleA, now)
			b := event(VenueP, tt.titleB, now)

			ab := m.Equivalent(a, b)
			ba := m.Equivalent(b, a)
			if ab != ba {
				t.Errorf("Equivalent not symmetric: Equivalent(a,b)=%v Equivalent(b,a)=%v", ab, ba)
			}
		})
	}
}

func TestMatcherEquivalentSameVenueRejected(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(0.5)
	a := event(VenueK, "BTC up or down 3pm", now)
	b := event(VenueK, "BTC up or down 3pm", now)
	if m.Equivalent(a, b) {
		t.Error("Equivalent should reject two events on the same venue")
	}
}

func TestMatcherEquivalentResolutionSkew(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(0.5)

	a := event(VenueK, "BTC up or down 3pm", base)
	withinSkew := event(VenueP, "BTC up or down 3pm", base.Add(59*time.Second))
	if !m.Equivalent(a, withinSkew) {
		t.Error("expected events within 60s resolution skew to match")
	}

	beyondSkew := event(VenueP, "BTC up or down 3pm", base.Add(61*time.Second))
	if m.Equivalent(a, beyondSkew) {
		t.Error("expected events beyond 60s resolution skew to reject")
	}
}

func TestMatcherEquivalentStrikeTolerance(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(0.5)

	a := event(VenueK, "BTC above 50000", now)
	near := event(VenueP, "BTC above 50005", now)
	if !m.Equivalent(a, near) {
		t.Error("expected strikes within 10 to match")
	}

	far := event(VenueP, "BTC above 50500", now)
	if m.Equivalent(a, far) {
		t.Error("expected strikes beyond 10 to reject")
	}
}

func TestMatcherPairKind(t *testing.T) {
	m := NewMatcher(0.5)
	quarterHour := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)
	offHour := time.Date(2026, 1, 1, 12, 17, 0, 0, time.UTC)

	a := event(VenueK, "BTC up or down 3pm", quarterHour)
	b := event(VenueP, "BTC up or down 3pm", quarterHour)
	pair := m.Pair("p1", a, b)
	if pair.Kind != KindHeuristic15m {
		t.Errorf("expected KindHeuristic15m for 15-minute-aligned resolutions, got %s", pair.Kind)
	}

	c := event(VenueP, "BTC up or down 3pm", offHour)
	pair2 := m.Pair("p2", a, c)
	if pair2.Kind != KindGeneric {
		t.Errorf("expected KindGeneric for off-cadence resolutions, got %s", pair2.Kind)
	}
}
