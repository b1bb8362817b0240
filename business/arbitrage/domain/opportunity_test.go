package domain

import "testing"

func TestOpportunityIsProfitable(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		actionable bool
		want       bool
	}{
		{"actionable_hard", KindHard, true, true},
		{"non_actionable_hard", KindHard, false, false},
		{"actionable_prob_never_counts", KindProb, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Opportunity{Kind: tt.kind, Actionable: tt.actionable}
			if got := o.IsProfitable(); got != tt.want {
				t.Errorf("IsProfitable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	if DirectionYesKNoP.String() == DirectionNoKYesP.String() {
		t.Error("expected the two directions to have distinct descriptions")
	}
	if Direction("bogus").String() != "Unknown" {
		t.Error("expected an unrecognized direction to describe itself as Unknown")
	}
}
