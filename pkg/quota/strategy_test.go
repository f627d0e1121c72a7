package quota

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestScore_Weighting(t *testing.T) {
	tests := []struct {
		name   string
		better candidate
		worse  candidate
	}{
		{
			name:   "more headroom wins",
			better: candidate{name: "a", remainingFraction: 0.9, costWeight: 1, quality: 0.7},
			worse:  candidate{name: "b", remainingFraction: 0.1, costWeight: 1, quality: 0.7},
		},
		{
			name:   "cheaper provider wins",
			better: candidate{name: "a", remainingFraction: 0.5, costWeight: 1, quality: 0.7},
			worse:  candidate{name: "b", remainingFraction: 0.5, costWeight: 3, quality: 0.7},
		},
		{
			name:   "higher quality wins",
			better: candidate{name: "a", remainingFraction: 0.5, costWeight: 1, quality: 0.95},
			worse:  candidate{name: "b", remainingFraction: 0.5, costWeight: 1, quality: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if score(tt.better) <= score(tt.worse) {
				t.Errorf("score(%+v) = %v, not greater than score(%+v) = %v",
					tt.better, score(tt.better), tt.worse, score(tt.worse))
			}
		})
	}
}

func TestRankCandidates_Order(t *testing.T) {
	ranked := rankCandidates([]candidate{
		{name: "lowheadroom", remainingFraction: 0.05, costWeight: 1, quality: 0.9},
		{name: "healthy", remainingFraction: 0.95, costWeight: 1, quality: 0.7},
		{name: "pricey", remainingFraction: 0.95, costWeight: 5, quality: 0.7},
	})

	if len(ranked) != 3 {
		t.Fatalf("len(ranked) = %d, want 3", len(ranked))
	}
	if ranked[0] != "healthy" {
		t.Errorf("ranked[0] = %q, want %q (order: %v)", ranked[0], "healthy", ranked)
	}
	if ranked[len(ranked)-1] != "lowheadroom" {
		t.Errorf("last = %q, want %q (order: %v)", ranked[len(ranked)-1], "lowheadroom", ranked)
	}
}

// Exhausted providers are skipped entirely, not merely ranked last.
func TestRankCandidates_ExhaustedSkipped(t *testing.T) {
	ranked := rankCandidates([]candidate{
		{name: "spent", exhausted: true, costWeight: 1, quality: 0.99},
		{name: "fresh", remainingFraction: 0.5, costWeight: 1, quality: 0.5},
	})

	if len(ranked) != 1 {
		t.Fatalf("ranked = %v, want exhausted provider excluded", ranked)
	}
	if ranked[0] != "fresh" {
		t.Errorf("ranked[0] = %q, want %q", ranked[0], "fresh")
	}
}

// When every provider is exhausted they are still returned: an exhausted
// provider is attempted when it is the only one with capability.
func TestRankCandidates_AllExhaustedLastResort(t *testing.T) {
	ranked := rankCandidates([]candidate{
		{name: "a", exhausted: true, costWeight: 1, quality: 0.3},
		{name: "b", exhausted: true, costWeight: 1, quality: 0.9},
	})

	if len(ranked) != 2 {
		t.Fatalf("ranked = %v, want both exhausted providers as last resort", ranked)
	}
	if ranked[0] != "b" {
		t.Errorf("ranked[0] = %q, want higher quality %q first", ranked[0], "b")
	}
}

func TestRankCandidates_Deterministic(t *testing.T) {
	input := []candidate{
		{name: "b", remainingFraction: 0.5, costWeight: 1, quality: 0.7},
		{name: "a", remainingFraction: 0.5, costWeight: 1, quality: 0.7},
	}

	first := rankCandidates(append([]candidate(nil), input...))
	for i := 0; i < 5; i++ {
		got := rankCandidates(append([]candidate(nil), input...))
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("ranking not deterministic: %v vs %v", got, first)
			}
		}
	}

	// Equal scores tie-break lexicographically.
	if first[0] != "a" {
		t.Errorf("tie-break order = %v, want a first", first)
	}
}

func TestQuotaKey_DateScoped(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)

	k1 := quotaKey("googlebooks", day1)
	k2 := quotaKey("googlebooks", day2)

	if k1 == k2 {
		t.Error("quota keys for different days must differ (daily reset is implicit)")
	}
	if k1 != "bookmeta:quota:googlebooks:2026-03-01" {
		t.Errorf("key = %q", k1)
	}
}

func TestNewStrategy_CostWeightFloor(t *testing.T) {
	s := NewStrategy(nil, []ProviderSpec{{Name: "free", DailyQuota: 100, CostWeight: 0}}, zerolog.Nop())

	if s.specs["free"].CostWeight != 1 {
		t.Errorf("CostWeight = %v, want floored to 1", s.specs["free"].CostWeight)
	}
}
