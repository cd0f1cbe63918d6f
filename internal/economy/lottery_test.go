package economy

import (
	mathrand "math/rand"
	"testing"
)

func testPool() []Stake {
	return []Stake{
		{AccountID: 1, Amount: 10},
		{AccountID: 2, Amount: 20},
		{AccountID: 3, Amount: 30},
		{AccountID: 4, Amount: 40},
	}
}

func TestDrawWinnersDistinct(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		winners := drawWinners(rng, testPool(), 3)
		if len(winners) != 3 {
			t.Fatalf("got %d winners, want 3", len(winners))
		}
		seen := map[int64]bool{}
		for _, w := range winners {
			if seen[w] {
				t.Fatalf("account %d drawn twice in %v", w, winners)
			}
			seen[w] = true
		}
	}
}

func TestDrawWinnersMoreThanPool(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(7))
	winners := drawWinners(rng, testPool(), 10)
	if len(winners) != 4 {
		t.Fatalf("got %d winners, want every staker exactly once", len(winners))
	}
	seen := map[int64]bool{}
	for _, w := range winners {
		seen[w] = true
	}
	for _, st := range testPool() {
		if !seen[st.AccountID] {
			t.Fatalf("account %d missing from full draw %v", st.AccountID, winners)
		}
	}
}

func TestDrawWinnersEmptyAndZeroStakes(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(1))
	if got := drawWinners(rng, nil, 3); len(got) != 0 {
		t.Fatalf("empty pool drew %v", got)
	}
	pool := []Stake{{AccountID: 1, Amount: 0}, {AccountID: 2, Amount: -5}}
	if got := drawWinners(rng, pool, 1); len(got) != 0 {
		t.Fatalf("non-positive stakes drew %v", got)
	}
}

// A doubled stake should win the single-winner draw roughly twice as often.
func TestDrawWinnersProportionalToStake(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(99))
	pool := []Stake{
		{AccountID: 1, Amount: 100},
		{AccountID: 2, Amount: 200},
	}
	const trials = 30000
	wins := map[int64]int{}
	for i := 0; i < trials; i++ {
		winners := drawWinners(rng, pool, 1)
		if len(winners) != 1 {
			t.Fatalf("got %d winners, want 1", len(winners))
		}
		wins[winners[0]]++
	}
	ratio := float64(wins[2]) / float64(wins[1])
	if ratio < 1.8 || ratio > 2.2 {
		t.Fatalf("win ratio %.3f outside [1.8, 2.2] (wins: %v)", ratio, wins)
	}
}
