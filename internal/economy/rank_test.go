package economy

import "testing"

func TestResolveTier(t *testing.T) {
	cases := []struct {
		balance int64
		want    string
	}{
		{-5, "bronze"},
		{0, "bronze"},
		{99, "bronze"},
		{100, "silver"},
		{499, "silver"},
		{500, "gold"},
		{2499, "gold"},
		{2500, "platinum"},
		{9999, "platinum"},
		{10000, "diamond"},
		{1_000_000, "diamond"},
	}
	for _, tc := range cases {
		if got := ResolveTier(tc.balance); got.Name != tc.want {
			t.Fatalf("ResolveTier(%d) = %q, want %q", tc.balance, got.Name, tc.want)
		}
	}
}

func TestRankTiersOrdered(t *testing.T) {
	for i := 1; i < len(RankTiers); i++ {
		if RankTiers[i].Threshold <= RankTiers[i-1].Threshold {
			t.Fatalf("tier %q threshold %d not above %q threshold %d",
				RankTiers[i].Name, RankTiers[i].Threshold, RankTiers[i-1].Name, RankTiers[i-1].Threshold)
		}
		if RankTiers[i].Stipend < RankTiers[i-1].Stipend {
			t.Fatalf("tier %q stipend %d below %q stipend %d",
				RankTiers[i].Name, RankTiers[i].Stipend, RankTiers[i-1].Name, RankTiers[i-1].Stipend)
		}
	}
}
