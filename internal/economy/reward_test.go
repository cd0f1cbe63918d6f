package economy

import "testing"

func TestRewardBandsAscending(t *testing.T) {
	for i := 1; i < len(rewardBands); i++ {
		if rewardBands[i].upper <= rewardBands[i-1].upper {
			t.Fatalf("band %d upper %v not above band %d upper %v", i, rewardBands[i].upper, i-1, rewardBands[i-1].upper)
		}
		if rewardBands[i].amount >= rewardBands[i-1].amount {
			t.Fatalf("band %d amount %d not below band %d amount %d", i, rewardBands[i].amount, i-1, rewardBands[i-1].amount)
		}
	}
}

func TestDrawAwardBands(t *testing.T) {
	cases := []struct {
		draw   float64
		amount int64
		public bool
		hit    bool
	}{
		{0, 250, true, true},
		{0.0000009, 250, true, true},
		{0.000001, 100, true, true}, // exact boundary belongs to the next band
		{0.00001, 100, true, true},
		{0.0001, 50, true, true},
		{0.001, 25, true, true},
		{0.0035, 10, true, true},
		{0.005, 8, false, true},
		{0.01, 5, false, true},
		{0.03, 4, false, true},
		{0.06, 2, false, true},
		{0.1, 1, false, true},
		{0.19361, 0, false, false}, // at the last threshold: no award
		{0.5, 0, false, false},
		{0.999999, 0, false, false},
	}
	for _, tc := range cases {
		amount, public, hit := drawAward(tc.draw)
		if amount != tc.amount || public != tc.public || hit != tc.hit {
			t.Fatalf("drawAward(%v) = (%d, %v, %v), want (%d, %v, %v)",
				tc.draw, amount, public, hit, tc.amount, tc.public, tc.hit)
		}
	}
}

func TestDrawAwardEveryBandReachable(t *testing.T) {
	prev := 0.0
	for i, band := range rewardBands {
		mid := prev + (band.upper-prev)/2
		amount, public, hit := drawAward(mid)
		if !hit || amount != band.amount || public != band.public {
			t.Fatalf("band %d unreachable: drawAward(%v) = (%d, %v, %v)", i, mid, amount, public, hit)
		}
		prev = band.upper
	}
}
