package economy

// rewardBand maps a cumulative probability upper bound to an award. Bands
// are walked in ascending-threshold order with strict < comparisons so a
// draw at an exact boundary belongs to the next band; draws at or above the
// last threshold yield no award.
type rewardBand struct {
	upper  float64
	amount int64
	public bool
}

var rewardBands = []rewardBand{
	{0.000001, 250, true},
	{0.000011, 100, true},
	{0.000111, 50, true},
	{0.00111, 25, true},
	{0.00361, 10, true},
	{0.00861, 8, false},
	{0.01861, 5, false},
	{0.04361, 4, false},
	{0.09361, 2, false},
	{0.19361, 1, false},
}

// drawAward resolves a uniform draw r in [0,1) against the band table.
// hit is false when the draw lands above every band.
func drawAward(r float64) (amount int64, public bool, hit bool) {
	for _, band := range rewardBands {
		if r < band.upper {
			return band.amount, band.public, true
		}
	}
	return 0, false, false
}
