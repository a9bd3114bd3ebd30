package priority

import "time"

// RecencyBonus returns the additive score for an article that is hours old.
// Breakpoints are inclusive upper bounds.
func RecencyBonus(hours float64) float64 {
	switch {
	case hours <= 1:
		return 15
	case hours <= 6:
		return 10
	case hours <= 24:
		return 5
	case hours <= 168:
		return 2
	}
	return 0
}

// RecencyBonusAt is RecencyBonus for a publish time observed at now.
func RecencyBonusAt(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	return RecencyBonus(now.Sub(published).Hours())
}

// RefreshedScore is the score written by the priority refresh job.
func RefreshedScore(l Label, published, now time.Time) float64 {
	return LegacyScore(l) + RecencyBonusAt(published, now)
}
