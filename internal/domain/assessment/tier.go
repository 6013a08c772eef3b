package assessment

// ══════════════════════════════════════════════════════════════════════════════
// TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier is a performance band. Bands are closed at their lower edge.
type Tier string

const (
	TierGreen  Tier = "GREEN"  // score >= 85
	TierOrange Tier = "ORANGE" // 75 <= score < 85
	TierRed    Tier = "RED"    // 65 <= score < 75
	TierGray   Tier = "GRAY"   // score < 65
)

// Lower edges of each band.
const (
	GreenThreshold  = 85.0
	OrangeThreshold = 75.0
	RedThreshold    = 65.0
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierGreen, TierOrange, TierRed, TierGray}

// Classify maps a score to its tier. It is total: any float maps to exactly
// one tier, and the bands partition [0, 100] without gaps or overlap.
func Classify(score float64) Tier {
	switch {
	case score >= GreenThreshold:
		return TierGreen
	case score >= OrangeThreshold:
		return TierOrange
	case score >= RedThreshold:
		return TierRed
	default:
		return TierGray
	}
}

// IsValid checks if the tier is one of the four bands.
func (t Tier) IsValid() bool {
	switch t {
	case TierGreen, TierOrange, TierRed, TierGray:
		return true
	}
	return false
}

// Rank orders tiers: GREEN is 4, GRAY is 1, unknown is 0.
func (t Tier) Rank() int {
	switch t {
	case TierGreen:
		return 4
	case TierOrange:
		return 3
	case TierRed:
		return 2
	case TierGray:
		return 1
	}
	return 0
}

// String returns the string representation.
func (t Tier) String() string {
	return string(t)
}
