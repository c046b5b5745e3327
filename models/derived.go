// ABOUTME: Pure derived accessors for stakeholder scores
// ABOUTME: Computes engagement quadrant and relationship quality without storing them
package models

// RelationshipStrength constants.
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// Quadrant constants, ordered by engagement priority.
const (
	QuadrantManageClosely = 1 // high impact, high influence
	QuadrantKeepSatisfied = 2 // high impact, low influence
	QuadrantMonitor       = 3 // low impact, low influence
	QuadrantKeepInformed  = 4 // low impact, high influence
)

const quadrantThreshold = 6

// RelationshipQuality buckets a relationship score. ok is false when unset.
func RelationshipQuality(relationship *int) (string, bool) {
	if relationship == nil {
		return "", false
	}
	switch r := *relationship; {
	case r >= 7:
		return StrengthStrong, true
	case r >= 4:
		return StrengthMedium, true
	default:
		return StrengthWeak, true
	}
}

// Quadrant places influence and impact scores into one of four quadrants.
// ok is false when either score is unset.
func Quadrant(influence, impact *int) (int, bool) {
	if influence == nil || impact == nil {
		return 0, false
	}
	highImpact := *impact >= quadrantThreshold
	highInfluence := *influence >= quadrantThreshold

	switch {
	case highImpact && highInfluence:
		return QuadrantManageClosely, true
	case highImpact:
		return QuadrantKeepSatisfied, true
	case !highInfluence:
		return QuadrantMonitor, true
	default:
		return QuadrantKeepInformed, true
	}
}

// QuadrantLabel returns a short engagement label for a quadrant number.
func QuadrantLabel(q int) string {
	switch q {
	case QuadrantManageClosely:
		return "manage closely"
	case QuadrantKeepSatisfied:
		return "keep satisfied"
	case QuadrantMonitor:
		return "monitor"
	case QuadrantKeepInformed:
		return "keep informed"
	default:
		return ""
	}
}
