package domain

// ScoreVersion tracks the scoring model for auditing.
// Bump this when changing scoring logic significantly.
const ScoreVersion = "2026-v1"

// Score weights. The score is recomputed from the rolling counters on every
// aggregation pass, so changing a weight takes effect the next time a client
// is touched.
const (
	PointsPerVisit    = 10
	NoShowPenalty     = -50
	LateCancelPenalty = -20
)

// ScoreBreakdown records the per-category contributions that sum to a
// client's total score, retained alongside the score for audit.
type ScoreBreakdown struct {
	Visits            int `json:"visits"`
	NoShows           int `json:"noShows"`
	LateCancellations int `json:"lateCancellations"`
}

// Total returns the sum of all contributions.
func (b ScoreBreakdown) Total() int {
	return b.Visits + b.NoShows + b.LateCancellations
}

// ComputeScore derives the score and its breakdown from the rolling counters.
// It is a pure function of total-history counters and is always safe to
// recompute.
func ComputeScore(visits, noShows, lateCancellations int) (int, ScoreBreakdown) {
	breakdown := ScoreBreakdown{
		Visits:            visits * PointsPerVisit,
		NoShows:           noShows * NoShowPenalty,
		LateCancellations: lateCancellations * LateCancelPenalty,
	}
	return breakdown.Total(), breakdown
}

// Status thresholds for derived client classification.
const (
	vipMinVisits     = 5
	regularMinVisits = 3
	badGuestNoShows  = 2
)

// DeriveStatus classifies a client from its counters. First match wins:
// blacklist and repeat no-shows dominate, then loyalty tiers.
func DeriveStatus(visits, noShows int, blacklisted bool) ClientStatus {
	switch {
	case blacklisted || noShows >= badGuestNoShows:
		return StatusBadGuest
	case visits >= vipMinVisits && noShows == 0:
		return StatusVIP
	case visits >= regularMinVisits:
		return StatusRegular
	default:
		return StatusNew
	}
}
