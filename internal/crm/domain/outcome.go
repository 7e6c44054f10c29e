package domain

// Outcome is the terminal classification of a reservation in the client ledger.
type Outcome string

const (
	OutcomeCompleted              Outcome = "completed"
	OutcomeCompletedRehabilitated Outcome = "completed_rehabilitated"
	OutcomeNoShow                 Outcome = "noshow"
	OutcomeCancelled              Outcome = "cancelled"
	OutcomeLateCancelled          Outcome = "late_cancelled"
	OutcomeDepartureBeforeOrder   Outcome = "departure_before_order"
)

// Points returns the score contribution recorded on the ledger entry for this
// outcome.
func (o Outcome) Points() int {
	switch o {
	case OutcomeCompleted, OutcomeCompletedRehabilitated:
		return PointsPerVisit
	case OutcomeNoShow:
		return NoShowPenalty
	case OutcomeLateCancelled:
		return LateCancelPenalty
	default:
		return 0
	}
}

// Valid reports whether o is a known ledger outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeCompletedRehabilitated, OutcomeNoShow,
		OutcomeCancelled, OutcomeLateCancelled, OutcomeDepartureBeforeOrder:
		return true
	}
	return false
}
