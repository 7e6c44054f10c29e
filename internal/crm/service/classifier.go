package service

import (
	"resto_crm_backend/internal/crm/domain"
)

// Classify maps one reservation and its status-change history to a ledger
// outcome. The second return value is false for non-terminal statuses, which
// produce no ledger row.
//
// Cancellation sub-classification inspects the entire event history:
// a seated->cancelled transition (guest left before ordering) takes
// precedence over a late-cancellation flag when both could apply.
func Classify(res domain.Reservation, events []domain.ReservationEvent) (domain.Outcome, bool) {
	switch res.Status {
	case domain.ReservationCompleted:
		if res.MarkedNoShowAt != nil {
			return domain.OutcomeCompletedRehabilitated, true
		}
		return domain.OutcomeCompleted, true

	case domain.ReservationNoShow:
		return domain.OutcomeNoShow, true

	case domain.ReservationCancelled:
		return classifyCancellation(events), true

	default:
		// pending, confirmed, seated, refused, incident: not terminal for
		// the ledger.
		return "", false
	}
}

func classifyCancellation(events []domain.ReservationEvent) domain.Outcome {
	late := false
	for _, event := range events {
		if event.FromStatus == domain.ReservationSeated && event.ToStatus == domain.ReservationCancelled {
			return domain.OutcomeDepartureBeforeOrder
		}
		if event.IsLateCancellation {
			late = true
		}
	}
	if late {
		return domain.OutcomeLateCancelled
	}
	return domain.OutcomeCancelled
}
