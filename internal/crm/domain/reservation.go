package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reservation statuses as written by the booking subsystem.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationSeated    = "seated"
	ReservationCompleted = "completed"
	ReservationNoShow    = "noshow"
	ReservationCancelled = "cancelled"
	ReservationRefused   = "refused"
	ReservationIncident  = "incident"
)

// Reservation is a booking-subsystem record, read-only for the CRM except the
// client_id back-fill once identity is resolved.
type Reservation struct {
	ID                uuid.UUID
	DateKey           string
	Phone             string
	Email             string
	FirstName         string
	LastName          string
	Status            string
	MarkedNoShowAt    *time.Time
	ClientID          *uuid.UUID
	PreferredLanguage string
	AcquisitionSource string
}

// ReservationEvent is one entry of the reservation's status-change audit
// trail, consumed to disambiguate cancellation subtypes.
type ReservationEvent struct {
	ID                 uuid.UUID
	ReservationID      uuid.UUID
	EventType          string
	FromStatus         string
	ToStatus           string
	IsLateCancellation bool
	CreatedAt          time.Time
}

// LedgerEntry is the immutable per-reservation outcome fact.
type LedgerEntry struct {
	ID            uuid.UUID
	DateKey       string
	ClientID      uuid.UUID
	ReservationID uuid.UUID
	Outcome       Outcome
	Points        int
	CreatedAt     time.Time
}
