// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"resto_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// CRM Domain Events
// =============================================================================

// DateFinalized is published when a finalization run completes successfully
// for one calendar date.
type DateFinalized struct {
	BaseEvent
	DateKey               string `json:"dateKey"`
	Attempt               int    `json:"attempt"`
	ProcessedReservations int    `json:"processedReservations"`
	ProcessedClients      int    `json:"processedClients"`
}

func (e DateFinalized) EventName() string { return "crm.finalization.date_finalized" }

// FinalizationFailed is published when processing a date fails; the date stays
// retryable by a later trigger.
type FinalizationFailed struct {
	BaseEvent
	DateKey string `json:"dateKey"`
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason"`
}

func (e FinalizationFailed) EventName() string { return "crm.finalization.failed" }

// ClientAnonymized is published when the retention purger scrubs a client.
type ClientAnonymized struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	Reason   string    `json:"reason"`
}

func (e ClientAnonymized) EventName() string { return "crm.retention.client_anonymized" }
