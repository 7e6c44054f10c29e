package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of a per-date finalization job.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// RunSchemaVersion is stamped on new finalization records so operational
// tooling can tell which pipeline shape produced them.
const RunSchemaVersion = 1

// FinalizationRun is the per-date job state record, including the lease that
// grants one worker permission to process the date.
type FinalizationRun struct {
	ID                    uuid.UUID
	DateKey               string
	Status                RunStatus
	LeaseExpiresAt        time.Time
	Owner                 string
	Attempt               int
	StartedAt             time.Time
	FinishedAt            *time.Time
	ProcessedReservations int
	ProcessedClients      int
	ErrorMessage          string
	SchemaVersion         int
}

// Restaurant is the booking-subsystem configuration record. Exactly one
// restaurant is expected to be active; its timezone anchors all date math.
type Restaurant struct {
	ID       uuid.UUID
	Name     string
	Timezone string
	IsActive bool
}
