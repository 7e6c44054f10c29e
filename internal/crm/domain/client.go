package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClientStatus is the derived classification of a client.
type ClientStatus string

const (
	StatusNew      ClientStatus = "new"
	StatusRegular  ClientStatus = "regular"
	StatusVIP      ClientStatus = "vip"
	StatusBadGuest ClientStatus = "bad_guest"
)

// MaintenanceState marks whether a client's counters can be trusted for
// incremental aggregation. A client in rebuild_pending had a manual
// correction or backdated edit and must be fully recounted from the ledger
// before incremental updates resume.
type MaintenanceState string

const (
	MaintenanceActive         MaintenanceState = "active"
	MaintenanceRebuildPending MaintenanceState = "rebuild_pending"
)

// Client is a customer identity with its rolling aggregate profile.
type Client struct {
	ID           uuid.UUID
	PrimaryPhone string
	AltPhones    []string
	AltEmails    []string
	FirstName    string
	LastName     string
	Email        string
	SearchText   string

	PreferredLanguage string
	AcquisitionSource string

	Visits                int
	NoShows               int
	RehabilitatedNoShows  int
	Cancellations         int
	LateCancellations     int
	DeparturesBeforeOrder int

	Score          int
	ScoreBreakdown ScoreBreakdown
	ScoreVersion   string
	Status         ClientStatus

	BlacklistedAt    *time.Time
	MaintenanceState MaintenanceState
	RebuildReason    string

	FirstSeenAt     time.Time
	LastVisitAt     *time.Time
	UpdatedAt       time.Time
	AnonymizedAt    *time.Time
	AnonymizeReason string
}

// Blacklisted reports whether the client carries the blacklist marker.
func (c Client) Blacklisted() bool {
	return c.BlacklistedAt != nil
}

// Counters bundles the rolling outcome counters.
type Counters struct {
	Visits                int
	NoShows               int
	RehabilitatedNoShows  int
	Cancellations         int
	LateCancellations     int
	DeparturesBeforeOrder int
}

// ApplyEntry folds one ledger entry into the counters. lastVisitAt tracking
// is the caller's concern since it needs the entry timestamp.
func (t *Counters) ApplyEntry(outcome Outcome) {
	switch outcome {
	case OutcomeCompleted:
		t.Visits++
	case OutcomeCompletedRehabilitated:
		t.Visits++
		t.RehabilitatedNoShows++
	case OutcomeNoShow:
		t.NoShows++
	case OutcomeCancelled:
		t.Cancellations++
	case OutcomeLateCancelled:
		t.LateCancellations++
	case OutcomeDepartureBeforeOrder:
		t.DeparturesBeforeOrder++
	}
}

// ClientSeed is the identity material extracted from one reservation, already
// normalized (phone key, canonical email, search text).
type ClientSeed struct {
	PhoneKey          string
	Email             string
	FirstName         string
	LastName          string
	PreferredLanguage string
	AcquisitionSource string
}

// NewClient creates a fresh client record from a seed: zeroed counters,
// status new, identity taken from the reservation.
func NewClient(seed ClientSeed, now time.Time) Client {
	c := Client{
		ID:                uuid.New(),
		PrimaryPhone:      seed.PhoneKey,
		AltPhones:         []string{},
		AltEmails:         []string{},
		FirstName:         seed.FirstName,
		LastName:          seed.LastName,
		Email:             seed.Email,
		PreferredLanguage: seed.PreferredLanguage,
		AcquisitionSource: seed.AcquisitionSource,
		ScoreVersion:      ScoreVersion,
		Status:            StatusNew,
		MaintenanceState:  MaintenanceActive,
		FirstSeenAt:       now,
		UpdatedAt:         now,
	}
	return c
}

// MergeIdentity merges a seed into an existing client additively: empty
// scalar fields are filled, never overwritten; the alternate email set grows
// when the seed's email differs from the stored primary. Returns the merged
// client and whether anything changed. SearchText is the caller's to
// recompute from the merged fields.
func MergeIdentity(c Client, seed ClientSeed) (Client, bool) {
	changed := false

	if c.FirstName == "" && seed.FirstName != "" {
		c.FirstName = seed.FirstName
		changed = true
	}
	if c.LastName == "" && seed.LastName != "" {
		c.LastName = seed.LastName
		changed = true
	}
	if c.Email == "" && seed.Email != "" {
		c.Email = seed.Email
		changed = true
	} else if seed.Email != "" && seed.Email != c.Email && !contains(c.AltEmails, seed.Email) {
		c.AltEmails = append(c.AltEmails, seed.Email)
		changed = true
	}
	if c.PreferredLanguage == "" && seed.PreferredLanguage != "" {
		c.PreferredLanguage = seed.PreferredLanguage
		changed = true
	}
	if c.AcquisitionSource == "" && seed.AcquisitionSource != "" {
		c.AcquisitionSource = seed.AcquisitionSource
		changed = true
	}

	return c, changed
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
