// Package transport defines the HTTP request/response shapes for the CRM
// module.
package transport

import (
	"time"

	"resto_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

// ListClientsRequest filters the admin client listing.
type ListClientsRequest struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=new regular vip bad_guest"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// ClientResponse is the read-only client profile exposed to admin reporting.
type ClientResponse struct {
	ID                uuid.UUID `json:"id"`
	PrimaryPhone      string    `json:"primaryPhone"`
	AltPhones         []string  `json:"altPhones"`
	AltEmails         []string  `json:"altEmails"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty"`
	AcquisitionSource string    `json:"acquisitionSource,omitempty"`

	Visits                int `json:"visits"`
	NoShows               int `json:"noShows"`
	RehabilitatedNoShows  int `json:"rehabilitatedNoShows"`
	Cancellations         int `json:"cancellations"`
	LateCancellations     int `json:"lateCancellations"`
	DeparturesBeforeOrder int `json:"departuresBeforeOrder"`

	Score          int                   `json:"score"`
	ScoreBreakdown domain.ScoreBreakdown `json:"scoreBreakdown"`
	ScoreVersion   string                `json:"scoreVersion"`
	Status         string                `json:"status"`

	Blacklisted    bool   `json:"blacklisted"`
	RebuildPending bool   `json:"rebuildPending"`
	RebuildReason  string `json:"rebuildReason,omitempty"`

	FirstSeenAt  time.Time  `json:"firstSeenAt"`
	LastVisitAt  *time.Time `json:"lastVisitAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	AnonymizedAt *time.Time `json:"anonymizedAt,omitempty"`
}

// ClientListResponse is a paginated page of clients.
type ClientListResponse struct {
	Items    []ClientResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// LedgerEntryResponse is one immutable outcome fact.
type LedgerEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	DateKey       string    `json:"dateKey"`
	ReservationID uuid.UUID `json:"reservationId"`
	Outcome       string    `json:"outcome"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LedgerListResponse is a paginated outcome history for one client.
type LedgerListResponse struct {
	Items    []LedgerEntryResponse `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// RunResponse exposes finalization job health.
type RunResponse struct {
	DateKey               string     `json:"dateKey"`
	Status                string     `json:"status"`
	LeaseExpiresAt        time.Time  `json:"leaseExpiresAt"`
	Owner                 string     `json:"owner"`
	Attempt               int        `json:"attempt"`
	StartedAt             time.Time  `json:"startedAt"`
	FinishedAt            *time.Time `json:"finishedAt,omitempty"`
	ProcessedReservations int        `json:"processedReservations"`
	ProcessedClients      int        `json:"processedClients"`
	ErrorMessage          string     `json:"errorMessage,omitempty"`
	SchemaVersion         int        `json:"schemaVersion"`
}

// RunListResponse lists recent finalization records.
type RunListResponse struct {
	Items []RunResponse `json:"items"`
}

// ForceFinalizeRequest asks for an immediate out-of-schedule finalization.
type ForceFinalizeRequest struct {
	DateKey string `uri:"dateKey" binding:"required" validate:"datekey"`
}

// RebuildRequest flags a client for a full counter rebuild.
type RebuildRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BlacklistRequest sets or clears the client blacklist marker.
type BlacklistRequest struct {
	Blacklisted bool `json:"blacklisted"`
}

// FromClient maps a domain client to its response shape.
func FromClient(c domain.Client) ClientResponse {
	return ClientResponse{
		ID:                    c.ID,
		PrimaryPhone:          c.PrimaryPhone,
		AltPhones:             c.AltPhones,
		AltEmails:             c.AltEmails,
		FirstName:             c.FirstName,
		LastName:              c.LastName,
		Email:                 c.Email,
		PreferredLanguage:     c.PreferredLanguage,
		AcquisitionSource:     c.AcquisitionSource,
		Visits:                c.Visits,
		NoShows:               c.NoShows,
		RehabilitatedNoShows:  c.RehabilitatedNoShows,
		Cancellations:         c.Cancellations,
		LateCancellations:     c.LateCancellations,
		DeparturesBeforeOrder: c.DeparturesBeforeOrder,
		Score:                 c.Score,
		ScoreBreakdown:        c.ScoreBreakdown,
		ScoreVersion:          c.ScoreVersion,
		Status:                string(c.Status),
		Blacklisted:           c.Blacklisted(),
		RebuildPending:        c.MaintenanceState == domain.MaintenanceRebuildPending,
		RebuildReason:         c.RebuildReason,
		FirstSeenAt:           c.FirstSeenAt,
		LastVisitAt:           c.LastVisitAt,
		UpdatedAt:             c.UpdatedAt,
		AnonymizedAt:          c.AnonymizedAt,
	}
}

// FromLedgerEntry maps a domain ledger entry to its response shape.
func FromLedgerEntry(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		DateKey:       e.DateKey,
		ReservationID: e.ReservationID,
		Outcome:       string(e.Outcome),
		Points:        e.Points,
		CreatedAt:     e.CreatedAt,
	}
}

// FromRun maps a domain finalization record to its response shape.
func FromRun(r domain.FinalizationRun) RunResponse {
	return RunResponse{
		DateKey:               r.DateKey,
		Status:                string(r.Status),
		LeaseExpiresAt:        r.LeaseExpiresAt,
		Owner:                 r.Owner,
		Attempt:               r.Attempt,
		StartedAt:             r.StartedAt,
		FinishedAt:            r.FinishedAt,
		ProcessedReservations: r.ProcessedReservations,
		ProcessedClients:      r.ProcessedClients,
		ErrorMessage:          r.ErrorMessage,
		SchemaVersion:         r.SchemaVersion,
	}
}
