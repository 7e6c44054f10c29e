package service

import (
	"context"
	"errors"

	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/internal/crm/transport"
	"resto_crm_backend/platform/apperr"
	"resto_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// FinalizeEnqueuer hands operator-triggered finalizations to the background
// worker. Implemented by the scheduler client.
type FinalizeEnqueuer interface {
	EnqueueForceFinalize(ctx context.Context, dateKey string) error
}

// Service provides the admin/reporting surface over the CRM store.
type Service struct {
	repo       *repository.Repository
	aggregator *Aggregator
	enqueuer   FinalizeEnqueuer
	log        *logger.Logger
}

// New creates the admin service. enqueuer may be nil when no worker is wired
// (force-finalize then reports a conflict).
func New(repo *repository.Repository, aggregator *Aggregator, enqueuer FinalizeEnqueuer, log *logger.Logger) *Service {
	return &Service{repo: repo, aggregator: aggregator, enqueuer: enqueuer, log: log}
}

// ListClients returns a filtered, paginated page of client profiles.
func (s *Service) ListClients(ctx context.Context, req transport.ListClientsRequest) (transport.ClientListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	clients, total, err := s.repo.ListClients(ctx, repository.ListClientsParams{
		Search: req.Search,
		Status: req.Status,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return transport.ClientListResponse{}, err
	}

	items := make([]transport.ClientResponse, 0, len(clients))
	for _, client := range clients {
		items = append(items, transport.FromClient(client))
	}

	return transport.ClientListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetClient returns one client profile.
func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound("client not found")
		}
		return transport.ClientResponse{}, err
	}
	return transport.FromClient(client), nil
}

// GetClientLedger returns a client's outcome history, newest first.
func (s *Service) GetClientLedger(ctx context.Context, id uuid.UUID, page, pageSize int) (transport.LedgerListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	if _, err := s.repo.GetClient(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LedgerListResponse{}, apperr.NotFound("client not found")
		}
		return transport.LedgerListResponse{}, err
	}

	entries, total, err := s.repo.ListLedgerForClient(ctx, id, (page-1)*pageSize, pageSize)
	if err != nil {
		return transport.LedgerListResponse{}, err
	}

	items := make([]transport.LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, transport.FromLedgerEntry(entry))
	}

	return transport.LedgerListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ListRuns returns recent finalization records for the job health view.
func (s *Service) ListRuns(ctx context.Context, limit int) (transport.RunListResponse, error) {
	if limit < 1 || limit > 365 {
		limit = 90
	}

	runs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return transport.RunListResponse{}, err
	}

	items := make([]transport.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, transport.FromRun(run))
	}
	return transport.RunListResponse{Items: items}, nil
}

// ForceFinalize enqueues an immediate finalization of one date, bypassing the
// hourly gate. The worker still honors the per-date lease.
func (s *Service) ForceFinalize(ctx context.Context, dateKey string) error {
	if _, err := domain.ParseDateKey(dateKey); err != nil {
		return apperr.Validation("invalid date key")
	}
	if s.enqueuer == nil {
		return apperr.Conflict("no finalization worker configured")
	}

	if err := s.enqueuer.EnqueueForceFinalize(ctx, dateKey); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to enqueue finalization", err)
	}

	s.log.Info("force finalization enqueued", "date_key", dateKey)
	return nil
}

// MarkClientForRebuild flags a client's counters as stale after a manual
// correction; incremental aggregation skips the client until RebuildClient.
func (s *Service) MarkClientForRebuild(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.aggregator.MarkForRebuild(ctx, id, reason)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("client not found")
	}
	return err
}

// RebuildClient recounts a client's profile from its full ledger history.
func (s *Service) RebuildClient(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	if err := s.aggregator.RebuildClient(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ClientResponse{}, apperr.NotFound("client not found")
		}
		return transport.ClientResponse{}, err
	}
	return s.GetClient(ctx, id)
}

// SetBlacklisted sets or clears the client blacklist marker. Setting it
// forces bad_guest immediately; clearing it leaves the status to the next
// aggregation or rebuild.
func (s *Service) SetBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error {
	err := s.repo.SetBlacklisted(ctx, id, blacklisted)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("client not found")
	}
	return err
}
