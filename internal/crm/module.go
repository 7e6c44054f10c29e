// Package crm provides the guest CRM module: nightly finalization of
// reservation outcomes, the append-only client ledger, aggregated client
// profiles and the retention purge.
package crm

import (
	"resto_crm_backend/internal/crm/handler"
	"resto_crm_backend/internal/crm/repository"
	"resto_crm_backend/internal/crm/service"
	"resto_crm_backend/internal/events"
	apphttp "resto_crm_backend/internal/http"
	"resto_crm_backend/platform/config"
	"resto_crm_backend/platform/logger"
	"resto_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the CRM domain: repository, finalization pipeline,
// aggregation, retention and the admin HTTP surface.
type Module struct {
	handler   *handler.Handler
	service   *service.Service
	finalizer *service.Finalizer
	purger    *service.Purger
	repo      *repository.Repository
}

// NewModule creates the CRM module with all dependencies wired. The
// enqueuer is nil in the worker binary, which has no HTTP surface and
// never force-enqueues.
func NewModule(pool *pgxpool.Pool, bus events.Bus, enqueuer service.FinalizeEnqueuer, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	aggregator := service.NewAggregator(repo, repo, log)
	finalizer := service.NewFinalizer(repo, repo, repo, repo, aggregator, bus, cfg, log)
	purger := service.NewPurger(repo, bus, cfg, log)
	svc := service.New(repo, aggregator, enqueuer, log)
	h := handler.New(svc, val)

	return &Module{
		handler:   h,
		service:   svc,
		finalizer: finalizer,
		purger:    purger,
		repo:      repo,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "crm"
}

// RegisterRoutes registers the module's routes under /api/v1/crm
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	crm := ctx.Protected.Group("/crm")
	m.handler.RegisterRoutes(crm)

	ops := ctx.Operator.Group("/crm")
	m.handler.RegisterOperatorRoutes(ops)
}

// Finalizer exposes the finalization service for the worker binary.
func (m *Module) Finalizer() *service.Finalizer {
	return m.finalizer
}

// Purger exposes the retention service for the worker binary.
func (m *Module) Purger() *service.Purger {
	return m.purger
}

// Service exposes the admin service.
func (m *Module) Service() *service.Service {
	return m.service
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
