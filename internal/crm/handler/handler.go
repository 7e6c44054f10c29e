package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resto_crm_backend/internal/crm/service"
	"resto_crm_backend/internal/crm/transport"
	"resto_crm_backend/platform/httpkit"
	"resto_crm_backend/platform/validator"
)

// Handler handles HTTP requests for the CRM admin/reporting surface.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid client id"
)

// New creates a new CRM handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListClients retrieves client profiles.
// GET /api/v1/crm/clients
func (h *Handler) ListClients(c *gin.Context) {
	var req transport.ListClientsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.ListClients(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetClient retrieves one client profile.
// GET /api/v1/crm/clients/:id
func (h *Handler) GetClient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetClient(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetClientLedger retrieves a client's outcome history.
// GET /api/v1/crm/clients/:id/ledger
func (h *Handler) GetClientLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 50)

	result, err := h.svc.GetClientLedger(c.Request.Context(), id, page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListRuns retrieves recent finalization job records.
// GET /api/v1/crm/runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 90)

	result, err := h.svc.ListRuns(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ForceFinalize enqueues an immediate finalization for one date.
// POST /api/v1/crm/runs/:dateKey/force
func (h *Handler) ForceFinalize(c *gin.Context) {
	var req transport.ForceFinalizeRequest
	if err := c.ShouldBindUri(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.ForceFinalize(c.Request.Context(), req.DateKey); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"dateKey": req.DateKey, "status": "enqueued"})
}

// MarkForRebuild flags a client's counters for a full recount.
// POST /api/v1/crm/clients/:id/rebuild
func (h *Handler) MarkForRebuild(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.MarkClientForRebuild(c.Request.Context(), id, req.Reason); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "rebuild_pending"})
}

// Rebuild recounts a client's profile from its full ledger history.
// POST /api/v1/crm/clients/:id/rebuild/run
func (h *Handler) Rebuild(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.RebuildClient(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SetBlacklisted sets or clears a client's blacklist marker.
// PUT /api/v1/crm/clients/:id/blacklist
func (h *Handler) SetBlacklisted(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.SetBlacklisted(c.Request.Context(), id, req.Blacklisted); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"blacklisted": req.Blacklisted})
}

// RegisterRoutes mounts the read-only reporting surface.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clients", h.ListClients)
	rg.GET("/clients/:id", h.GetClient)
	rg.GET("/clients/:id/ledger", h.GetClientLedger)
	rg.GET("/runs", h.ListRuns)
}

// RegisterOperatorRoutes mounts the mutating operations, restricted to
// the operator role.
func (h *Handler) RegisterOperatorRoutes(rg *gin.RouterGroup) {
	rg.POST("/runs/:dateKey/force", h.ForceFinalize)
	rg.POST("/clients/:id/rebuild", h.MarkForRebuild)
	rg.POST("/clients/:id/rebuild/run", h.Rebuild)
	rg.PUT("/clients/:id/blacklist", h.SetBlacklisted)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
