package handler

import (
	"net/http"

	"marketplace-core/internal/handler/response"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/service"

	"github.com/gin-gonic/gin"
)

// ScopeHandler lists blockchain marketplaces and queues reconcile passes on demand
type ScopeHandler struct {
	scopes   *repo.ScopeRepo
	enqueuer service.ReconcileEnqueuer
}

func NewScopeHandler(scopes *repo.ScopeRepo, enqueuer service.ReconcileEnqueuer) *ScopeHandler {
	return &ScopeHandler{scopes: scopes, enqueuer: enqueuer}
}

func (h *ScopeHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/reconcile", h.Reconcile)
}

// List GET /api/v1/scopes
func (h *ScopeHandler) List(c *gin.Context) {
	scopes, err := h.scopes.ListScopes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, scopes)
}

// Reconcile 手动触发对账
// POST /api/v1/scopes/:id/reconcile
func (h *ScopeHandler) Reconcile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	// 先确认 scope 存在，避免无效任务入队
	if _, err := h.scopes.GetScope(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enqueuer.EnqueueReconcile(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"scope_id": id, "queued": true})
}
