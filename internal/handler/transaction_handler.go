package handler

import (
	"context"
	"net/http"

	"marketplace-core/internal/handler/request"
	"marketplace-core/internal/handler/response"
	"marketplace-core/internal/model"
	"marketplace-core/internal/service"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler exposes attach, cancel, refund and status polling for one aggregate kind per route group
type TransactionHandler struct {
	svc *service.TransactionService
}

func NewTransactionHandler(svc *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Register mounts the routes of kind on rg
func (h *TransactionHandler) Register(rg *gin.RouterGroup, kind model.Kind) {
	rg.POST("/:id/transactions", h.Attach(kind))
	rg.GET("/:id/status", h.Status(kind))
	rg.POST("/:id/cancel", h.Cancel(kind))
	if kind == model.KindOrder {
		rg.POST("/:id/refund", h.Refund(kind))
	}
}

// Attach 绑定交易哈希
// POST /api/v1/{kind}/:id/transactions
func (h *TransactionHandler) Attach(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req request.AttachTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}

		row, err := h.svc.Attach(c.Request.Context(), kind, uuid.MustParse(req.OwnerID), id, req.Hash)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusCreated, row)
	}
}

// Status 查询派生状态
// GET /api/v1/{kind}/:id/status?owner_id=
func (h *TransactionHandler) Status(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var q request.StatusQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			response.Error(c, bindError(err))
			return
		}

		view, err := h.svc.StatusOf(c.Request.Context(), kind, uuid.MustParse(q.OwnerID), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, view)
	}
}

func (h *TransactionHandler) Cancel(kind model.Kind) gin.HandlerFunc {
	return h.transition(kind, h.svc.Cancel)
}

func (h *TransactionHandler) Refund(kind model.Kind) gin.HandlerFunc {
	return h.transition(kind, h.svc.Refund)
}

// transition runs fn and answers with the new status
func (h *TransactionHandler) transition(kind model.Kind, fn func(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req request.OwnerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
		ownerID := uuid.MustParse(req.OwnerID)

		if err := fn(c.Request.Context(), kind, ownerID, id); err != nil {
			response.Error(c, err)
			return
		}
		view, err := h.svc.StatusOf(c.Request.Context(), kind, ownerID, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, view)
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, errno.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func bindError(err error) error {
	return errno.ErrBind.WithMessage(validator.GetErrorMsg(err))
}
