package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-core/internal/service"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/utils/lock"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// 任务类型常量
const (
	TypeReconcileScope = "reconcile:scope"
	QueueCritical      = "critical"
)

// ReconcileScopePayload 对账任务参数
type ReconcileScopePayload struct {
	ScopeID uuid.UUID `json:"scope_id"`
}

// NewReconcileTask creates a job for one scope. Unique keeps at most one queued job
// per scope inside uniqueFor.
func NewReconcileTask(scopeID uuid.UUID, maxRetry int, uniqueFor time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcileScopePayload{ScopeID: scopeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReconcileScope, payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueCritical),
		asynq.Timeout(uniqueFor),
		asynq.Unique(uniqueFor),
	), nil
}

// Reconciler runs one pass over a scope
type Reconciler interface {
	Reconcile(ctx context.Context, scopeID uuid.UUID) (*service.Report, error)
}

// ReconcileHandler 处理对账任务
type ReconcileHandler struct {
	engine  Reconciler
	locker  lock.DistributedLock
	lockTTL time.Duration
}

func NewReconcileHandler(engine Reconciler, locker lock.DistributedLock, lockTTL time.Duration) *ReconcileHandler {
	return &ReconcileHandler{engine: engine, locker: locker, lockTTL: lockTTL}
}

// ProcessTask implements asynq.Handler. Returned errors are retried by asynq up to MaxRetry;
// a missing scope or a broken payload is archived right away.
func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReconcileScopePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	key := "reconcile:scope:" + p.ScopeID.String()
	locked, err := h.locker.Acquire(ctx, key, h.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire scope lock: %w", err)
	}
	if !locked {
		// another worker runs this scope now; that pass covers us
		logger.Debug("reconcile already running", zap.String("scope_id", p.ScopeID.String()))
		return nil
	}
	defer h.locker.Release(ctx, key)

	report, err := h.engine.Reconcile(ctx, p.ScopeID)
	if err != nil {
		network := "unknown"
		if report != nil {
			network = report.Network
		}
		if monitor.Business != nil {
			monitor.Business.ReconcilePassErrorsTotal.WithLabelValues(network, errno.NameOf(err)).Inc()
		}
		logger.Error("reconcile pass failed",
			zap.String("scope_id", p.ScopeID.String()),
			zap.String("error_name", errno.NameOf(err)),
			zap.Error(err))

		if errors.Is(err, errno.ErrScopeNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("reconcile pass done",
		zap.String("scope_id", p.ScopeID.String()),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("failed", report.Failed))
	return nil
}
