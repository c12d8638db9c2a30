package service

import (
	"context"
	"time"

	"marketplace-core/internal/repo"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/utils/lock"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const scheduleLockKey = "cron:lock:reconcile_schedule"

// ReconcileEnqueuer hands one scope to the job queue
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, scopeID uuid.UUID) error
}

// CronService enqueues one reconcile job per scope on every tick.
// The lock keeps several instances from scheduling the same tick.
type CronService struct {
	cron     *cron.Cron
	schedule string
	locker   lock.DistributedLock
	lockTTL  time.Duration
	scopes   *repo.ScopeRepo
	enqueuer ReconcileEnqueuer
}

func NewCronService(schedule string, locker lock.DistributedLock, lockTTL time.Duration, scopes *repo.ScopeRepo, enqueuer ReconcileEnqueuer) *CronService {
	return &CronService{
		cron:     cron.New(),
		schedule: schedule,
		locker:   locker,
		lockTTL:  lockTTL,
		scopes:   scopes,
		enqueuer: enqueuer,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.ScheduleReconcile(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("cron service started", zap.String("reconcile", s.schedule))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("cron service stopped")
}

// ScheduleReconcile enqueues every scope and returns how many were handed over
func (s *CronService) ScheduleReconcile(ctx context.Context) int {
	locked, err := s.locker.Acquire(ctx, scheduleLockKey, s.lockTTL)
	if err != nil || !locked {
		logger.Debug("reconcile schedule skipped, lock held elsewhere", zap.Error(err))
		return 0
	}
	defer s.locker.Release(ctx, scheduleLockKey)

	scopes, err := s.scopes.ListScopes(ctx)
	if err != nil {
		logger.Error("list scopes failed", zap.Error(err))
		return 0
	}

	enqueued := 0
	for _, scope := range scopes {
		if err := s.enqueuer.EnqueueReconcile(ctx, scope.ID); err != nil {
			logger.Warn("enqueue reconcile failed", zap.String("scope_id", scope.ID.String()), zap.Error(err))
			continue
		}
		enqueued++
	}
	logger.Debug("reconcile scheduled", zap.Int("scopes", enqueued))
	return enqueued
}
