package service

import (
	"context"
	"time"

	"marketplace-core/internal/model"
	"marketplace-core/internal/service/mq"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const relayBatchSize = 50

// RelayService 负责将本地消息表的消息搬运到 MQ (at-least-once)
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(db *gorm.DB, producer mq.Producer, interval time.Duration) *RelayService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &RelayService{db: db, producer: producer, interval: interval}
}

// Start polls until ctx is done
func (s *RelayService) Start(ctx context.Context) {
	logger.Info("outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := s.ProcessPending(ctx); err != nil {
				logger.Error("outbox relay query failed", zap.Error(err))
			}
		}
	}
}

// ProcessPending publishes one batch of PENDING messages and returns how many were sent.
// A message is marked SENT only after the broker accepted it.
func (s *RelayService) ProcessPending(ctx context.Context) (int, error) {
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(relayBatchSize).
		Find(&messages).Error; err != nil {
		return 0, err
	}
	s.reportBacklog(ctx)
	if len(messages) == 0 {
		return 0, nil
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Warn("outbox publish failed", zap.Uint64("id", msg.ID), zap.String("topic", msg.Topic), zap.Error(err))
			continue
		}
		// a failed update means the message goes out again; consumers dedupe on the payload
		if err := s.db.WithContext(ctx).Model(&msg).Update("status", model.OutboxSent).Error; err != nil {
			logger.Warn("outbox mark sent failed", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	logger.Debug("outbox batch relayed", zap.Int("sent", sent), zap.Int("batch", len(messages)))
	return sent, nil
}

func (s *RelayService) reportBacklog(ctx context.Context) {
	if monitor.Business == nil {
		return
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).Where("status = ?", model.OutboxPending).Count(&count).Error; err == nil {
		monitor.Business.OutboxPendingMessages.Set(float64(count))
	}
}
