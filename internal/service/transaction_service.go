package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-core/internal/event"
	"marketplace-core/internal/lifecycle"
	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionService attaches candidate transactions to aggregates and runs the
// user driven transitions (cancel, refund). Nothing here talks to a chain.
type TransactionService struct {
	repo *repo.AggregateRepo
	now  func() time.Time
}

func NewTransactionService(r *repo.AggregateRepo) *TransactionService {
	return &TransactionService{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

// StatusView is the polling representation of an aggregate
type StatusView struct {
	Kind                 model.Kind              `json:"kind"`
	ID                   uuid.UUID               `json:"id"`
	OwnerID              uuid.UUID               `json:"owner_id"`
	State                lifecycle.State         `json:"state"`
	OutstandingHash      string                  `json:"outstanding_hash,omitempty"`
	Failures             []lifecycle.Failure     `json:"failures,omitempty"`
	Confirmation         *lifecycle.Confirmation `json:"confirmation,omitempty"`
	SmartContractAddress string                  `json:"smart_contract_address,omitempty"`
	OwnerWalletAddress   string                  `json:"owner_wallet_address,omitempty"`
	model.Lifecycle
}

func newStatusView(h model.AggregateHeader, st lifecycle.Status) *StatusView {
	return &StatusView{
		Kind:                 h.Kind,
		ID:                   h.ID,
		OwnerID:              h.OwnerID,
		State:                st.State,
		OutstandingHash:      st.OutstandingHash(),
		Failures:             st.Failures,
		Confirmation:         st.Confirmation,
		SmartContractAddress: h.SmartContractAddress,
		OwnerWalletAddress:   h.OwnerWalletAddress,
		Lifecycle:            h.Lifecycle,
	}
}

// lockedAggregate is what a transition sees inside its transaction
type lockedAggregate struct {
	header model.AggregateHeader
	txs    []model.ChainTransaction
	status lifecycle.Status
}

// withLockedAggregate checks the owner, locks the aggregate row and derives its status,
// then runs fn inside the same transaction.
func (s *TransactionService) withLockedAggregate(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID, fn func(tx *gorm.DB, a *lockedAggregate) error) error {
	return s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.OwnerExists(ctx, tx, kind, ownerID)
		if err != nil {
			return err
		}
		if !exists {
			return kind.ErrOwnerNotFound()
		}

		h, err := s.repo.GetAggregate(ctx, tx, kind, id, true)
		if err != nil {
			return err
		}
		if h.OwnerID != ownerID {
			return kind.ErrNotFound()
		}

		txs, err := s.repo.ListTransactions(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		st, err := lifecycle.Derive(h, txs)
		if err != nil {
			return err
		}
		return fn(tx, &lockedAggregate{header: h, txs: txs, status: st})
	})
}

// Attach records hash as the new outstanding transaction of the aggregate.
// A draft aggregate becomes pending in the same step.
func (s *TransactionService) Attach(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID, rawHash string) (*model.ChainTransaction, error) {
	hash, err := lifecycle.NormalizeHash(rawHash)
	if err != nil {
		observeAttach(kind, err)
		return nil, err
	}

	var (
		created *model.ChainTransaction
		first   bool
	)
	err = s.withLockedAggregate(ctx, kind, ownerID, id, func(tx *gorm.DB, a *lockedAggregate) error {
		switch a.status.State {
		case lifecycle.StateConfirmed:
			return errno.ErrAlreadyConfirmed.WithMessage(fmt.Sprintf("%s was confirmed", kind))
		case lifecycle.StateCancelled:
			return errno.ErrAlreadyCancelled.WithMessage(fmt.Sprintf("%s was cancelled", kind))
		case lifecycle.StateRefunded:
			return errno.ErrAlreadyRefunded.WithMessage(fmt.Sprintf("%s was refunded", kind))
		case lifecycle.StatePendingAwaitingConfirmation:
			return errno.ErrHasPendingTransaction.WithMessage(fmt.Sprintf("%s has pending transaction %s", kind, a.status.OutstandingHash()))
		}

		for _, t := range a.txs {
			if t.Hash == hash {
				return errno.ErrTransactionHashUsed
			}
		}

		row, err := s.repo.CreateTransaction(ctx, tx, kind, id, hash)
		if err != nil {
			return err
		}
		now := s.now()
		first = a.status.State == lifecycle.StateDraft
		if first {
			if err := s.repo.MarkPending(ctx, tx, kind, id, now); err != nil {
				return err
			}
		}

		created = row
		return model.CreateOutboxMessage(tx, event.TopicTransactionAttached, id.String(), event.TransactionAttachedEvent{
			Kind:        string(kind),
			AggregateID: id,
			OwnerID:     ownerID,
			Hash:        hash,
			FirstAttach: first,
			OccurredAt:  now,
		})
	})
	observeAttach(kind, err)
	if err != nil {
		return nil, err
	}
	if first {
		observeTransition(kind, lifecycle.StatePendingAwaitingConfirmation)
	}

	logger.Info("transaction attached",
		zap.String("kind", string(kind)),
		zap.String("aggregate_id", id.String()),
		zap.String("hash", hash))
	return created, nil
}

// Cancel moves a draft aggregate, or a pending one whose transactions all failed, to cancelled
func (s *TransactionService) Cancel(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID) error {
	err := s.withLockedAggregate(ctx, kind, ownerID, id, func(tx *gorm.DB, a *lockedAggregate) error {
		switch a.status.State {
		case lifecycle.StateConfirmed:
			return errno.ErrAlreadyConfirmed.WithMessage(fmt.Sprintf("%s was confirmed", kind))
		case lifecycle.StateCancelled:
			return errno.ErrAlreadyCancelled.WithMessage(fmt.Sprintf("%s was cancelled", kind))
		case lifecycle.StateRefunded:
			return errno.ErrAlreadyRefunded.WithMessage(fmt.Sprintf("%s was refunded", kind))
		case lifecycle.StatePendingAwaitingConfirmation:
			return errno.ErrCancelPendingForbidden
		}

		now := s.now()
		if err := s.repo.MarkCancelled(ctx, tx, kind, id, now); err != nil {
			return err
		}
		return model.CreateOutboxMessage(tx, event.TopicAggregateCancelled, id.String(), event.AggregateCancelledEvent{
			Kind:        string(kind),
			AggregateID: id,
			OwnerID:     ownerID,
			CancelledAt: now,
		})
	})
	if err != nil {
		return err
	}
	observeTransition(kind, lifecycle.StateCancelled)
	logger.Info("aggregate cancelled", zap.String("kind", string(kind)), zap.String("aggregate_id", id.String()))
	return nil
}

// Refund reverses a confirmed order off chain. The confirming transaction stays as history.
func (s *TransactionService) Refund(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID) error {
	if kind != model.KindOrder {
		return errno.ErrRefundNotSupported
	}
	err := s.withLockedAggregate(ctx, kind, ownerID, id, func(tx *gorm.DB, a *lockedAggregate) error {
		switch a.status.State {
		case lifecycle.StateRefunded:
			return errno.ErrAlreadyRefunded.WithMessage("order was refunded")
		case lifecycle.StateCancelled:
			return errno.ErrAlreadyCancelled.WithMessage("order was cancelled")
		case lifecycle.StateConfirmed:
		default:
			return errno.ErrNotConfirmed.WithMessage("order is not confirmed")
		}

		now := s.now()
		if err := s.repo.MarkRefunded(ctx, tx, kind, id, now); err != nil {
			return err
		}
		return model.CreateOutboxMessage(tx, event.TopicOrderRefunded, id.String(), event.OrderRefundedEvent{
			OrderID:    id,
			BuyerID:    ownerID,
			Hash:       a.status.Confirmation.Hash,
			RefundedAt: now,
		})
	})
	if err != nil {
		return err
	}
	observeTransition(kind, lifecycle.StateRefunded)
	logger.Info("order refunded", zap.String("order_id", id.String()))
	return nil
}

// StatusOf derives the current status without taking locks
func (s *TransactionService) StatusOf(ctx context.Context, kind model.Kind, ownerID, id uuid.UUID) (*StatusView, error) {
	exists, err := s.repo.OwnerExists(ctx, nil, kind, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, kind.ErrOwnerNotFound()
	}
	h, err := s.repo.GetAggregate(ctx, nil, kind, id, false)
	if err != nil {
		return nil, err
	}
	if h.OwnerID != ownerID {
		return nil, kind.ErrNotFound()
	}
	txs, err := s.repo.ListTransactions(ctx, nil, kind, id)
	if err != nil {
		return nil, err
	}
	st, err := lifecycle.Derive(h, txs)
	if err != nil {
		return nil, err
	}
	return newStatusView(h, st), nil
}

func observeAttach(kind model.Kind, err error) {
	if monitor.Business == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = errno.NameOf(err)
	}
	monitor.Business.TransactionsAttachedTotal.WithLabelValues(string(kind), result).Inc()
}

func observeTransition(kind model.Kind, state lifecycle.State) {
	if monitor.Business == nil {
		return
	}
	monitor.Business.LifecycleTransitionsTotal.WithLabelValues(string(kind), string(state)).Inc()
}
