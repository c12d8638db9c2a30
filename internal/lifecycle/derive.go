package lifecycle

import (
	"fmt"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"
)

// Derive maps the stored timestamps of an aggregate and its transactions to a Status.
// Any combination the write paths can never produce is returned as an internal *errno.Errno.
func Derive(h model.AggregateHeader, txs []model.ChainTransaction) (Status, error) {
	txs = SortTransactions(txs)

	var (
		outstanding []model.ChainTransaction
		confirmed   []model.ChainTransaction
	)
	for _, t := range txs {
		if t.ConfirmedAt != nil && t.FailedAt != nil {
			return Status{}, violation(h, errno.ErrTransactionConfirmedAndFailed, "transaction "+t.Hash)
		}
		switch {
		case t.IsOutstanding():
			outstanding = append(outstanding, t)
		case t.IsConfirmed():
			confirmed = append(confirmed, t)
		}
	}

	lc := h.Lifecycle
	switch {
	case lc.CancelledAt != nil:
		if lc.ConfirmedAt != nil || lc.RefundedAt != nil {
			return Status{}, violation(h, errno.ErrConflictingTerminalTimestamps, "cancelled together with confirmed or refunded")
		}
		if len(confirmed) > 0 {
			return Status{}, violation(h, errno.ErrCancelledMustNotHaveConfirmedTransaction, "")
		}
		if len(outstanding) > 0 {
			return Status{}, violation(h, errno.ErrCancelledMustNotHaveOutstandingTransaction, "")
		}
		return Status{State: StateCancelled, Failures: failuresOf(txs), At: lc.CancelledAt}, nil

	case lc.RefundedAt != nil:
		if lc.ConfirmedAt == nil {
			return Status{}, violation(h, errno.ErrConflictingTerminalTimestamps, "refunded without being confirmed")
		}
		if len(confirmed) != 1 {
			return Status{}, violation(h, errno.ErrRefundedMustHaveOneConfirmedTransaction, fmt.Sprintf("found %d", len(confirmed)))
		}
		if len(outstanding) > 0 {
			return Status{}, violation(h, errno.ErrConfirmedMustNotHaveOutstandingTransaction, "")
		}
		if e := missingField(confirmed[0]); e != nil {
			return Status{}, violation(h, e, "transaction "+confirmed[0].Hash)
		}
		return Status{
			State:        StateRefunded,
			Confirmation: confirmationOf(confirmed[0]),
			At:           lc.RefundedAt,
		}, nil

	case lc.ConfirmedAt != nil:
		if len(confirmed) != 1 {
			return Status{}, violation(h, errno.ErrConfirmedMustHaveOneConfirmedTransaction, fmt.Sprintf("found %d", len(confirmed)))
		}
		if len(outstanding) > 0 {
			return Status{}, violation(h, errno.ErrConfirmedMustNotHaveOutstandingTransaction, "")
		}
		if e := missingField(confirmed[0]); e != nil {
			return Status{}, violation(h, e, "transaction "+confirmed[0].Hash)
		}
		if h.Kind == model.KindMarketplace {
			if h.SmartContractAddress == "" {
				return Status{}, violation(h, errno.ErrConfirmedMarketplaceMustHaveContractAddress, "")
			}
			if h.OwnerWalletAddress == "" {
				return Status{}, violation(h, errno.ErrConfirmedMarketplaceMustHaveOwnerWallet, "")
			}
		}
		return Status{
			State:        StateConfirmed,
			Confirmation: confirmationOf(confirmed[0]),
			At:           lc.ConfirmedAt,
		}, nil

	case lc.PendingAt != nil:
		if len(txs) == 0 {
			return Status{}, violation(h, errno.ErrPendingMustHaveTransaction, "")
		}
		if len(confirmed) > 0 {
			return Status{}, violation(h, errno.ErrPendingMustNotHaveConfirmedTransaction, "transaction "+confirmed[0].Hash)
		}
		if len(outstanding) > 1 {
			return Status{}, violation(h, errno.ErrPendingMustHaveAtMostOneOutstanding, fmt.Sprintf("found %d", len(outstanding)))
		}
		failures := failuresOf(txs)
		if len(outstanding) == 1 {
			out := outstanding[0]
			return Status{State: StatePendingAwaitingConfirmation, Outstanding: &out, Failures: failures}, nil
		}
		return Status{State: StatePendingWithFailures, Failures: failures}, nil

	default:
		if len(txs) > 0 {
			return Status{}, violation(h, errno.ErrDraftMustNotHaveTransactions, fmt.Sprintf("found %d", len(txs)))
		}
		return Status{State: StateDraft}, nil
	}
}

// violation names the aggregate in the message so operators can find the row
func violation(h model.AggregateHeader, e *errno.Errno, detail string) error {
	msg := fmt.Sprintf("%s (%s %s)", e.Message, h.Kind, h.ID)
	if detail != "" {
		msg += ": " + detail
	}
	return e.WithMessage(msg)
}
