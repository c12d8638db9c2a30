// Package lifecycle derives the status of an aggregate from its timestamps and
// its child transactions. It performs no I/O: callers load the rows, Derive
// interprets them and reports impossible combinations as internal errors.
package lifecycle

import (
	"sort"
	"strings"
	"time"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"
)

// State is the closed set of lifecycle states
type State string

const (
	StateDraft                       State = "draft"
	StatePendingAwaitingConfirmation State = "pending_awaiting_confirmation"
	StatePendingWithFailures         State = "pending_with_failures"
	StateConfirmed                   State = "confirmed"
	StateCancelled                   State = "cancelled"
	StateRefunded                    State = "refunded"
)

// Failure is one entry of the failed-transaction history
type Failure struct {
	Hash            string    `json:"hash"`
	FailedAt        time.Time `json:"failed_at"`
	SenderAddress   string    `json:"sender_address"`
	Gas             uint64    `json:"gas"`
	TransactionFee  string    `json:"transaction_fee"`
	BlockchainError string    `json:"blockchain_error"`
}

// Confirmation carries the fields extracted from the confirming receipt
type Confirmation struct {
	Hash                 string    `json:"hash"`
	ConfirmedAt          time.Time `json:"confirmed_at"`
	SenderAddress        string    `json:"sender_address"`
	SmartContractAddress string    `json:"smart_contract_address"`
	Gas                  uint64    `json:"gas"`
	TransactionFee       string    `json:"transaction_fee"`
}

// Status is the tagged result of Derive. Only the fields relevant to State are set.
type Status struct {
	State State `json:"state"`

	// StatePendingAwaitingConfirmation
	Outstanding *model.ChainTransaction `json:"-"`
	// failure history, in attach order, for every pending/cancelled state
	Failures []Failure `json:"failures,omitempty"`
	// StateConfirmed and StateRefunded
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	// StateCancelled / StateRefunded
	At *time.Time `json:"at,omitempty"`
}

// OutstandingHash is empty unless the aggregate awaits confirmation
func (s Status) OutstandingHash() string {
	if s.Outstanding == nil {
		return ""
	}
	return s.Outstanding.Hash
}

// AwaitingConfirmation reports whether an outstanding transaction exists
func (s Status) AwaitingConfirmation() bool {
	return s.State == StatePendingAwaitingConfirmation
}

// IsPending covers both pending states
func (s Status) IsPending() bool {
	return s.State == StatePendingAwaitingConfirmation || s.State == StatePendingWithFailures
}

// IsTerminal reports states that accept no further transactions
func (s Status) IsTerminal() bool {
	switch s.State {
	case StateConfirmed, StateCancelled, StateRefunded:
		return true
	}
	return false
}

// SortTransactions orders by insertion (autoincrement id), stable
func SortTransactions(txs []model.ChainTransaction) []model.ChainTransaction {
	out := make([]model.ChainTransaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func failuresOf(txs []model.ChainTransaction) []Failure {
	var out []Failure
	for _, t := range txs {
		if t.FailedAt == nil {
			continue
		}
		out = append(out, Failure{
			Hash:            t.Hash,
			FailedAt:        *t.FailedAt,
			SenderAddress:   t.SenderAddress,
			Gas:             t.Gas,
			TransactionFee:  t.TransactionFee,
			BlockchainError: t.BlockchainError,
		})
	}
	return out
}

func confirmationOf(t model.ChainTransaction) *Confirmation {
	return &Confirmation{
		Hash:                 t.Hash,
		ConfirmedAt:          *t.ConfirmedAt,
		SenderAddress:        t.SenderAddress,
		SmartContractAddress: t.SmartContractAddress,
		Gas:                  t.Gas,
		TransactionFee:       t.TransactionFee,
	}
}

// ValidateConfirmed checks the extracted fields every confirmed transaction must carry
func ValidateConfirmed(t model.ChainTransaction) error {
	if e := missingField(t); e != nil {
		return e
	}
	return nil
}

func missingField(t model.ChainTransaction) *errno.Errno {
	switch {
	case strings.TrimSpace(t.SenderAddress) == "":
		return errno.ErrConfirmedTransactionMustHaveSenderAddress
	case strings.TrimSpace(t.SmartContractAddress) == "":
		return errno.ErrConfirmedTransactionMustHaveContractAddress
	case t.Gas == 0:
		return errno.ErrConfirmedTransactionMustHaveGas
	case strings.TrimSpace(t.TransactionFee) == "":
		return errno.ErrConfirmedTransactionMustHaveFee
	}
	return nil
}
