package event

import (
	"time"

	"github.com/google/uuid"
)

// Topics, one per lifecycle transition
const (
	TopicTransactionAttached = "market_events_transaction_attached"
	TopicTransactionFailed   = "market_events_transaction_failed"
	TopicAggregateConfirmed  = "market_events_aggregate_confirmed"
	TopicAggregateCancelled  = "market_events_aggregate_cancelled"
	TopicOrderRefunded       = "market_events_order_refunded"
)

// Topics lists every topic the relay may publish to
var Topics = []string{
	TopicTransactionAttached,
	TopicTransactionFailed,
	TopicAggregateConfirmed,
	TopicAggregateCancelled,
	TopicOrderRefunded,
}

// TransactionAttachedEvent 新交易挂到聚合上
// Topic: market_events_transaction_attached
type TransactionAttachedEvent struct {
	Kind        string    `json:"kind"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Hash        string    `json:"hash"`
	FirstAttach bool      `json:"first_attach"` // draft -> pending
	OccurredAt  time.Time `json:"occurred_at"`
}

// TransactionFailedEvent 链上交易失败
// Topic: market_events_transaction_failed
type TransactionFailedEvent struct {
	Kind            string    `json:"kind"`
	AggregateID     uuid.UUID `json:"aggregate_id"`
	ScopeID         uuid.UUID `json:"scope_id"`
	Hash            string    `json:"hash"`
	SenderAddress   string    `json:"sender_address"`
	Gas             uint64    `json:"gas"`
	TransactionFee  string    `json:"transaction_fee"`
	BlockchainError string    `json:"blockchain_error"`
	FailedAt        time.Time `json:"failed_at"`
}

// AggregateConfirmedEvent 聚合确认
// Topic: market_events_aggregate_confirmed
type AggregateConfirmedEvent struct {
	Kind                 string    `json:"kind"`
	AggregateID          uuid.UUID `json:"aggregate_id"`
	ScopeID              uuid.UUID `json:"scope_id"`
	Hash                 string    `json:"hash"`
	SenderAddress        string    `json:"sender_address"`
	SmartContractAddress string    `json:"smart_contract_address"`
	AmountPaid           string    `json:"amount_paid"` // Decimal string
	TokenAddress         string    `json:"token_address,omitempty"`
	ConfirmedAt          time.Time `json:"confirmed_at"`
}

// AggregateCancelledEvent 聚合取消
// Topic: market_events_aggregate_cancelled
type AggregateCancelledEvent struct {
	Kind        string    `json:"kind"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderRefundedEvent 订单退款
// Topic: market_events_order_refunded
type OrderRefundedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	Hash       string    `json:"hash"` // the confirming transaction
	RefundedAt time.Time `json:"refunded_at"`
}
