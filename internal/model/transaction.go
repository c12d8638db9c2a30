package model

import (
	"time"

	"github.com/google/uuid"
)

// ChainTransaction is one candidate blockchain transaction attached to an aggregate.
// Neither ConfirmedAt nor FailedAt set means outstanding; once one is set the row is terminal.
// The store keeps at most one outstanding row per aggregate.
type ChainTransaction struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null;index:,unique,composite:aggregate_hash;index:,unique,composite:outstanding,where:confirmed_at IS NULL AND failed_at IS NULL" json:"aggregate_id"`
	Hash        string    `gorm:"type:text;not null;index:,unique,composite:aggregate_hash" json:"hash"` // lower-case, 0x prefixed

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	SenderAddress        string `gorm:"type:varchar(255);not null;default:''" json:"sender_address"`
	SmartContractAddress string `gorm:"type:varchar(255);not null;default:''" json:"smart_contract_address"`
	Gas                  uint64 `gorm:"not null;default:0" json:"gas"`
	TransactionFee       string `gorm:"type:varchar(100);not null;default:''" json:"transaction_fee"`
	BlockchainError      string `gorm:"type:text;not null;default:''" json:"blockchain_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t ChainTransaction) IsOutstanding() bool {
	return t.ConfirmedAt == nil && t.FailedAt == nil
}

func (t ChainTransaction) IsConfirmed() bool {
	return t.ConfirmedAt != nil
}

func (t ChainTransaction) IsFailed() bool {
	return t.FailedAt != nil
}

// MarketplaceTransaction 注册店铺的链上交易
type MarketplaceTransaction struct {
	ChainTransaction
}

func (MarketplaceTransaction) TableName() string {
	return "marketplace_transactions"
}

// OrderTransaction 订单支付交易
type OrderTransaction struct {
	ChainTransaction
}

func (OrderTransaction) TableName() string {
	return "order_transactions"
}

// PayoutTransaction 卖家提现交易
type PayoutTransaction struct {
	ChainTransaction
}

func (PayoutTransaction) TableName() string {
	return "payout_transactions"
}
