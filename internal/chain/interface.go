// Package chain defines the two collaborators reconciliation talks to and the
// registry that routes a network to its integration.
package chain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Network identifies the chain a scope lives on
type Network struct {
	ID      uuid.UUID
	Name    string
	ChainID int64

	// ScopeID and MarketplaceAddress identify the blockchain marketplace being reconciled
	ScopeID            uuid.UUID
	MarketplaceAddress string
}

// Receipt 链上交易回执 (简化版)
type Receipt struct {
	Hash          string // lower-case, 0x prefixed
	SenderAddress string
	To            string          // contract paid; the transfer recipient for token payments
	AmountPaid    decimal.Decimal // native coin in whole units, tokens in base units
	Success       bool
	Error         string
	TokenAddress  *string // nil for the native coin
	Timestamp     time.Time
	Gas           uint64
	GasFee        string // wei, decimal string
}

// BlockchainClient returns the receipts observed on chain since a watermark.
// Nothing new is an empty slice, not an error.
type BlockchainClient interface {
	GetTransactions(ctx context.Context, network Network, since time.Time) ([]Receipt, error)
}

// ReceiptLookup is implemented by blockchain clients that can fetch a single transaction
// outside the window GetTransactions covers. A nil receipt with a nil error means not found.
type ReceiptLookup interface {
	GetReceipt(ctx context.Context, network Network, hash string) (*Receipt, error)
}

// MarketplaceContractClient resolves the seller contract tied to a successful receipt.
// An empty address with a nil error means it could not be resolved.
type MarketplaceContractClient interface {
	GetSellerMarketplaceAddress(ctx context.Context, network Network, receipt Receipt) (string, error)
}
