package model

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle holds the four status timestamps shared by every aggregate.
// All nil means draft.
type Lifecycle struct {
	PendingAt   *time.Time `gorm:"index" json:"pending_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

// AggregateHeader is the kind-independent view of an aggregate row
type AggregateHeader struct {
	Kind      Kind
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Lifecycle Lifecycle

	// marketplace registrations only
	SmartContractAddress string
	OwnerWalletAddress   string
}
