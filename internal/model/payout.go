package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SellerPayout 卖家提现
type SellerPayout struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	SellerMarketplaceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_marketplace_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	ToAddress           string          `gorm:"type:varchar(255);not null" json:"to_address"`

	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transactions []PayoutTransaction `gorm:"foreignKey:AggregateID" json:"transactions,omitempty"`
}

func (SellerPayout) TableName() string {
	return "seller_payouts"
}

func (p *SellerPayout) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p SellerPayout) Header() AggregateHeader {
	return AggregateHeader{Kind: KindPayout, ID: p.ID, OwnerID: p.SellerID, Lifecycle: p.Lifecycle}
}
