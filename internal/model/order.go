package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductOrder 买家订单, paid on chain to the seller marketplace contract
type ProductOrder struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerMarketplaceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_marketplace_id"`
	ProductID           uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Price               decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"price"`
	TokenAddress        string          `gorm:"type:varchar(255);not null;default:''" json:"token_address"` // empty for the native coin

	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transactions []OrderTransaction `gorm:"foreignKey:AggregateID" json:"transactions,omitempty"`
}

func (ProductOrder) TableName() string {
	return "product_orders"
}

func (o *ProductOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o ProductOrder) Header() AggregateHeader {
	return AggregateHeader{Kind: KindOrder, ID: o.ID, OwnerID: o.BuyerID, Lifecycle: o.Lifecycle}
}
