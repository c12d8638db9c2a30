package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SellerMarketplace is a seller's storefront registration on a blockchain marketplace
type SellerMarketplace struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID                uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	BlockchainMarketplaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"blockchain_marketplace_id"`
	Name                    string    `gorm:"type:varchar(255);not null" json:"name"`

	// filled in on confirmation
	SmartContractAddress string `gorm:"type:varchar(255);not null;default:''" json:"smart_contract_address"`
	OwnerWalletAddress   string `gorm:"type:varchar(255);not null;default:''" json:"owner_wallet_address"`

	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transactions []MarketplaceTransaction `gorm:"foreignKey:AggregateID" json:"transactions,omitempty"`
}

func (SellerMarketplace) TableName() string {
	return "seller_marketplaces"
}

func (m *SellerMarketplace) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m SellerMarketplace) Header() AggregateHeader {
	return AggregateHeader{
		Kind:                 KindMarketplace,
		ID:                   m.ID,
		OwnerID:              m.SellerID,
		Lifecycle:            m.Lifecycle,
		SmartContractAddress: m.SmartContractAddress,
		OwnerWalletAddress:   m.OwnerWalletAddress,
	}
}
