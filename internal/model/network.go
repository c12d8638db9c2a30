package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Network 区块链网络
type Network struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;unique" json:"name"`
	ChainID   int64     `gorm:"not null;unique" json:"chain_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Network) TableName() string {
	return "networks"
}

func (n *Network) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// BlockchainMarketplace is the platform marketplace deployed on one network.
// It is the scope a reconciliation pass runs against.
type BlockchainMarketplace struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	NetworkID uuid.UUID `gorm:"type:uuid;not null;index" json:"network_id"`
	Address   string    `gorm:"type:varchar(255);not null" json:"address"` // factory contract
	CreatedAt time.Time `json:"created_at"`

	Network Network `gorm:"foreignKey:NetworkID" json:"network"`
}

func (BlockchainMarketplace) TableName() string {
	return "blockchain_marketplaces"
}

func (m *BlockchainMarketplace) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
