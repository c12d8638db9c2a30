package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Seller 卖家
type Seller struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Email         string    `gorm:"type:varchar(255);not null;unique" json:"email"`
	WalletAddress string    `gorm:"type:varchar(255);not null;default:''" json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Seller) TableName() string {
	return "sellers"
}

func (s *Seller) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Buyer 买家
type Buyer struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"type:varchar(255);not null;unique" json:"email"`
	WalletAddress string    `gorm:"type:varchar(255);not null;default:''" json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Buyer) TableName() string {
	return "buyers"
}

func (b *Buyer) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
