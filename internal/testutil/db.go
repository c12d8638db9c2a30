// Package testutil builds throwaway sqlite stores seeded with one scope of each aggregate.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const ChainID int64 = 1337

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database migrated with every model
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := database.ConnectSQLite(name, false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Fixture is one scope with a seller, a buyer and a draft aggregate of each kind
type Fixture struct {
	Network     model.Network
	Scope       model.BlockchainMarketplace
	Seller      model.Seller
	Buyer       model.Buyer
	Marketplace model.SellerMarketplace
	Order       model.ProductOrder
	Payout      model.SellerPayout
}

// Seed inserts a Fixture for chainID
func Seed(t *testing.T, db *gorm.DB, chainID int64) *Fixture {
	t.Helper()
	suffix := uuid.NewString()[:8]

	f := &Fixture{
		Network: model.Network{Name: "net-" + suffix, ChainID: chainID},
		Seller:  model.Seller{Name: "seller", Email: "seller-" + suffix + "@example.com"},
		Buyer:   model.Buyer{Email: "buyer-" + suffix + "@example.com"},
	}
	require.NoError(t, db.Create(&f.Network).Error)

	f.Scope = model.BlockchainMarketplace{NetworkID: f.Network.ID, Address: "0x00000000000000000000000000000000000000aa"}
	require.NoError(t, db.Create(&f.Scope).Error)
	f.Scope.Network = f.Network

	require.NoError(t, db.Create(&f.Seller).Error)
	require.NoError(t, db.Create(&f.Buyer).Error)

	f.Marketplace = model.SellerMarketplace{SellerID: f.Seller.ID, BlockchainMarketplaceID: f.Scope.ID, Name: "shop"}
	require.NoError(t, db.Create(&f.Marketplace).Error)

	f.Order = model.ProductOrder{
		BuyerID:             f.Buyer.ID,
		SellerMarketplaceID: f.Marketplace.ID,
		ProductID:           uuid.New(),
		Price:               decimal.RequireFromString("12.5"),
	}
	require.NoError(t, db.Create(&f.Order).Error)

	f.Payout = model.SellerPayout{
		SellerID:            f.Seller.ID,
		SellerMarketplaceID: f.Marketplace.ID,
		Amount:              decimal.RequireFromString("3"),
		ToAddress:           "0x00000000000000000000000000000000000000bb",
	}
	require.NoError(t, db.Create(&f.Payout).Error)
	return f
}

// OwnerOf returns the owner id of kind in the fixture
func (f *Fixture) OwnerOf(kind model.Kind) uuid.UUID {
	if kind == model.KindOrder {
		return f.Buyer.ID
	}
	return f.Seller.ID
}

// IDOf returns the aggregate id of kind in the fixture
func (f *Fixture) IDOf(kind model.Kind) uuid.UUID {
	switch kind {
	case model.KindOrder:
		return f.Order.ID
	case model.KindPayout:
		return f.Payout.ID
	default:
		return f.Marketplace.ID
	}
}

// EVMHash pads seed into a 32 byte hash
func EVMHash(seed string) string {
	return "0x" + strings.Repeat("0", 64-len(seed)) + strings.ToLower(seed)
}

// Ptr returns a pointer to a UTC copy of v
func Ptr(v time.Time) *time.Time {
	v = v.UTC()
	return &v
}
