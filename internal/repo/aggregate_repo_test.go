package repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"marketplace-core/internal/model"
	"marketplace-core/internal/testutil"
	"marketplace-core/pkg/errno"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAggregateRepoLifecycleWrites(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	r := NewAggregateRepo(db)
	ctx := context.Background()

	for _, kind := range model.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			id := fx.IDOf(kind)

			ok, err := r.OwnerExists(ctx, nil, kind, fx.OwnerOf(kind))
			require.NoError(t, err)
			assert.True(t, ok)

			h, err := r.GetAggregate(ctx, nil, kind, id, false)
			require.NoError(t, err)
			assert.Equal(t, kind, h.Kind)
			assert.Equal(t, fx.OwnerOf(kind), h.OwnerID)
			assert.Nil(t, h.Lifecycle.PendingAt)

			now := time.Now().UTC()
			err = db.Transaction(func(tx *gorm.DB) error {
				if _, err := r.GetAggregate(ctx, tx, kind, id, true); err != nil {
					return err
				}
				if _, err := r.CreateTransaction(ctx, tx, kind, id, "0xaa"); err != nil {
					return err
				}
				return r.MarkPending(ctx, tx, kind, id, now)
			})
			require.NoError(t, err)

			h, err = r.GetAggregate(ctx, nil, kind, id, false)
			require.NoError(t, err)
			require.NotNil(t, h.Lifecycle.PendingAt)

			// pending_at is write-once
			assert.ErrorIs(t, r.MarkPending(ctx, nil, kind, id, now), errno.ErrConflictingTerminalTimestamps)

			txs, err := r.ListTransactions(ctx, nil, kind, id)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, "0xaa", txs[0].Hash)
			assert.True(t, txs[0].IsOutstanding())

			require.NoError(t, r.MarkTransactionFailed(ctx, nil, kind, txs[0].ID, FailedFields{
				FailedAt: now, SenderAddress: "0xs", Gas: 126154, TransactionFee: "1", BlockchainError: "Contract error",
			}))
			err = r.MarkTransactionConfirmed(ctx, nil, kind, txs[0].ID, ConfirmedFields{ConfirmedAt: now})
			assert.ErrorIs(t, err, errno.ErrTerminalTransactionIsImmutable)

			txs, err = r.ListTransactions(ctx, nil, kind, id)
			require.NoError(t, err)
			assert.True(t, txs[0].IsFailed())
			assert.Equal(t, uint64(126154), txs[0].Gas)
			assert.Equal(t, "Contract error", txs[0].BlockchainError)
		})
	}
}

func TestAggregateRepoNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Seed(t, db, testutil.ChainID)
	r := NewAggregateRepo(db)
	ctx := context.Background()

	_, err := r.GetAggregate(ctx, nil, model.KindOrder, uuid.New(), false)
	assert.ErrorIs(t, err, errno.ErrOrderNotFound)
	_, err = r.GetAggregate(ctx, nil, model.KindPayout, uuid.New(), false)
	assert.ErrorIs(t, err, errno.ErrPayoutNotFound)
	_, err = r.GetAggregate(ctx, nil, model.KindMarketplace, uuid.New(), false)
	assert.ErrorIs(t, err, errno.ErrMarketplaceNotFound)

	ok, err := r.OwnerExists(ctx, nil, model.KindOrder, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregateRepoConfirmMarketplace(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	r := NewAggregateRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.MarkPending(ctx, nil, model.KindMarketplace, fx.Marketplace.ID, now))
	require.NoError(t, r.MarkAggregateConfirmed(ctx, nil, model.KindMarketplace, fx.Marketplace.ID, now, "0xc", "0xowner"))
	// order rows have no address columns; the extras are ignored for them
	require.NoError(t, r.MarkAggregateConfirmed(ctx, nil, model.KindOrder, fx.Order.ID, now, "0xc", "0xowner"))

	h, err := r.GetAggregate(ctx, nil, model.KindMarketplace, fx.Marketplace.ID, false)
	require.NoError(t, err)
	assert.NotNil(t, h.Lifecycle.ConfirmedAt)
	assert.Equal(t, "0xc", h.SmartContractAddress)
	assert.Equal(t, "0xowner", h.OwnerWalletAddress)

	addrs, err := r.ListContractAddresses(ctx, fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xc"}, addrs)
}

func TestListOutstandingScopesAndFilters(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	other := testutil.Seed(t, db, 5)
	r := NewAggregateRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	attach := func(f *testutil.Fixture, kind model.Kind, hash string) *model.ChainTransaction {
		row, err := r.CreateTransaction(ctx, nil, kind, f.IDOf(kind), hash)
		require.NoError(t, err)
		_ = r.MarkPending(ctx, nil, kind, f.IDOf(kind), now)
		return row
	}

	attach(fx, model.KindOrder, "0x01")
	attach(fx, model.KindPayout, "0x02")
	failed := attach(fx, model.KindMarketplace, "0x03")
	require.NoError(t, r.MarkTransactionFailed(ctx, nil, model.KindMarketplace, failed.ID, FailedFields{FailedAt: now}))
	attach(other, model.KindOrder, "0x04")

	orders, err := r.ListOutstanding(ctx, nil, model.KindOrder, fx.Scope.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "0x01", orders[0].Transaction.Hash)
	assert.Equal(t, fx.Order.ID, orders[0].AggregateID)

	payouts, err := r.ListOutstanding(ctx, nil, model.KindPayout, fx.Scope.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	markets, err := r.ListOutstanding(ctx, nil, model.KindMarketplace, fx.Scope.ID)
	require.NoError(t, err)
	assert.Empty(t, markets)

	// cancelled aggregates drop out of the candidate set
	require.NoError(t, r.MarkCancelled(ctx, nil, model.KindPayout, fx.Payout.ID, now))
	payouts, err = r.ListOutstanding(ctx, nil, model.KindPayout, fx.Scope.ID)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestCreateTransactionKeepsOneOutstanding(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	r := NewAggregateRepo(db)
	ctx := context.Background()

	for _, kind := range model.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			id := fx.IDOf(kind)
			first, err := r.CreateTransaction(ctx, nil, kind, id, "0x01")
			require.NoError(t, err)

			_, err = r.CreateTransaction(ctx, nil, kind, id, "0x02")
			assert.ErrorIs(t, err, errno.ErrHasPendingTransaction)
			assert.Equal(t, errno.KindConflict, errno.KindOf(err))

			// a terminal row frees the slot
			require.NoError(t, r.MarkTransactionFailed(ctx, nil, kind, first.ID, FailedFields{FailedAt: time.Now().UTC()}))
			long := "0x" + strings.Repeat("ab", 300)
			row, err := r.CreateTransaction(ctx, nil, kind, id, long)
			require.NoError(t, err)
			assert.Equal(t, long, row.Hash)
		})
	}
}

func TestScopeRepo(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)
	r := NewScopeRepo(db)
	ctx := context.Background()

	scope, err := r.GetScope(ctx, fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.ChainID, scope.Network.ChainID)

	_, err = r.GetScope(ctx, uuid.New())
	assert.ErrorIs(t, err, errno.ErrScopeNotFound)

	scopes, err := r.ListScopes(ctx)
	require.NoError(t, err)
	assert.Len(t, scopes, 1)
}
