package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/event"
	"marketplace-core/internal/lifecycle"
	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/testutil"
	"marketplace-core/pkg/errno"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receiptTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestReconcileNothingToCheck(t *testing.T) {
	e := newEnv(t)

	report, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	require.NoError(t, err)
	assert.False(t, report.Queried)
	assert.Zero(t, e.bc.calls)
	assert.Zero(t, report.Candidates)
}

func TestReconcileNoReceiptLeavesPending(t *testing.T) {
	e := newEnv(t)
	hash := testutil.EVMHash("aa")
	e.attach(t, model.KindMarketplace, hash)

	report, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.bc.calls)
	assert.Equal(t, 1, report.Unmatched)

	view, err := e.txs.StatusOf(context.Background(), model.KindMarketplace, e.fx.Seller.ID, e.fx.Marketplace.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePendingAwaitingConfirmation, view.State)
	assert.Equal(t, hash, view.OutstandingHash)
	assert.Zero(t, e.cc.calls)
}

func TestReconcileFailedReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash := testutil.EVMHash("ba5e")
	e.attach(t, model.KindOrder, hash)
	e.bc.receipts = []chain.Receipt{failedReceipt(hash, receiptTime)}

	report, err := e.engine.Reconcile(ctx, e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, e.cc.calls)

	txs := e.transactions(t, model.KindOrder)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsFailed())
	assert.Equal(t, receiptTime, txs[0].FailedAt.UTC())
	assert.Equal(t, "Contract error", txs[0].BlockchainError)
	assert.Equal(t, uint64(126154), txs[0].Gas)
	assert.Equal(t, "2523080000000000", txs[0].TransactionFee)
	assert.Equal(t, "0x00000000000000000000000000000000000000dd", txs[0].SenderAddress)

	view, err := e.txs.StatusOf(ctx, model.KindOrder, e.fx.Buyer.ID, e.fx.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePendingWithFailures, view.State)
	assert.Len(t, e.outbox(t, event.TopicTransactionFailed), 1)

	// the order accepts a new attach afterwards
	e.attach(t, model.KindOrder, testutil.EVMHash("ba5e2"))
	view, err = e.txs.StatusOf(ctx, model.KindOrder, e.fx.Buyer.ID, e.fx.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePendingAwaitingConfirmation, view.State)
	assert.Len(t, view.Failures, 1)
}

func TestReconcileConfirmsMarketplace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash := testutil.EVMHash("abc")
	e.attach(t, model.KindMarketplace, hash)
	receipt := successReceipt(hash, receiptTime)
	e.bc.receipts = []chain.Receipt{receipt}

	report, err := e.engine.Reconcile(ctx, e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, e.cc.calls)

	h := e.header(t, model.KindMarketplace)
	require.NotNil(t, h.Lifecycle.ConfirmedAt)
	assert.Equal(t, receiptTime, h.Lifecycle.ConfirmedAt.UTC())
	assert.Equal(t, e.cc.address, h.SmartContractAddress)
	assert.Equal(t, receipt.SenderAddress, h.OwnerWalletAddress)

	txs := e.transactions(t, model.KindMarketplace)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].ConfirmedAt)
	assert.Equal(t, receiptTime, txs[0].ConfirmedAt.UTC())
	assert.Equal(t, e.cc.address, txs[0].SmartContractAddress)
	assert.Equal(t, uint64(21000), txs[0].Gas)

	view, err := e.txs.StatusOf(ctx, model.KindMarketplace, e.fx.Seller.ID, e.fx.Marketplace.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateConfirmed, view.State)

	msgs := e.outbox(t, event.TopicAggregateConfirmed)
	require.Len(t, msgs, 1)
	var ev event.AggregateConfirmedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ev))
	assert.Equal(t, hash, ev.Hash)
	assert.Equal(t, e.cc.address, ev.SmartContractAddress)

	// the next pass finds nothing awaiting and does not call the chain
	report, err = e.engine.Reconcile(ctx, e.fx.Scope.ID)
	require.NoError(t, err)
	assert.False(t, report.Queried)
	assert.Equal(t, 1, e.bc.calls)
}

func TestReconcileUnresolvedContractAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash := testutil.EVMHash("abc")
	e.attach(t, model.KindMarketplace, hash)
	e.bc.receipts = []chain.Receipt{successReceipt(hash, receiptTime)}
	e.cc.address = ""

	_, err := e.engine.Reconcile(ctx, e.fx.Scope.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrUnableToResolveContractAddress)
	assert.Equal(t, errno.KindInternal, errno.KindOf(err))

	h := e.header(t, model.KindMarketplace)
	assert.Nil(t, h.Lifecycle.ConfirmedAt)
	assert.Empty(t, h.SmartContractAddress)

	txs := e.transactions(t, model.KindMarketplace)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsOutstanding())
	assert.Empty(t, e.outbox(t, event.TopicAggregateConfirmed))
}

func TestReconcileRollsBackInvalidConfirmation(t *testing.T) {
	e := newEnv(t)
	hash := testutil.EVMHash("abc")
	e.attach(t, model.KindPayout, hash)
	receipt := successReceipt(hash, receiptTime)
	receipt.Gas = 0
	e.bc.receipts = []chain.Receipt{receipt}

	_, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	assert.ErrorIs(t, err, errno.ErrConfirmedTransactionMustHaveGas)

	assert.Nil(t, e.header(t, model.KindPayout).Lifecycle.ConfirmedAt)
	assert.True(t, e.transactions(t, model.KindPayout)[0].IsOutstanding())
}

func TestReconcileOneCallForAllKinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mh, oh, ph := testutil.EVMHash("01"), testutil.EVMHash("02"), testutil.EVMHash("03")
	e.attach(t, model.KindMarketplace, mh)
	e.attach(t, model.KindOrder, oh)
	e.attach(t, model.KindPayout, ph)

	e.bc.receipts = []chain.Receipt{
		successReceipt(mh, receiptTime),
		failedReceipt(oh, receiptTime),
		successReceipt(testutil.EVMHash("ff"), receiptTime), // foreign receipt, ignored
	}

	report, err := e.engine.Reconcile(ctx, e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.bc.calls)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Unmatched)

	// watermark is the earliest outstanding transaction minus the lookback
	first := e.transactions(t, model.KindMarketplace)[0]
	require.Len(t, e.bc.since, 1)
	assert.WithinDuration(t, first.CreatedAt.Add(-time.Hour), e.bc.since[0], time.Second)
}

func TestReconcileSkipsMalformedHashes(t *testing.T) {
	e := newEnv(t)
	e.attach(t, model.KindOrder, "0xaa")

	report, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Candidates)
	assert.Zero(t, e.bc.calls)
}

func TestReconcileDuplicateOutstandingDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mh := testutil.EVMHash("01")
	e.attach(t, model.KindMarketplace, mh)
	e.attach(t, model.KindOrder, testutil.EVMHash("02"))
	// corrupt the order with a second outstanding row, as a store migrated without the partial index could hold
	require.NoError(t, e.db.Exec("DROP INDEX idx_order_transactions_outstanding").Error)
	_, err := e.aggregates.CreateTransaction(ctx, nil, model.KindOrder, e.fx.Order.ID, testutil.EVMHash("03"))
	require.NoError(t, err)

	e.bc.receipts = []chain.Receipt{successReceipt(mh, receiptTime)}

	report, err := e.engine.Reconcile(ctx, e.fx.Scope.ID)
	assert.ErrorIs(t, err, errno.ErrPendingMustHaveAtMostOneOutstanding)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, report.Errors)
	assert.NotNil(t, e.header(t, model.KindMarketplace).Lifecycle.ConfirmedAt)
}

func TestReconcileFetchFailureAborts(t *testing.T) {
	e := newEnv(t)
	e.attach(t, model.KindOrder, testutil.EVMHash("02"))
	e.bc.err = errors.New("rpc timeout")

	_, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	assert.ErrorIs(t, err, errno.ErrReceiptFetchFailed)
	assert.Contains(t, err.Error(), "rpc timeout")
	assert.True(t, e.transactions(t, model.KindOrder)[0].IsOutstanding())
}

func TestReconcileContractLookupFailureAborts(t *testing.T) {
	e := newEnv(t)
	mh, ph := testutil.EVMHash("01"), testutil.EVMHash("03")
	e.attach(t, model.KindMarketplace, mh)
	e.attach(t, model.KindPayout, ph)
	e.bc.receipts = []chain.Receipt{successReceipt(mh, receiptTime), successReceipt(ph, receiptTime)}
	e.cc.err = errors.New("node unavailable")

	_, err := e.engine.Reconcile(context.Background(), e.fx.Scope.ID)
	assert.ErrorIs(t, err, errno.ErrContractResolutionFailed)
	assert.Equal(t, 1, e.cc.calls)
}

func TestReconcileScopeAndClientErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.engine.Reconcile(ctx, uuid.New())
	assert.ErrorIs(t, err, errno.ErrScopeNotFound)
	assert.Equal(t, errno.KindClient, errno.KindOf(err))

	other := testutil.Seed(t, e.db, 137)
	_, err = e.engine.Reconcile(ctx, other.Scope.ID)
	assert.ErrorIs(t, err, errno.ErrBlockchainClientNotFound)
	assert.Contains(t, err.Error(), "137")
}

func TestReconcileSkipsCandidateChangedUnderLock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash := testutil.EVMHash("01")
	row := e.attach(t, model.KindOrder, hash)

	c := candidate{kind: model.KindOrder, aggregateID: e.fx.Order.ID, tx: *row}
	require.NoError(t, e.aggregates.MarkTransactionFailed(ctx, nil, model.KindOrder, row.ID, repo.FailedFields{FailedAt: receiptTime}))

	err := e.engine.applyConfirmation(ctx, e.fx.Scope.ID, c, successReceipt(hash, receiptTime), "0xc")
	assert.ErrorIs(t, err, errStale)
	assert.Nil(t, e.header(t, model.KindOrder).Lifecycle.ConfirmedAt)
}

func TestReconcileLooksUpReceiptsOutsideTheScan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	deepHash := testutil.EVMHash("de")
	scannedHash := testutil.EVMHash("5c")
	e.attach(t, model.KindMarketplace, deepHash)
	e.attach(t, model.KindOrder, scannedHash)

	bc := &lookupBlockchain{
		fakeBlockchain: &fakeBlockchain{receipts: []chain.Receipt{failedReceipt(scannedHash, receiptTime)}},
		deep:           map[string]chain.Receipt{deepHash: successReceipt(deepHash, receiptTime)},
	}
	registry := chain.NewRegistry()
	registry.Register(testutil.ChainID, bc, e.cc, nil)
	engine := NewReconcileService(e.aggregates, repo.NewScopeRepo(e.db), registry, time.Hour)

	report, err := engine.Reconcile(ctx, e.fx.Scope.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Unmatched)
	assert.Equal(t, []string{deepHash}, bc.lookups)

	view, err := e.txs.StatusOf(ctx, model.KindMarketplace, e.fx.Seller.ID, e.fx.Marketplace.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateConfirmed, view.State)

	t.Run("lookup failure aborts the pass", func(t *testing.T) {
		e := newEnv(t)
		e.attach(t, model.KindMarketplace, deepHash)
		bc := &lookupBlockchain{fakeBlockchain: &fakeBlockchain{}, err: errors.New("rpc down")}
		registry := chain.NewRegistry()
		registry.Register(testutil.ChainID, bc, e.cc, nil)
		engine := NewReconcileService(e.aggregates, repo.NewScopeRepo(e.db), registry, time.Hour)

		_, err := engine.Reconcile(ctx, e.fx.Scope.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, errno.ErrReceiptFetchFailed)
	})
}
