package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeBlockchain struct {
	mu       sync.Mutex
	receipts []chain.Receipt
	err      error
	calls    int
	since    []time.Time
}

func (f *fakeBlockchain) GetTransactions(_ context.Context, _ chain.Network, since time.Time) ([]chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.receipts, nil
}

// lookupBlockchain also answers single hash lookups for transactions outside the scan
type lookupBlockchain struct {
	*fakeBlockchain
	deep    map[string]chain.Receipt
	err     error
	lookups []string
}

func (f *lookupBlockchain) GetReceipt(_ context.Context, _ chain.Network, hash string) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, hash)
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.deep[hash]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

type fakeContracts struct {
	mu      sync.Mutex
	address string
	err     error
	calls   int
}

func (f *fakeContracts) GetSellerMarketplaceAddress(context.Context, chain.Network, chain.Receipt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.address, f.err
}

type env struct {
	db         *gorm.DB
	fx         *testutil.Fixture
	aggregates *repo.AggregateRepo
	txs        *TransactionService
	engine     *ReconcileService
	bc         *fakeBlockchain
	cc         *fakeContracts
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.ChainID)

	bc := &fakeBlockchain{}
	cc := &fakeContracts{address: "0x00000000000000000000000000000000000000cc"}
	registry := chain.NewRegistry()
	registry.Register(testutil.ChainID, bc, cc, nil)

	aggregates := repo.NewAggregateRepo(db)
	return &env{
		db:         db,
		fx:         fx,
		aggregates: aggregates,
		txs:        NewTransactionService(aggregates),
		engine:     NewReconcileService(aggregates, repo.NewScopeRepo(db), registry, time.Hour),
		bc:         bc,
		cc:         cc,
	}
}

// attach puts hash on the fixture aggregate of kind
func (e *env) attach(t *testing.T, kind model.Kind, hash string) *model.ChainTransaction {
	t.Helper()
	row, err := e.txs.Attach(context.Background(), kind, e.fx.OwnerOf(kind), e.fx.IDOf(kind), hash)
	require.NoError(t, err)
	return row
}

func (e *env) transactions(t *testing.T, kind model.Kind) []model.ChainTransaction {
	t.Helper()
	txs, err := e.aggregates.ListTransactions(context.Background(), nil, kind, e.fx.IDOf(kind))
	require.NoError(t, err)
	return txs
}

func (e *env) header(t *testing.T, kind model.Kind) model.AggregateHeader {
	t.Helper()
	h, err := e.aggregates.GetAggregate(context.Background(), nil, kind, e.fx.IDOf(kind), false)
	require.NoError(t, err)
	return h
}

func (e *env) outbox(t *testing.T, topic string) []model.OutboxMessage {
	t.Helper()
	var msgs []model.OutboxMessage
	require.NoError(t, e.db.Where("topic = ?", topic).Order("id ASC").Find(&msgs).Error)
	return msgs
}

func successReceipt(hash string, ts time.Time) chain.Receipt {
	return chain.Receipt{
		Hash:          hash,
		SenderAddress: "0x00000000000000000000000000000000000000dd",
		Success:       true,
		Timestamp:     ts,
		Gas:           21000,
		GasFee:        "420000000000000",
	}
}

func failedReceipt(hash string, ts time.Time) chain.Receipt {
	return chain.Receipt{
		Hash:          hash,
		SenderAddress: "0x00000000000000000000000000000000000000dd",
		Success:       false,
		Error:         "Contract error",
		Timestamp:     ts,
		Gas:           126154,
		GasFee:        "2523080000000000",
	}
}
