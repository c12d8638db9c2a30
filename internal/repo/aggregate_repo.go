// Package repo holds the gorm queries behind the three aggregate kinds and their transactions.
// Every method takes an optional tx; nil runs on the repo's own handle.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-core/internal/model"
	"marketplace-core/pkg/errno"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FailedFields are copied from a failing receipt
type FailedFields struct {
	FailedAt        time.Time
	SenderAddress   string
	Gas             uint64
	TransactionFee  string
	BlockchainError string
}

// ConfirmedFields are copied from a successful receipt
type ConfirmedFields struct {
	ConfirmedAt          time.Time
	SenderAddress        string
	SmartContractAddress string
	Gas                  uint64
	TransactionFee       string
}

// Outstanding is one outstanding transaction together with the aggregate it belongs to
type Outstanding struct {
	Kind        model.Kind
	AggregateID uuid.UUID
	Transaction model.ChainTransaction
}

type AggregateRepo struct {
	db *gorm.DB
}

func NewAggregateRepo(db *gorm.DB) *AggregateRepo {
	return &AggregateRepo{db: db}
}

func (r *AggregateRepo) DB() *gorm.DB {
	return r.db
}

func (r *AggregateRepo) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx)
}

// OwnerExists reports whether the seller or buyer owning kind exists
func (r *AggregateRepo) OwnerExists(ctx context.Context, tx *gorm.DB, kind model.Kind, ownerID uuid.UUID) (bool, error) {
	var count int64
	if err := r.conn(ctx, tx).Table(kind.OwnerTable()).Where("id = ?", ownerID).Count(&count).Error; err != nil {
		return false, errno.ErrDatabase.Wrap(err)
	}
	return count > 0, nil
}

// GetAggregate loads the aggregate header. forUpdate takes the row lock (悲观锁) for the
// rest of tx. A missing row is kind.ErrNotFound().
func (r *AggregateRepo) GetAggregate(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, forUpdate bool) (model.AggregateHeader, error) {
	q := r.conn(ctx, tx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var (
		header model.AggregateHeader
		err    error
	)
	switch kind {
	case model.KindMarketplace:
		var m model.SellerMarketplace
		err = q.First(&m, "id = ?", id).Error
		header = m.Header()
	case model.KindOrder:
		var o model.ProductOrder
		err = q.First(&o, "id = ?", id).Error
		header = o.Header()
	case model.KindPayout:
		var p model.SellerPayout
		err = q.First(&p, "id = ?", id).Error
		header = p.Header()
	default:
		return model.AggregateHeader{}, errno.ErrUnknownAggregateKind
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AggregateHeader{}, kind.ErrNotFound()
	}
	if err != nil {
		return model.AggregateHeader{}, errno.ErrDatabase.Wrap(err)
	}
	return header, nil
}

// ListTransactions returns the aggregate's transactions in insertion order
func (r *AggregateRepo) ListTransactions(ctx context.Context, tx *gorm.DB, kind model.Kind, aggregateID uuid.UUID) ([]model.ChainTransaction, error) {
	var txs []model.ChainTransaction
	err := r.conn(ctx, tx).Table(kind.TransactionTable()).
		Where("aggregate_id = ?", aggregateID).
		Order("id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return txs, nil
}

// CreateTransaction inserts a new outstanding transaction
func (r *AggregateRepo) CreateTransaction(ctx context.Context, tx *gorm.DB, kind model.Kind, aggregateID uuid.UUID, hash string) (*model.ChainTransaction, error) {
	row := &model.ChainTransaction{AggregateID: aggregateID, Hash: hash}
	err := r.conn(ctx, tx).Table(kind.TransactionTable()).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent attach
		return nil, errno.ErrHasPendingTransaction.Wrap(err)
	}
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return row, nil
}

// MarkPending sets pending_at once
func (r *AggregateRepo) MarkPending(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, at time.Time) error {
	return r.setTimestamp(ctx, tx, kind, id, "pending_at", at, nil)
}

// MarkCancelled sets cancelled_at once
func (r *AggregateRepo) MarkCancelled(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, at time.Time) error {
	return r.setTimestamp(ctx, tx, kind, id, "cancelled_at", at, nil)
}

// MarkRefunded sets refunded_at once
func (r *AggregateRepo) MarkRefunded(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, at time.Time) error {
	return r.setTimestamp(ctx, tx, kind, id, "refunded_at", at, nil)
}

// MarkAggregateConfirmed sets confirmed_at. Marketplace registrations also receive
// their contract and owner wallet address.
func (r *AggregateRepo) MarkAggregateConfirmed(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, at time.Time, contractAddress, ownerWallet string) error {
	var extra map[string]interface{}
	if kind == model.KindMarketplace {
		extra = map[string]interface{}{
			"smart_contract_address": contractAddress,
			"owner_wallet_address":   ownerWallet,
		}
	}
	return r.setTimestamp(ctx, tx, kind, id, "confirmed_at", at, extra)
}

func (r *AggregateRepo) setTimestamp(ctx context.Context, tx *gorm.DB, kind model.Kind, id uuid.UUID, column string, at time.Time, extra map[string]interface{}) error {
	updates := map[string]interface{}{column: at, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.conn(ctx, tx).Table(kind.Table()).
		Where("id = ?", id).
		Where(column + " IS NULL").
		Updates(updates)
	if res.Error != nil {
		return errno.ErrDatabase.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return errno.ErrConflictingTerminalTimestamps.WithMessage(fmt.Sprintf("%s %s: %s already set", kind, id, column))
	}
	return nil
}

// MarkTransactionFailed turns an outstanding transaction into a failed one
func (r *AggregateRepo) MarkTransactionFailed(ctx context.Context, tx *gorm.DB, kind model.Kind, txID uint64, f FailedFields) error {
	return r.finishTransaction(ctx, tx, kind, txID, map[string]interface{}{
		"failed_at":        f.FailedAt,
		"sender_address":   f.SenderAddress,
		"gas":              f.Gas,
		"transaction_fee":  f.TransactionFee,
		"blockchain_error": f.BlockchainError,
	})
}

// MarkTransactionConfirmed turns an outstanding transaction into the confirmed one
func (r *AggregateRepo) MarkTransactionConfirmed(ctx context.Context, tx *gorm.DB, kind model.Kind, txID uint64, f ConfirmedFields) error {
	return r.finishTransaction(ctx, tx, kind, txID, map[string]interface{}{
		"confirmed_at":           f.ConfirmedAt,
		"sender_address":         f.SenderAddress,
		"smart_contract_address": f.SmartContractAddress,
		"gas":                    f.Gas,
		"transaction_fee":        f.TransactionFee,
	})
}

// finishTransaction only touches rows that are still outstanding; terminal rows are immutable
func (r *AggregateRepo) finishTransaction(ctx context.Context, tx *gorm.DB, kind model.Kind, txID uint64, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.conn(ctx, tx).Table(kind.TransactionTable()).
		Where("id = ? AND confirmed_at IS NULL AND failed_at IS NULL", txID).
		Updates(updates)
	if res.Error != nil {
		return errno.ErrDatabase.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return errno.ErrTerminalTransactionIsImmutable.WithMessage(fmt.Sprintf("%s transaction %d is not outstanding", kind, txID))
	}
	return nil
}

// ListOutstanding returns the outstanding transactions of every pending, unconfirmed,
// uncancelled aggregate of kind that belongs to the scope.
func (r *AggregateRepo) ListOutstanding(ctx context.Context, tx *gorm.DB, kind model.Kind, scopeID uuid.UUID) ([]Outstanding, error) {
	q := r.conn(ctx, tx).
		Table(kind.TransactionTable()+" AS t").
		Select("t.*").
		Joins("JOIN " + kind.Table() + " AS a ON a.id = t.aggregate_id")

	if kind == model.KindMarketplace {
		q = q.Where("a.blockchain_marketplace_id = ?", scopeID)
	} else {
		q = q.Joins("JOIN "+model.KindMarketplace.Table()+" AS sm ON sm.id = a.seller_marketplace_id").
			Where("sm.blockchain_marketplace_id = ?", scopeID)
	}

	var rows []model.ChainTransaction
	err := q.
		Where("t.confirmed_at IS NULL AND t.failed_at IS NULL").
		Where("a.pending_at IS NOT NULL AND a.confirmed_at IS NULL AND a.cancelled_at IS NULL AND a.refunded_at IS NULL").
		Order("t.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}

	out := make([]Outstanding, 0, len(rows))
	for _, row := range rows {
		out = append(out, Outstanding{Kind: kind, AggregateID: row.AggregateID, Transaction: row})
	}
	return out, nil
}

// ListContractAddresses returns the contract addresses of the confirmed seller marketplaces in a scope
func (r *AggregateRepo) ListContractAddresses(ctx context.Context, scopeID uuid.UUID) ([]string, error) {
	var addrs []string
	err := r.conn(ctx, nil).Model(&model.SellerMarketplace{}).
		Where("blockchain_marketplace_id = ? AND confirmed_at IS NOT NULL AND smart_contract_address <> ''", scopeID).
		Pluck("smart_contract_address", &addrs).Error
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return addrs, nil
}
