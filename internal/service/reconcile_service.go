package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/event"
	"marketplace-core/internal/lifecycle"
	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Report summarises one reconciliation pass over a scope
type Report struct {
	ScopeID    uuid.UUID `json:"scope_id"`
	Network    string    `json:"network"`
	ChainID    int64     `json:"chain_id"`
	Candidates int       `json:"candidates"`
	Skipped    int       `json:"skipped"`   // malformed hashes or changed under us
	Unmatched  int       `json:"unmatched"` // not indexed yet
	Confirmed  int       `json:"confirmed"`
	Failed     int       `json:"failed"`
	Errors     int       `json:"errors"`
	Queried    bool      `json:"queried"` // the blockchain client was called
}

// errStale marks a candidate that stopped awaiting confirmation between load and lock
var errStale = errors.New("candidate is no longer awaiting confirmation")

type candidate struct {
	kind        model.Kind
	aggregateID uuid.UUID
	tx          model.ChainTransaction
}

// ReconcileService promotes or fails outstanding transactions from chain receipts, one scope per call
type ReconcileService struct {
	aggregates *repo.AggregateRepo
	scopes     *repo.ScopeRepo
	registry   *chain.Registry
	lookback   time.Duration
}

func NewReconcileService(aggregates *repo.AggregateRepo, scopes *repo.ScopeRepo, registry *chain.Registry, lookback time.Duration) *ReconcileService {
	return &ReconcileService{aggregates: aggregates, scopes: scopes, registry: registry, lookback: lookback}
}

// Reconcile runs one pass. Client lookup and external call failures abort the pass;
// per-aggregate problems are collected and returned joined after every other item was processed.
// Items already written stay written.
func (s *ReconcileService) Reconcile(ctx context.Context, scopeID uuid.UUID) (*Report, error) {
	start := time.Now()

	scope, err := s.scopes.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	network := chain.Network{
		ID:                 scope.Network.ID,
		Name:               scope.Network.Name,
		ChainID:            scope.Network.ChainID,
		ScopeID:            scope.ID,
		MarketplaceAddress: scope.Address,
	}
	report := &Report{ScopeID: scope.ID, Network: network.Name, ChainID: network.ChainID}
	defer observePass(network.Name, start)

	bc, err := s.registry.BlockchainClient(network.ChainID)
	if err != nil {
		return report, err
	}
	cc, err := s.registry.ContractClient(network.ChainID)
	if err != nil {
		return report, err
	}

	log := logger.With(zap.String("scope_id", scope.ID.String()), zap.String("network", network.Name))

	candidates, itemErrs, err := s.loadCandidates(ctx, scope.ID, s.registry.HashFormat(network.ChainID), report)
	if err != nil {
		return report, err
	}
	if len(candidates) == 0 {
		log.Debug("nothing to reconcile")
		report.Errors = len(itemErrs)
		return report, errors.Join(itemErrs...)
	}

	since := candidates[0].tx.CreatedAt
	for _, c := range candidates[1:] {
		if c.tx.CreatedAt.Before(since) {
			since = c.tx.CreatedAt
		}
	}
	since = since.Add(-s.lookback)

	report.Queried = true
	receipts, err := bc.GetTransactions(ctx, network, since)
	if err != nil {
		return report, errno.ErrReceiptFetchFailed.WithMessage(fmt.Sprintf("unable to fetch transactions from chain id %d", network.ChainID)).Wrap(err)
	}
	byHash := make(map[string]chain.Receipt, len(receipts))
	for _, r := range receipts {
		byHash[strings.ToLower(r.Hash)] = r
	}

	lookup, _ := bc.(chain.ReceiptLookup)
	for _, c := range candidates {
		receipt, ok := byHash[c.tx.Hash]
		if !ok && lookup != nil {
			// not indexed yet, or mined below the scanned window
			found, err := lookup.GetReceipt(ctx, network, c.tx.Hash)
			if err != nil {
				return report, errno.ErrReceiptFetchFailed.WithMessage(fmt.Sprintf("unable to fetch transaction %s from chain id %d", c.tx.Hash, network.ChainID)).Wrap(err)
			}
			if found != nil {
				receipt, ok = *found, true
			}
		}
		if !ok {
			report.Unmatched++
			continue
		}

		var applyErr error
		if !receipt.Success {
			applyErr = s.applyFailure(ctx, scope.ID, c, receipt)
			if applyErr == nil {
				report.Failed++
				observeOutcome(network.Name, "failed")
			}
		} else {
			address, err := cc.GetSellerMarketplaceAddress(ctx, network, receipt)
			if err != nil {
				return report, errno.ErrContractResolutionFailed.WithMessage(fmt.Sprintf("contract address lookup failed for %s", receipt.Hash)).Wrap(err)
			}
			if address == "" {
				applyErr = errno.ErrUnableToResolveContractAddress.WithMessage(fmt.Sprintf(
					"unable to resolve contract address from blockchain marketplace (%s %s, transaction %s)", c.kind, c.aggregateID, c.tx.Hash))
			} else {
				applyErr = s.applyConfirmation(ctx, scope.ID, c, receipt, strings.ToLower(address))
				if applyErr == nil {
					report.Confirmed++
					observeOutcome(network.Name, "confirmed")
					observeTransition(c.kind, lifecycle.StateConfirmed)
				}
			}
		}

		switch {
		case applyErr == nil:
		case errors.Is(applyErr, errStale):
			report.Skipped++
		default:
			log.Error("reconcile item failed",
				zap.String("kind", string(c.kind)),
				zap.String("aggregate_id", c.aggregateID.String()),
				zap.String("hash", c.tx.Hash),
				zap.String("error_name", errno.NameOf(applyErr)),
				zap.Error(applyErr))
			observeOutcome(network.Name, "error")
			itemErrs = append(itemErrs, applyErr)
		}
	}

	report.Errors = len(itemErrs)
	log.Info("reconcile pass finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("failed", report.Failed),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("errors", report.Errors))
	return report, errors.Join(itemErrs...)
}

// loadCandidates collects one outstanding transaction per awaiting aggregate of every kind.
// An aggregate with several outstanding rows is reported and left out.
func (s *ReconcileService) loadCandidates(ctx context.Context, scopeID uuid.UUID, format chain.HashFormat, report *Report) ([]candidate, []error, error) {
	var (
		out  []candidate
		errs []error
	)
	for _, kind := range model.Kinds {
		rows, err := s.aggregates.ListOutstanding(ctx, nil, kind, scopeID)
		if err != nil {
			return nil, nil, err
		}

		grouped := make(map[uuid.UUID][]model.ChainTransaction)
		var order []uuid.UUID
		for _, r := range rows {
			if _, seen := grouped[r.AggregateID]; !seen {
				order = append(order, r.AggregateID)
			}
			grouped[r.AggregateID] = append(grouped[r.AggregateID], r.Transaction)
		}

		for _, id := range order {
			txs := grouped[id]
			if len(txs) > 1 {
				errs = append(errs, errno.ErrPendingMustHaveAtMostOneOutstanding.WithMessage(fmt.Sprintf(
					"pending aggregate must have at most one outstanding transaction (%s %s): found %d", kind, id, len(txs))))
				continue
			}
			if !format(txs[0].Hash) {
				report.Skipped++
				continue
			}
			out = append(out, candidate{kind: kind, aggregateID: id, tx: txs[0]})
		}
	}
	report.Candidates = len(out)
	return out, errs, nil
}

// lockCandidate re-derives the aggregate under its row lock. errStale when the
// candidate is not the outstanding transaction anymore.
func (s *ReconcileService) lockCandidate(ctx context.Context, tx *gorm.DB, c candidate) (model.AggregateHeader, error) {
	h, err := s.aggregates.GetAggregate(ctx, tx, c.kind, c.aggregateID, true)
	if err != nil {
		return h, err
	}
	txs, err := s.aggregates.ListTransactions(ctx, tx, c.kind, c.aggregateID)
	if err != nil {
		return h, err
	}
	st, err := lifecycle.Derive(h, txs)
	if err != nil {
		return h, err
	}
	if !st.AwaitingConfirmation() || st.Outstanding.ID != c.tx.ID {
		return h, errStale
	}
	return h, nil
}

func (s *ReconcileService) applyFailure(ctx context.Context, scopeID uuid.UUID, c candidate, r chain.Receipt) error {
	return s.aggregates.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockCandidate(ctx, tx, c); err != nil {
			return err
		}
		fields := repo.FailedFields{
			FailedAt:        r.Timestamp.UTC(),
			SenderAddress:   strings.ToLower(r.SenderAddress),
			Gas:             r.Gas,
			TransactionFee:  r.GasFee,
			BlockchainError: r.Error,
		}
		if err := s.aggregates.MarkTransactionFailed(ctx, tx, c.kind, c.tx.ID, fields); err != nil {
			return err
		}
		return model.CreateOutboxMessage(tx, event.TopicTransactionFailed, c.aggregateID.String(), event.TransactionFailedEvent{
			Kind:            string(c.kind),
			AggregateID:     c.aggregateID,
			ScopeID:         scopeID,
			Hash:            c.tx.Hash,
			SenderAddress:   fields.SenderAddress,
			Gas:             fields.Gas,
			TransactionFee:  fields.TransactionFee,
			BlockchainError: fields.BlockchainError,
			FailedAt:        fields.FailedAt,
		})
	})
}

// applyConfirmation confirms the transaction and its aggregate in one transaction and
// re-derives afterwards, so a receipt missing a required field rolls back instead of
// leaving an invalid confirmed row.
func (s *ReconcileService) applyConfirmation(ctx context.Context, scopeID uuid.UUID, c candidate, r chain.Receipt, address string) error {
	return s.aggregates.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockCandidate(ctx, tx, c); err != nil {
			return err
		}

		at := r.Timestamp.UTC()
		sender := strings.ToLower(r.SenderAddress)
		fields := repo.ConfirmedFields{
			ConfirmedAt:          at,
			SenderAddress:        sender,
			SmartContractAddress: address,
			Gas:                  r.Gas,
			TransactionFee:       r.GasFee,
		}
		if err := s.aggregates.MarkTransactionConfirmed(ctx, tx, c.kind, c.tx.ID, fields); err != nil {
			return err
		}
		if err := s.aggregates.MarkAggregateConfirmed(ctx, tx, c.kind, c.aggregateID, at, address, sender); err != nil {
			return err
		}

		h, err := s.aggregates.GetAggregate(ctx, tx, c.kind, c.aggregateID, false)
		if err != nil {
			return err
		}
		txs, err := s.aggregates.ListTransactions(ctx, tx, c.kind, c.aggregateID)
		if err != nil {
			return err
		}
		if _, err := lifecycle.Derive(h, txs); err != nil {
			return err
		}

		ev := event.AggregateConfirmedEvent{
			Kind:                 string(c.kind),
			AggregateID:          c.aggregateID,
			ScopeID:              scopeID,
			Hash:                 c.tx.Hash,
			SenderAddress:        sender,
			SmartContractAddress: address,
			AmountPaid:           r.AmountPaid.String(),
			ConfirmedAt:          at,
		}
		if r.TokenAddress != nil {
			ev.TokenAddress = *r.TokenAddress
		}
		return model.CreateOutboxMessage(tx, event.TopicAggregateConfirmed, c.aggregateID.String(), ev)
	})
}

func observePass(network string, start time.Time) {
	if monitor.Business == nil {
		return
	}
	monitor.Business.ReconcilePassDuration.WithLabelValues(network).Observe(time.Since(start).Seconds())
}

func observeOutcome(network, outcome string) {
	if monitor.Business == nil {
		return
	}
	monitor.Business.ReconcileOutcomesTotal.WithLabelValues(network, outcome).Inc()
}
