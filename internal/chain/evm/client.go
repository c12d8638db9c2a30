// Package evm implements the chain collaborators on top of an Ethereum JSON-RPC node.
package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/pkg/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultScanLimit = 500

// erc20 transfer(address,uint256)
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// Backend is the part of ethclient.Client the scanner needs
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// AddressSource lists extra contract addresses whose incoming transactions are relevant,
// usually the confirmed seller marketplaces of the scope.
type AddressSource func(ctx context.Context, network chain.Network) ([]string, error)

var _ chain.ReceiptLookup = (*Client)(nil)

// Client 扫描区块, returns receipts of transactions sent to watched contracts
type Client struct {
	backend   Backend
	scanLimit uint64
	watched   AddressSource
}

func NewClient(backend Backend, scanLimit uint64, watched AddressSource) *Client {
	if scanLimit == 0 {
		scanLimit = defaultScanLimit
	}
	return &Client{backend: backend, scanLimit: scanLimit, watched: watched}
}

// Dial connects to the node at rpcURL
func Dial(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// GetTransactions walks back from the chain head until the block time drops below since
// or the scan limit is reached. Anything deeper is left to GetReceipt.
func (c *Client) GetTransactions(ctx context.Context, network chain.Network, since time.Time) ([]chain.Receipt, error) {
	watch, err := c.watchSet(ctx, network)
	if err != nil {
		return nil, err
	}
	if len(watch) == 0 {
		return []chain.Receipt{}, nil
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}

	signer := types.LatestSignerForChainID(big.NewInt(network.ChainID))
	receipts := []chain.Receipt{}

	number := new(big.Int).Set(head.Number)
	for scanned := uint64(0); scanned < c.scanLimit && number.Sign() >= 0; scanned++ {
		block, err := c.backend.BlockByNumber(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("fetch block %s: %w", number, err)
		}
		if blockTime(block).Before(since) {
			break
		}

		for _, tx := range block.Transactions() {
			if !relevant(tx, watch) {
				continue
			}
			rcpt, err := c.backend.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return nil, fmt.Errorf("fetch receipt %s: %w", tx.Hash().Hex(), err)
			}
			r, err := ConvertReceipt(block, tx, rcpt, signer)
			if err != nil {
				logger.Warn("skip transaction with unrecoverable sender",
					zap.String("hash", tx.Hash().Hex()), zap.Error(err))
				continue
			}
			receipts = append(receipts, r)
		}

		number.Sub(number, big.NewInt(1))
	}

	logger.Debug("evm scan finished",
		zap.String("network", network.Name),
		zap.Int("receipts", len(receipts)))
	return receipts, nil
}

// GetReceipt fetches one transaction by hash, however deep below the head it was mined.
// A nil receipt with a nil error means the transaction is unknown, still pending,
// or not sent to a watched contract.
func (c *Client) GetReceipt(ctx context.Context, network chain.Network, hash string) (*chain.Receipt, error) {
	txHash := common.HexToHash(hash)
	rcpt, err := c.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", hash, err)
	}
	if rcpt.BlockNumber == nil {
		return nil, nil
	}

	block, err := c.backend.BlockByNumber(ctx, rcpt.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch block %s: %w", rcpt.BlockNumber, err)
	}
	tx := block.Transaction(txHash)
	if tx == nil {
		// reorged out after the receipt was served
		return nil, nil
	}

	watch, err := c.watchSet(ctx, network)
	if err != nil {
		return nil, err
	}
	if !relevant(tx, watch) {
		return nil, nil
	}

	r, err := ConvertReceipt(block, tx, rcpt, types.LatestSignerForChainID(big.NewInt(network.ChainID)))
	if err != nil {
		return nil, fmt.Errorf("convert receipt %s: %w", hash, err)
	}
	return &r, nil
}

// relevant reports whether tx pays a watched contract, directly or through an erc20 transfer
func relevant(tx *types.Transaction, watch map[string]struct{}) bool {
	if tx.To() == nil {
		return false
	}
	if _, ok := watch[strings.ToLower(tx.To().Hex())]; ok {
		return true
	}
	recipient, _, ok := decodeTransfer(tx.Data())
	if !ok {
		return false
	}
	_, ok = watch[strings.ToLower(recipient.Hex())]
	return ok
}

// decodeTransfer unpacks transfer(address,uint256) call data
func decodeTransfer(data []byte) (common.Address, *big.Int, bool) {
	if len(data) < 68 || !bytes.Equal(data[:4], transferSelector) {
		return common.Address{}, nil, false
	}
	return common.BytesToAddress(data[16:36]), new(big.Int).SetBytes(data[36:68]), true
}

func (c *Client) watchSet(ctx context.Context, network chain.Network) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if network.MarketplaceAddress != "" {
		set[strings.ToLower(network.MarketplaceAddress)] = struct{}{}
	}
	if c.watched == nil {
		return set, nil
	}
	extra, err := c.watched(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("list watched addresses: %w", err)
	}
	for _, a := range extra {
		if a != "" {
			set[strings.ToLower(a)] = struct{}{}
		}
	}
	return set, nil
}

// ConvertReceipt builds the chain-neutral receipt of tx mined in block
func ConvertReceipt(block *types.Block, tx *types.Transaction, rcpt *types.Receipt, signer types.Signer) (chain.Receipt, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return chain.Receipt{}, err
	}

	price := rcpt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(rcpt.GasUsed), price)

	r := chain.Receipt{
		Hash:          strings.ToLower(tx.Hash().Hex()),
		SenderAddress: strings.ToLower(from.Hex()),
		AmountPaid:    decimal.NewFromBigInt(tx.Value(), -18),
		Success:       rcpt.Status == types.ReceiptStatusSuccessful,
		Timestamp:     blockTime(block),
		Gas:           rcpt.GasUsed,
		GasFee:        fee.String(),
	}
	if to := tx.To(); to != nil {
		r.To = strings.ToLower(to.Hex())
	}
	if !r.Success {
		r.Error = "execution reverted"
	}

	// token payments go to the token contract; the paid contract is the transfer recipient.
	// Token decimals are not known here, the amount stays in base units.
	if recipient, amount, ok := decodeTransfer(tx.Data()); ok {
		token := r.To
		r.TokenAddress = &token
		r.To = strings.ToLower(recipient.Hex())
		r.AmountPaid = decimal.NewFromBigInt(amount, 0)
	}
	return r, nil
}

func blockTime(b *types.Block) time.Time {
	return time.Unix(int64(b.Time()), 0).UTC()
}
