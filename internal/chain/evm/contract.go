package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"marketplace-core/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SellerMarketplaceCreated(address indexed seller, address marketplace)
var sellerMarketplaceCreatedTopic = crypto.Keccak256Hash([]byte("SellerMarketplaceCreated(address,address)"))

// ContractBackend is the part of ethclient.Client the contract resolver needs
type ContractBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// ContractClient resolves seller marketplace contracts from receipts
type ContractClient struct {
	backend ContractBackend
}

func NewContractClient(backend ContractBackend) *ContractClient {
	return &ContractClient{backend: backend}
}

// GetSellerMarketplaceAddress prefers the factory event, then a deployed contract,
// then the contract the transaction was sent to. "" when none applies.
func (c *ContractClient) GetSellerMarketplaceAddress(ctx context.Context, network chain.Network, receipt chain.Receipt) (string, error) {
	rcpt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(receipt.Hash))
	if err != nil {
		return "", fmt.Errorf("fetch receipt %s on %s: %w", receipt.Hash, network.Name, err)
	}

	if addr, ok := createdAddress(rcpt.Logs); ok {
		return strings.ToLower(addr.Hex()), nil
	}
	if rcpt.ContractAddress != (common.Address{}) {
		return strings.ToLower(rcpt.ContractAddress.Hex()), nil
	}

	if receipt.To == "" {
		return "", nil
	}
	to := common.HexToAddress(receipt.To)
	code, err := c.backend.CodeAt(ctx, to, nil)
	if err != nil {
		return "", fmt.Errorf("fetch code of %s on %s: %w", receipt.To, network.Name, err)
	}
	if len(code) == 0 {
		return "", nil
	}
	return strings.ToLower(to.Hex()), nil
}

func createdAddress(logs []*types.Log) (common.Address, bool) {
	for _, l := range logs {
		if len(l.Topics) == 0 || l.Topics[0] != sellerMarketplaceCreatedTopic {
			continue
		}
		if len(l.Topics) >= 3 {
			return common.BytesToAddress(l.Topics[2].Bytes()), true
		}
		if len(l.Data) >= 32 {
			return common.BytesToAddress(l.Data[:32]), true
		}
	}
	return common.Address{}, false
}
