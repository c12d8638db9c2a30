package chain

import (
	"fmt"
	"regexp"

	"marketplace-core/pkg/errno"
)

// HashFormat reports whether a stored hash has the exact shape of a hash on the chain
type HashFormat func(hash string) bool

var evmHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// EVMHashFormat accepts 0x followed by 64 lower-case hex digits
func EVMHashFormat(hash string) bool {
	return evmHashPattern.MatchString(hash)
}

// Registry routes a chain id to its clients. It is filled once at startup and
// only read afterwards.
type Registry struct {
	blockchain map[int64]BlockchainClient
	contracts  map[int64]MarketplaceContractClient
	formats    map[int64]HashFormat
}

func NewRegistry() *Registry {
	return &Registry{
		blockchain: make(map[int64]BlockchainClient),
		contracts:  make(map[int64]MarketplaceContractClient),
		formats:    make(map[int64]HashFormat),
	}
}

// Register binds both clients of one chain. A nil format falls back to EVMHashFormat.
func (r *Registry) Register(chainID int64, bc BlockchainClient, cc MarketplaceContractClient, format HashFormat) {
	if bc != nil {
		r.blockchain[chainID] = bc
	}
	if cc != nil {
		r.contracts[chainID] = cc
	}
	if format != nil {
		r.formats[chainID] = format
	}
}

func (r *Registry) BlockchainClient(chainID int64) (BlockchainClient, error) {
	c, ok := r.blockchain[chainID]
	if !ok {
		return nil, errno.ErrBlockchainClientNotFound.WithMessage(fmt.Sprintf("no blockchain client for chain id %d", chainID))
	}
	return c, nil
}

func (r *Registry) ContractClient(chainID int64) (MarketplaceContractClient, error) {
	c, ok := r.contracts[chainID]
	if !ok {
		return nil, errno.ErrContractClientNotFound.WithMessage(fmt.Sprintf("no marketplace contract client for chain id %d", chainID))
	}
	return c, nil
}

func (r *Registry) HashFormat(chainID int64) HashFormat {
	if f, ok := r.formats[chainID]; ok {
		return f
	}
	return EVMHashFormat
}

// ChainIDs lists the registered chains
func (r *Registry) ChainIDs() []int64 {
	ids := make([]int64, 0, len(r.blockchain))
	for id := range r.blockchain {
		ids = append(ids, id)
	}
	return ids
}
