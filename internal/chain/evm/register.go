package evm

import (
	"marketplace-core/internal/chain"
	"marketplace-core/pkg/config"
	"marketplace-core/pkg/logger"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// RegisterChains dials every configured node and binds its clients into registry.
// A chain whose node cannot be dialled is left out, reconciling it then fails with a
// missing client error. The returned func closes the connections.
func RegisterChains(registry *chain.Registry, chains []config.ChainConfig, watched AddressSource) func() {
	var clients []*ethclient.Client
	for _, c := range chains {
		rpc, err := Dial(c.RpcUrl)
		if err != nil {
			logger.Error("RPC 连接失败", zap.Int64("chain_id", c.ChainID), zap.String("name", c.Name), zap.Error(err))
			continue
		}
		clients = append(clients, rpc)
		registry.Register(c.ChainID, NewClient(rpc, c.BlockScanLimit, watched), NewContractClient(rpc), chain.EVMHashFormat)
		logger.Info("chain registered", zap.Int64("chain_id", c.ChainID), zap.String("name", c.Name))
	}
	return func() {
		for _, rpc := range clients {
			rpc.Close()
		}
	}
}
