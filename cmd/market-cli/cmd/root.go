package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/chain/evm"
	"marketplace-core/internal/repo"
	"marketplace-core/pkg/cache"
	"marketplace-core/pkg/config"
	"marketplace-core/pkg/database"
	"marketplace-core/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "market-cli",
	Short: "市场交易生命周期运维工具",
	Long: `Operator tooling for the marketplace transaction lifecycle.
Runs reconciliation passes in process, inspects aggregate status and tails lifecycle events.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.Init(config.Global.App.Env)
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// store opens the configured database
func store() (*gorm.DB, error) {
	return database.Open(config.Global.DB, false)
}

// chains dials the configured nodes; the returned func closes them
func chains(aggregates *repo.AggregateRepo) (*chain.Registry, func()) {
	registry := chain.NewRegistry()
	watched := evm.CachedAddressSource(cache.NewMemoryCache(time.Minute, time.Minute), config.Global.Reconcile.WatchCacheTTL,
		func(ctx context.Context, network chain.Network) ([]string, error) {
			return aggregates.ListContractAddresses(ctx, network.ScopeID)
		})
	closeFn := evm.RegisterChains(registry, config.Global.Chains, watched)
	return registry, closeFn
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
