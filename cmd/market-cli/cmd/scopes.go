package cmd

import (
	"fmt"

	"marketplace-core/internal/repo"

	"github.com/spf13/cobra"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "列出所有区块链市场 (对账范围)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store()
		if err != nil {
			return err
		}
		scopes, err := repo.NewScopeRepo(db).ListScopes(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range scopes {
			fmt.Printf("%s  %-12s chain=%-8d %s\n", s.ID, s.Network.Name, s.Network.ChainID, s.Address)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scopesCmd)
}
