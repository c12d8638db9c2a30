package cmd

import (
	"fmt"

	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查询聚合的派生状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, _ := cmd.Flags().GetString("kind")
		idFlag, _ := cmd.Flags().GetString("id")
		ownerFlag, _ := cmd.Flags().GetString("owner")

		kind, err := model.ParseKind(kindFlag)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(idFlag)
		if err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		owner, err := uuid.Parse(ownerFlag)
		if err != nil {
			return fmt.Errorf("invalid --owner: %w", err)
		}

		db, err := store()
		if err != nil {
			return err
		}
		view, err := service.NewTransactionService(repo.NewAggregateRepo(db)).StatusOf(cmd.Context(), kind, owner, id)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("kind", "", "marketplace, order or payout")
	statusCmd.Flags().String("id", "", "aggregate id")
	statusCmd.Flags().String("owner", "", "seller id (marketplace, payout) or buyer id (order)")
	_ = statusCmd.MarkFlagRequired("kind")
	_ = statusCmd.MarkFlagRequired("id")
	_ = statusCmd.MarkFlagRequired("owner")
}
