package cmd

import (
	"errors"
	"fmt"

	"marketplace-core/internal/repo"
	"marketplace-core/internal/service"
	"marketplace-core/pkg/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "同步执行一次对账",
	Long:  `Runs one reconciliation pass in this process, for one scope (--scope) or every scope (--all), and prints the reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scopeFlag, _ := cmd.Flags().GetString("scope")
		all, _ := cmd.Flags().GetBool("all")
		if (scopeFlag == "") == !all {
			return errors.New("exactly one of --scope or --all is required")
		}

		db, err := store()
		if err != nil {
			return err
		}
		aggregates := repo.NewAggregateRepo(db)
		scopes := repo.NewScopeRepo(db)
		registry, closeChains := chains(aggregates)
		defer closeChains()

		engine := service.NewReconcileService(aggregates, scopes, registry, config.Global.Reconcile.Lookback)

		var ids []uuid.UUID
		if all {
			list, err := scopes.ListScopes(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range list {
				ids = append(ids, s.ID)
			}
		} else {
			id, err := uuid.Parse(scopeFlag)
			if err != nil {
				return fmt.Errorf("invalid --scope: %w", err)
			}
			ids = append(ids, id)
		}

		var failed error
		for _, id := range ids {
			report, err := engine.Reconcile(cmd.Context(), id)
			if report != nil {
				if perr := printJSON(report); perr != nil {
					return perr
				}
			}
			if err != nil {
				fmt.Printf("scope %s: %v\n", id, err)
				failed = errors.Join(failed, err)
			}
		}
		return failed
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().String("scope", "", "blockchain marketplace id")
	reconcileCmd.Flags().Bool("all", false, "reconcile every scope")
}
