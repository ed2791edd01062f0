package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amianGO/Store-Application/platform/go/persistence"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (company directory, template schema)",
		Long:  "Apply the base DDL: the public company directory table and the template schema cloned into every tenant.",
	}

	cmd.AddCommand(databaseCommand())
	return cmd
}

func databaseCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "database",
		Short: "Apply the directory and template schema DDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.Bootstrap(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap database: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database bootstrap complete.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")
	return c
}
