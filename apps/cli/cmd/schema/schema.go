package schemacmd

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/persistence"
	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// Command groups tenant schema management helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage tenant schemas (provision, drop, list)",
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	_ = cmd.MarkPersistentFlagRequired("database-url")

	cmd.AddCommand(provisionCommand())
	cmd.AddCommand(dropCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func provisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <schema>",
		Short: "Create a tenant schema and clone the template tables into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := tenant.Parse(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			provisioner, cleanup, err := newProvisioner(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := provisioner.Provision(ctx, id)
			if err != nil {
				return fmt.Errorf("provision %s: %w", id.String(), err)
			}

			out := cmd.OutOrStdout()
			if report.Complete() {
				fmt.Fprintf(out, "Schema %s provisioned (%d tables).\n", id.String(), len(report.Cloned))
				return nil
			}

			fmt.Fprintf(out, "Schema %s provisioned with failures:\n", id.String())
			failed := make([]string, 0, len(report.Failed))
			for table := range report.Failed {
				failed = append(failed, table)
			}
			sort.Strings(failed)
			for _, table := range failed {
				fmt.Fprintf(out, "  %s: %v\n", table, report.Failed[table])
			}
			return fmt.Errorf("%d of %d tables failed", len(report.Failed), len(report.Failed)+len(report.Cloned))
		},
	}
}

func dropCommand() *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "drop <schema>",
		Short: "Drop a tenant schema and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := tenant.Parse(args[0])
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("dropping %s deletes all tenant data; re-run with --force", id.String())
			}

			ctx := context.Background()
			provisioner, cleanup, err := newProvisioner(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := provisioner.Drop(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema %s dropped.\n", id.String())
			return nil
		},
	}

	c.Flags().BoolVar(&force, "force", false, "Confirm destructive drop")
	return c
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned tenant schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			provisioner, cleanup, err := newProvisioner(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			schemas, err := provisioner.ListTenantSchemas(ctx)
			if err != nil {
				return err
			}
			if len(schemas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tenant schemas found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCHEMA")
			for _, name := range schemas {
				fmt.Fprintln(tw, name)
			}
			return tw.Flush()
		},
	}
}

func newProvisioner(ctx context.Context, cmd *cobra.Command) (*persistence.Provisioner, func(), error) {
	databaseURL, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return nil, nil, err
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	cleanup := func() { persistence.ClosePool(pool) }
	return persistence.NewProvisioner(pool, zap.NewNop()), cleanup, nil
}
