package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/qidlink/pkg/db"
)

// NewDbCommand creates the db command group for the triple store.
func NewDbCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Triple store database commands",
		Long: `Manage the PostgreSQL triple store used by 'qidlink triples load'.

The connection comes from store in config.yaml, QIDLINK_DB_URL, or the
QIDLINK_DB_HOST/PORT/NAME/USER/PASSWORD variables. Schema migrations are
embedded in the binary and tracked in the schema_migrations table.

Examples:
  qidlink db status
  qidlink db migrate --dry-run
  qidlink db migrate --yes
  qidlink db health`,
		Aliases: []string{"database"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))
	cmd.AddCommand(newDbHealthCommand(deps))
	return cmd
}

func newDbMigrateCommand(deps *Deps) *cobra.Command {
	var dryRun, yes bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations.

Each migration runs in its own transaction; the run stops at the first
failure and reports what was applied before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps, cmd.OutOrStdout(), cmd.InOrStdin(), dryRun, yes)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runDbMigrate(ctx context.Context, deps *Deps, w io.Writer, in io.Reader, dryRun, yes bool) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(w, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(w, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(w)

	if dryRun {
		fmt.Fprintln(w, "Dry run mode: no migrations applied.")
		return nil
	}
	if !yes {
		fmt.Fprint(w, "Apply these migrations? (y/N): ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Migration cancelled.")
			return nil
		}
	}

	result, err := db.RunMigrations(ctx, pool, db.Migrations())
	if err != nil {
		fmt.Fprintf(w, "\n\033[31mMigration failed:\033[0m %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(w, "\nSuccessfully applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintf(w, "\033[32mSuccessfully applied %d migration(s):\033[0m\n", len(result.Applied))
	for _, v := range result.Applied {
		fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", v)
	}
	return nil
}

func newDbStatusCommand(deps *Deps) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show schema migration status",
		Long: `Show applied and pending migrations, plus drift: migrations recorded
as applied that this binary no longer ships.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			pool, err := deps.ConnectToDB(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			status, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
			if err != nil {
				return fmt.Errorf("getting migration status: %w", err)
			}

			w := cmd.OutOrStdout()
			if ok, err := WriteStructured(w, formatFor(cfg, format), status); ok {
				return err
			}
			printMigrationStatus(w, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return cmd
}

func printMigrationStatus(w io.Writer, status *db.MigrationStatus) {
	printEntries := func(title, color string, entries []db.MigrationStatusEntry, withTime bool) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(w, "%s%s (%d):\033[0m\n", color, title, len(entries))
		for _, m := range entries {
			applied := ""
			if withTime && m.AppliedAt != nil {
				applied = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "  %-10s %-40s %s\n", truncate(m.Version, 10), truncate(m.Name, 40), applied)
		}
		fmt.Fprintln(w)
	}

	printEntries("Applied Migrations", "\033[32m", status.Applied, true)
	printEntries("Pending Migrations", "\033[33m", status.Pending, false)
	printEntries("Drift - applied but not shipped", "\033[31m", status.Drift, true)

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return
	}
	fmt.Fprintf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(w, ", \033[31m%d drift\033[0m", len(status.Drift))
	}
	fmt.Fprintln(w)
}

func newDbHealthCommand(deps *Deps) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check triple store connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			pool, err := deps.ConnectToDB(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			status := db.Check(ctx, pool)
			w := cmd.OutOrStdout()
			if ok, err := WriteStructured(w, formatFor(cfg, format), status); ok {
				return err
			}
			if !status.Healthy {
				fmt.Fprintf(w, "\033[31mUnhealthy:\033[0m %s\n", status.Error)
				return fmt.Errorf("triple store unhealthy")
			}
			fmt.Fprintf(w, "\033[32mHealthy\033[0m (%s)\n", status.Latency)
			fmt.Fprintf(w, "  Connections: %d total, %d idle, %d in use\n", status.TotalConns, status.IdleConns, status.AcquiredConns)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return cmd
}
