package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/gendercode/pkg/db"
)

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "PostgreSQL dictionary schema commands",
		Long: `Manage the schema of the PostgreSQL dictionary database.

The migrations that create the gender_coding_names table are built into the
binary and applied in order. Applied versions are tracked in the
schema_migrations table.

Connection settings come from the database section of the config file or
the GENDERCODE_DB_* environment variables. The password is read from
GENDERCODE_DB_PASSWORD or the system keyring (see 'gendercode credentials').

Examples:
  # Show migration status
  gendercode db status

  # Preview pending migrations
  gendercode db migrate --dry-run

  # Apply all pending migrations
  gendercode db migrate`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *Deps) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Each migration runs in its own transaction. If one fails it is rolled back
and no further migrations are attempted.`,
		Example: `  gendercode db migrate
  gendercode db migrate --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps, cmd.OutOrStdout(), dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be applied without executing")

	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Displays three categories of migrations:
  - Applied: migrations that have been applied and are built in
  - Pending: built-in migrations that have not been applied yet
  - Drift: migrations that were applied but are not built into this binary`,
		Example: `  gendercode db status
  gendercode db status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd.Context(), deps, cmd.OutOrStdout())
		},
	}
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, deps *Deps, out io.Writer, dryRun bool) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := deps.ConnectDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(out, "  %s - %s\n", m.Version, m.Name)
	}

	if dryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}

	result, err := db.RunMigrations(ctx, pool, db.Migrations())
	if err != nil {
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(out, "Applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(out, "  ✓ %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintf(out, "Applied %d migration(s):\n", len(result.Applied))
	for _, v := range result.Applied {
		fmt.Fprintf(out, "  ✓ %s\n", v)
	}
	return nil
}

// runDbStatus executes the db status command.
func runDbStatus(ctx context.Context, deps *Deps, out io.Writer) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := deps.ConnectDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if ok, err := writeStructured(out, cfg.OutputFormat, status); ok {
		return err
	}
	return writeMigrationStatus(out, status)
}

// writeMigrationStatus renders migration status as a table.
func writeMigrationStatus(out io.Writer, status *db.MigrationStatus) error {
	var rows [][]string
	add := func(state string, entries []db.MigrationStatusEntry) {
		for _, m := range entries {
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{m.Version, m.Name, state, appliedAt})
		}
	}
	add("applied", status.Applied)
	add("pending", status.Pending)
	add("drift", status.Drift)

	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No migrations found.")
		return err
	}
	_, err := fmt.Fprintln(out, renderTable([]string{"Version", "Name", "State", "Applied"}, rows, nil))
	return err
}
