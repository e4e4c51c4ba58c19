package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/db"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
	"github.com/otherjamesbrown/gendercode/pkg/names/store"
)

// NewDictCommand creates the dict command with all subcommands.
func NewDictCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}

	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Inspect and manage the name dictionary",
		Long: `Inspect and manage the name dictionary.

The dictionary is four tables of first names with a gender code each:
  all       every known name, kept for reporting only
  us        names looked up directly
  foreign   fallback for names not found in us or wildcard
  wildcard  compound names such as "mary+jane"

The tables are read from the source configured under dictionary.source
(file, sqlite or postgres), optionally through the Redis cache.

Examples:
  gendercode dict stats
  gendercode dict lookup "J. Edgar" Mary-Jane
  gendercode dict import names.yaml
  gendercode dict export backup.toml`,
		Aliases: []string{"dictionary"},
	}

	cmd.AddCommand(newDictStatsCommand(deps))
	cmd.AddCommand(newDictLookupCommand(deps))
	cmd.AddCommand(newDictImportCommand(deps))
	cmd.AddCommand(newDictExportCommand(deps))

	return cmd
}

func newDictStatsCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table sizes",
		Long: `Show how many entries each table holds and how they were indexed.

Duplicates are later entries whose key was already indexed (the first one
wins). Rejected entries are empty patterns and wildcard entries without the
"+" token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDictStats(cmd.Context(), deps, cmd.OutOrStdout())
		},
	}
}

func newDictLookupCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:     "lookup NAME...",
		Short:   "Explain how names are classified",
		Long:    `Show the normalized key, the table that matched and the resulting gender for each name.`,
		Aliases: []string{"explain"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), deps, cmd.OutOrStdout(), args, true)
		},
	}
}

func newDictImportCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the dictionary with the contents of a file",
		Long: `Replace every table of the configured dictionary source with the tables
in FILE. The format follows the extension: .yaml, .yml, .toml or .json.

  us:
    - {pattern: john, gender: M}
    - {pattern: kim, gender: "?F"}
  wildcard:
    - {pattern: mary+jane, gender: F}

For postgres sources pending migrations are applied first. Cached tables in
Redis are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDictImport(cmd.Context(), deps, cmd.OutOrStdout(), args[0])
		},
	}
}

func newDictExportCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the dictionary to a file",
		Long:  `Write every table of the configured dictionary source to FILE (.yaml, .yml, .toml or .json).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDictExport(cmd.Context(), deps, cmd.OutOrStdout(), args[0])
		},
	}
}

func runDictStats(ctx context.Context, deps *Deps, out io.Writer) error {
	s, err := openSession(ctx, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	stats := s.dict.Stats()
	if ok, err := writeStructured(out, s.cfg.OutputFormat, stats); ok {
		return err
	}

	rows := make([][]string, len(stats))
	for i, st := range stats {
		rows[i] = []string{
			st.Tier.String(),
			strconv.Itoa(st.Entries),
			strconv.Itoa(st.Indexed),
			strconv.Itoa(st.Duplicates),
			strconv.Itoa(st.Rejected),
		}
	}
	fmt.Fprintf(out, "Source: %s\n", s.backend.Source.Name())
	_, err = fmt.Fprintln(out, renderTable(
		[]string{"Table", "Entries", "Indexed", "Duplicates", "Rejected"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return err
}

// openWriteBackend loads the config and opens the configured source for writing.
func openWriteBackend(ctx context.Context, deps *Deps) (*config.Config, logging.Logger, *Backend, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.NewLogger(cfg)

	backend, err := deps.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening dictionary: %w", err)
	}
	return cfg, logger, backend, nil
}

func runDictImport(ctx context.Context, deps *Deps, out io.Writer, path string) error {
	file, err := store.NewFileSource(path)
	if err != nil {
		return err
	}

	_, logger, backend, err := openWriteBackend(ctx, deps)
	if err != nil {
		return err
	}
	defer backend.Close()

	if backend.Pool != nil {
		result, err := db.RunMigrations(ctx, backend.Pool, db.Migrations())
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		if len(result.Applied) > 0 {
			logger.Info("Applied migrations", logging.F("versions", result.Applied))
		}
	}

	dst, err := backend.Writer()
	if err != nil {
		return err
	}

	tables, err := store.Import(ctx, file, dst)
	if err != nil {
		return err
	}

	if backend.Cache != nil {
		if err := backend.Cache.Invalidate(ctx); err != nil {
			logger.Warn("Cached tables may be stale", logging.Err(err))
		}
	}

	logger.Info("Dictionary imported",
		logging.F("from", file.Name()),
		logging.F("to", backend.Source.Name()),
		logging.F("entries", tables.Len()))
	fmt.Fprintf(out, "Imported %d entries from %s into %s\n", tables.Len(), path, backend.Source.Name())
	return writeTableCounts(out, tables)
}

func runDictExport(ctx context.Context, deps *Deps, out io.Writer, path string) error {
	if _, err := store.FormatFromPath(path); err != nil {
		return err
	}

	_, _, backend, err := openWriteBackend(ctx, deps)
	if err != nil {
		return err
	}
	defer backend.Close()

	tables, err := store.LoadTables(ctx, backend.Source)
	if err != nil {
		return err
	}
	if err := store.WriteFile(path, tables); err != nil {
		return err
	}

	fmt.Fprintf(out, "Exported %d entries from %s to %s\n", tables.Len(), backend.Source.Name(), path)
	return writeTableCounts(out, tables)
}

func writeTableCounts(out io.Writer, tables names.Tables) error {
	rows := make([][]string, 0, len(names.Tiers))
	for _, tier := range names.Tiers {
		rows = append(rows, []string{tier.String(), strconv.Itoa(len(tables.Get(tier)))})
	}
	_, err := fmt.Fprintln(out, renderTable([]string{"Table", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
	return err
}
