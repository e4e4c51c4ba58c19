package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}
	var explain bool

	cmd := &cobra.Command{
		Use:   "classify NAME...",
		Short: "Classify first names by gender",
		Long: `Classify one or more first names against the configured dictionary.

Each name is normalized before lookup: initials such as "J." are removed and
spaces or hyphens inside compound names become the wildcard token "+".
Compound names are looked up in the wildcard table, all others in the US
table, with the foreign table as the fallback for both. Names that match
nothing are reported as unknown.

Use --explain to show the normalized key and the table that matched.

Examples:
  gendercode classify John Mary
  gendercode classify "Jean-Luc" "J. Edgar" -o json
  gendercode classify Kim --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), deps, cmd.OutOrStdout(), args, explain)
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "Show the normalized key and matching table")

	return cmd
}

func runClassify(ctx context.Context, deps *Deps, out io.Writer, firstNames []string, explain bool) error {
	s, err := openSession(ctx, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	if explain {
		matches := make([]names.Match, len(firstNames))
		for i, name := range firstNames {
			matches[i] = s.dict.Explain(name)
		}
		return writeMatches(out, s.cfg.OutputFormat, matches)
	}

	results, err := s.processor.ClassifyBatch(ctx, firstNames)
	if err != nil {
		return fmt.Errorf("classifying names: %w", err)
	}
	return writeResults(out, s.cfg.OutputFormat, results)
}

func writeMatches(out io.Writer, format config.OutputFormat, matches []names.Match) error {
	if ok, err := writeStructured(out, format, matches); ok {
		return err
	}

	rows := make([][]string, len(matches))
	for i, m := range matches {
		tier := m.TierName
		if !m.Matched {
			tier = "-"
		}
		rows[i] = []string{m.Input, m.Key, tier, m.Gender.String()}
	}
	_, err := fmt.Fprintln(out, renderTable([]string{"Input", "Key", "Table", "Gender"}, rows, nil))
	return err
}
