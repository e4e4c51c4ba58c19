// Package main provides the gendercode CLI entry point.
// gendercode assigns a gender code to first names using a tiered name dictionary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/gendercode/cmd"
	"github.com/otherjamesbrown/gendercode/pkg/buildinfo"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
)

// Global flags.
var opts cmd.GlobalOptions

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gendercode",
	Short: "Assign gender codes to first names",
	Long: `gendercode assigns a gender code to first names using a dictionary of four
tables: us, wildcard, foreign and all.

Codes:
  M, F     male, female
  ?M, ?F   mostly male, mostly female
  ?        ambiguous
  I        initial only
  U        unknown

Names are looked up in the us table, then matched against wildcard compound
names, then the foreign table. Large inputs are classified by a pool of
workers.

COMMON WORKFLOWS:
  Load a dictionary:  gendercode dict import names.yaml
  Classify names:     gendercode classify Mary "J. Edgar"
  Classify a file:    gendercode batch -i people.csv --out coded.csv -o csv
  Serve over HTTP:    gendercode serve --addr :8080

Every command supports --output json for structured data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the gendercode binary.

Examples:
  gendercode version
  gendercode version --output-json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := buildinfo.Get(buildinfo.ServiceName)

		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "gendercode version %s\n", info.Version)
		fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
		fmt.Fprintf(out, "  Platform:   %s\n", info.Platform)
		for _, source := range []string{"postgres", "sqlite", "redis"} {
			if v, ok := info.Drivers[source]; ok {
				fmt.Fprintf(out, "  %-11s %s\n", source+":", v)
			}
		}
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for gendercode.

To load completions:

Bash:
  $ source <(gendercode completion bash)

Zsh:
  $ gendercode completion zsh > "${fpath[1]}/_gendercode"

Fish:
  $ gendercode completion fish | source

PowerShell:
  PS> gendercode completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is ~/.gendercode/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "", "output format: text, json, yaml, csv")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&opts.Workers, "workers", 0, "number of classification workers (default from dispatcher.workers)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "coding", Title: "Classification:"},
		&cobra.Group{ID: "dictionary", Title: "Dictionary:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	deps := cmd.DefaultDeps(&opts)

	// Classification
	classifyCmd := cmd.NewClassifyCommand(deps)
	classifyCmd.GroupID = "coding"
	rootCmd.AddCommand(classifyCmd)

	batchCmd := cmd.NewBatchCommand(deps)
	batchCmd.GroupID = "coding"
	rootCmd.AddCommand(batchCmd)

	serveCmd := cmd.NewServeCommand(deps)
	serveCmd.GroupID = "coding"
	rootCmd.AddCommand(serveCmd)

	// Dictionary
	dictCmd := cmd.NewDictCommand(deps)
	dictCmd.GroupID = "dictionary"
	rootCmd.AddCommand(dictCmd)

	dbCmd := cmd.NewDbCommand(deps)
	dbCmd.GroupID = "dictionary"
	rootCmd.AddCommand(dbCmd)

	// Setup
	configCmd := cmd.NewConfigCommand(deps)
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	credentialsCmd := cmd.NewCredentialsCommand(deps)
	credentialsCmd.GroupID = "setup"
	rootCmd.AddCommand(credentialsCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Hint: %s\n", gcerrors.GetSuggestedAction(gcerrors.CodeOf(err)))
		os.Exit(1)
	}
}
