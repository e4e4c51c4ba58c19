package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/gendercode/credentials"
)

// NewCredentialsCommand creates the credentials command with all subcommands.
func NewCredentialsCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage database and Redis passwords",
		Long: fmt.Sprintf(`Store the passwords for the dictionary backends in the %s.

Known secrets:
  %s   PostgreSQL password (overridden by %s)
  %s      Redis password (overridden by %s)

Passwords are never written to the config file.

Examples:
  gendercode credentials set database-password
  echo "$PW" | gendercode credentials set redis-password
  gendercode credentials show
  gendercode credentials delete database-password`,
			credentials.Description(),
			credentials.DatabasePassword, credentials.EnvVar(credentials.DatabasePassword),
			credentials.RedisPassword, credentials.EnvVar(credentials.RedisPassword)),
		Aliases: []string{"creds"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set NAME",
		Short:     "Store a secret",
		Long:      `Prompt for a secret without echoing it and store it in the system keyring. When stdin is not a terminal the first line of stdin is used.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialsSet(deps, cmd.OutOrStdout(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show which secrets are set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialsShow(deps, cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "delete NAME",
		Short:     "Remove a stored secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Secrets.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func runCredentialsSet(deps *Deps, out io.Writer, name string) error {
	fmt.Fprintf(out, "%s: ", name)
	value, err := readSecret(deps.Stdin)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if value == "" {
		return errors.New("no value provided")
	}

	if err := deps.Secrets.Set(name, value); err != nil {
		return err
	}
	fmt.Fprintf(out, "Stored %s in %s\n", name, credentials.Description())
	return nil
}

// readSecret reads a secret without echo from a terminal, or one line otherwise.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runCredentialsShow(deps *Deps, out io.Writer) error {
	rows := make([][]string, 0, len(credentials.Names()))
	for _, name := range credentials.Names() {
		env := credentials.EnvVar(name)
		source, value := "not set", ""

		if v := os.Getenv(env); v != "" {
			source, value = "env "+env, v
		} else {
			v, err := deps.Secrets.Get(name)
			switch {
			case err == nil:
				source, value = "keyring", v
			case errors.Is(err, credentials.ErrKeyringUnavailable):
				source = "keyring unavailable"
			}
		}
		rows = append(rows, []string{name, source, credentials.MaskCredential(value)})
	}

	_, err := fmt.Fprintln(out, renderTable([]string{"Secret", "Source", "Value"}, rows, nil))
	return err
}
