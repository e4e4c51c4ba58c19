package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/gendercode/config"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
)

// configSetters maps each settable key to a function applying a value.
var configSetters = map[string]func(*config.Config, string) error{
	"output_format": func(c *config.Config, v string) error {
		c.OutputFormat = config.OutputFormat(v)
		return nil
	},
	"debug":     boolSetter(func(c *config.Config) *bool { return &c.Debug }),
	"log.level": stringSetter(func(c *config.Config) *string { return &c.Log.Level }),
	"log.json":  boolSetter(func(c *config.Config) *bool { return &c.Log.JSON }),
	"dispatcher.workers": func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		c.Dispatcher.Workers = n
		return nil
	},
	"dispatcher.poll_interval": durationSetter(func(c *config.Config) *time.Duration { return &c.Dispatcher.PollInterval }),
	"dictionary.source": func(c *config.Config, v string) error {
		c.Dictionary.Source = config.SourceKind(strings.ToLower(v))
		return nil
	},
	"dictionary.path":             stringSetter(func(c *config.Config) *string { return &c.Dictionary.Path }),
	"dictionary.refresh_interval": durationSetter(func(c *config.Config) *time.Duration { return &c.Dictionary.RefreshInterval }),
	"database.host":               stringSetter(func(c *config.Config) *string { return &c.Database.Host }),
	"database.port": func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		c.Database.Port = n
		return nil
	},
	"database.name":    stringSetter(func(c *config.Config) *string { return &c.Database.Database }),
	"database.user":    stringSetter(func(c *config.Config) *string { return &c.Database.User }),
	"database.sslmode": stringSetter(func(c *config.Config) *string { return &c.Database.SSLMode }),
	"database.connect_attempts": func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid attempt count %q", v)
		}
		c.Database.ConnectAttempts = n
		return nil
	},
	"database.retry_delay":   durationSetter(func(c *config.Config) *time.Duration { return &c.Database.RetryDelay }),
	"database.ready_timeout": durationSetter(func(c *config.Config) *time.Duration { return &c.Database.ReadyTimeout }),
	"redis.enabled":          boolSetter(func(c *config.Config) *bool { return &c.Redis.Enabled }),
	"redis.addr":             stringSetter(func(c *config.Config) *string { return &c.Redis.Addr }),
	"redis.ttl":              durationSetter(func(c *config.Config) *time.Duration { return &c.Redis.TTL }),
	"metrics.textfile":       stringSetter(func(c *config.Config) *string { return &c.Metrics.Textfile }),
	"serve.addr":             stringSetter(func(c *config.Config) *string { return &c.Serve.Addr }),
}

func stringSetter(field func(*config.Config) *string) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		*field(c) = v
		return nil
	}
}

func boolSetter(field func(*config.Config) *bool) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q (must be true or false)", v)
		}
		*field(c) = b
		return nil
	}
}

func durationSetter(field func(*config.Config) *time.Duration) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q (e.g. 500ms, 5m)", v)
		}
		*field(c) = d
		return nil
	}
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewConfigCommand creates the config command with all subcommands.
func NewConfigCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gendercode configuration",
		Long:  `View and modify the gendercode configuration file.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the effective configuration: defaults, the config file, environment overrides and flags. Passwords are never shown.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(deps, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a new configuration file with default values if one doesn't exist.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(deps, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: fmt.Sprintf(`Set a configuration value in the config file.

Available keys:
  %s

Examples:
  gendercode config set dictionary.source postgres
  gendercode config set dispatcher.workers 8
  gendercode config set redis.ttl 30m`, strings.Join(configKeys(), "\n  ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(deps, cmd.OutOrStdout(), args[0], args[1])
		},
	})

	return cmd
}

func runConfigShow(deps *Deps, out io.Writer) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	path, _ := deps.ConfigPath()

	if cfg.OutputFormat == config.OutputFormatJSON || cfg.OutputFormat == config.OutputFormatYAML {
		doc, err := configDocument(cfg)
		if err != nil {
			return err
		}
		_, err = writeStructured(out, cfg.OutputFormat, doc)
		return err
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Config file:       %s\n", path)
	fmt.Fprintf(out, "  Output format:     %s\n", cfg.OutputFormat)
	fmt.Fprintf(out, "  Log level:         %s\n", cfg.Log.Level)
	fmt.Fprintf(out, "  Debug:             %t\n", cfg.Debug)
	fmt.Fprintf(out, "  Workers:           %d\n", cfg.Dispatcher.Workers)
	fmt.Fprintf(out, "  Poll interval:     %s\n", cfg.Dispatcher.PollInterval)
	fmt.Fprintf(out, "  Dictionary source: %s\n", cfg.Dictionary.Source)
	if cfg.Dictionary.Source == config.SourcePostgres {
		fmt.Fprintf(out, "  Database:          %s@%s:%d/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	} else {
		fmt.Fprintf(out, "  Dictionary path:   %s\n", cfg.Dictionary.Path)
	}
	if cfg.Redis.Enabled {
		fmt.Fprintf(out, "  Redis cache:       %s (db %d, ttl %s)\n", cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL)
	} else {
		fmt.Fprintln(out, "  Redis cache:       disabled")
	}
	fmt.Fprintf(out, "  Serve address:     %s\n", cfg.Serve.Addr)
	return nil
}

// configDocument converts cfg to a generic map keyed by the config file
// names. Passwords carry yaml:"-" and never appear.
func configDocument(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	return doc, nil
}

func runConfigInit(deps *Deps, out io.Writer) error {
	path, err := deps.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Configuration file already exists: %s\n", path)
		fmt.Fprintln(out, "Use 'gendercode config show' to view current settings.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", path)
	fmt.Fprintf(out, "  Dictionary: %s at %s\n", cfg.Dictionary.Source, cfg.Dictionary.Path)
	fmt.Fprintf(out, "  Workers:    %d\n", cfg.Dispatcher.Workers)
	return nil
}

func runConfigSet(deps *Deps, out io.Writer, key, value string) error {
	set, ok := configSetters[key]
	if !ok {
		return fmt.Errorf("%w: unknown configuration key %q", gcerrors.ErrValidation, key)
	}

	path, err := deps.ConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.ReadConfigFile(path)
	if err != nil {
		return err
	}

	if err := set(cfg, value); err != nil {
		return fmt.Errorf("%w: %s: %v", gcerrors.ErrValidation, key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}
