// Package cmd provides CLI commands for the gendercode tool.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/credentials"
	"github.com/otherjamesbrown/gendercode/pkg/coding"
	"github.com/otherjamesbrown/gendercode/pkg/db"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
	"github.com/otherjamesbrown/gendercode/pkg/names/store"
)

// GlobalOptions holds the values of the root command's persistent flags.
type GlobalOptions struct {
	ConfigFile string
	Output     string
	Debug      bool
	Workers    int
}

// SecretStore reads and writes the secrets used to reach the dictionary backends.
type SecretStore interface {
	Set(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
	Resolve(name string) string
}

// Deps holds the dependencies shared by the gendercode commands.
// Tests replace the function fields.
type Deps struct {
	LoadConfig  func() (*config.Config, error)
	ConfigPath  func() (string, error)
	OpenBackend func(context.Context, *config.Config, logging.Logger) (*Backend, error)
	ConnectDB   func(context.Context, *config.Config) (*pgxpool.Pool, error)
	NewLogger   func(*config.Config) logging.Logger
	Secrets     SecretStore
	IsTerminal  func(io.Writer) bool
	Stdin       io.Reader
}

// DefaultDeps returns the default dependencies for production use. opts may
// be nil.
func DefaultDeps(opts *GlobalOptions) *Deps {
	if opts == nil {
		opts = &GlobalOptions{}
	}
	deps := &Deps{
		LoadConfig: func() (*config.Config, error) {
			return loadConfig(opts)
		},
		ConfigPath: func() (string, error) {
			return configPath(opts)
		},
		NewLogger:  newLogger,
		Secrets:    credentials.NewStore(),
		IsTerminal: isTerminal,
		Stdin:      os.Stdin,
	}
	deps.ConnectDB = func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return connectDatabase(ctx, cfg, deps.Secrets)
	}
	deps.OpenBackend = func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Backend, error) {
		return openBackend(ctx, cfg, deps, logger)
	}
	return deps
}

// configPath returns --config when given, else the default config path.
func configPath(opts *GlobalOptions) (string, error) {
	if opts.ConfigFile != "" {
		return config.ExpandPath(opts.ConfigFile)
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("getting config path: %w", err)
	}
	return path, nil
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(opts *GlobalOptions) (*config.Config, error) {
	path, err := configPath(opts)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return nil, err
	}

	if opts.Output != "" {
		cfg.OutputFormat = config.OutputFormat(opts.Output)
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if opts.Workers > 0 {
		cfg.Dispatcher.Workers = opts.Workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section and installs it
// as the global logger.
func newLogger(cfg *config.Config) logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Log.Level)
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	lc.JSONFormat = cfg.Log.JSON
	logger := logging.NewLogger(lc)
	logging.SetGlobal(logger)
	return logger
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Backend is an open dictionary source together with the resources behind it.
type Backend struct {
	// Source is the configured source, wrapped by Cache when Redis is enabled.
	Source store.Source

	// Pool is set for the postgres source.
	Pool *pgxpool.Pool

	// Cache is set when Redis is enabled.
	Cache *store.RedisCache

	closers []func() error
}

// NewBackend wraps an already open source.
func NewBackend(src store.Source) *Backend {
	return &Backend{Source: src}
}

// Writer returns the source as a Writer, or an error if it is read-only.
func (b *Backend) Writer() (store.Writer, error) {
	w, ok := b.Source.(store.Writer)
	if !ok {
		return nil, fmt.Errorf("dictionary source %s is read-only", b.Source.Name())
	}
	return w, nil
}

// Close releases every resource in reverse order of acquisition.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// readyPollInterval is how often a pending names table is checked for.
const readyPollInterval = 2 * time.Second

// connectDatabase opens a pool to the configured PostgreSQL database,
// retrying database.connect_attempts times. The password comes from the
// environment or the keyring.
func connectDatabase(ctx context.Context, cfg *config.Config, secrets SecretStore) (*pgxpool.Pool, error) {
	dbCfg := cfg.Database
	if dbCfg.Password == "" {
		dbCfg.Password = secrets.Resolve(credentials.DatabasePassword)
	}
	log := logging.Global().With(logging.F("host", dbCfg.Host), logging.F("database", dbCfg.Database))
	return db.ConnectWithRetry(ctx, &dbCfg, func(attempt int, err error) {
		log.Warn("Database not reachable, retrying",
			logging.Err(err),
			logging.F("attempt", attempt),
			logging.F("attempts", dbCfg.ConnectAttempts),
			logging.F("retry_in", dbCfg.RetryDelay))
	})
}

// waitForNamesTable blocks until the names table exists, for at most
// cfg.Database.ReadyTimeout.
func waitForNamesTable(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Database.ReadyTimeout)
	defer cancel()

	return db.WaitForDictionary(ctx, pool, readyPollInterval, func(err error) {
		logger.Info("Waiting for dictionary database",
			logging.F("table", db.NamesTable),
			logging.F("reason", err.Error()))
	})
}

// postgresSourceName identifies the postgres source in logs and metrics.
func postgresSourceName(cfg *config.Config) string {
	return fmt.Sprintf("postgres:%s/%s", cfg.Database.Host, cfg.Database.Database)
}

// openBackend opens the source selected by cfg.Dictionary.Source and wraps it
// with the Redis cache when enabled.
func openBackend(ctx context.Context, cfg *config.Config, deps *Deps, logger logging.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Dictionary.Source {
	case config.SourceFile:
		path, err := cfg.DictionaryPath()
		if err != nil {
			return nil, err
		}
		src, err := store.NewFileSource(path)
		if err != nil {
			return nil, err
		}
		b.Source = src

	case config.SourceSQLite:
		path, err := cfg.DictionaryPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating dictionary directory: %w", err)
		}
		src, err := store.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		b.Source = src
		b.closers = append(b.closers, src.Close)

	case config.SourcePostgres:
		pool, err := deps.ConnectDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.Pool = pool
		b.Source = store.NewPostgresSource(pool, postgresSourceName(cfg))
		b.closers = append(b.closers, func() error {
			db.Close(pool)
			return nil
		})
		if cfg.Database.ReadyTimeout > 0 {
			if err := waitForNamesTable(ctx, cfg, pool, logger); err != nil {
				b.Close()
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("unsupported dictionary source %q", cfg.Dictionary.Source)
	}

	if cfg.Redis.Enabled {
		password := cfg.Redis.Password
		if password == "" {
			password = deps.Secrets.Resolve(credentials.RedisPassword)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
		})
		b.Cache = store.NewRedisCache(client, b.Source, cfg.Redis.TTL, logger)
		b.Source = b.Cache
		b.closers = append(b.closers, client.Close)
	}

	return b, nil
}

// session bundles what a classification command needs.
type session struct {
	cfg       *config.Config
	logger    logging.Logger
	backend   *Backend
	dict      *names.Dictionary
	processor *coding.Processor
}

// openSession loads the config, opens the backend and loads the dictionary.
// The caller must close the session.
func openSession(ctx context.Context, deps *Deps, opts ...coding.Option) (*session, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.NewLogger(cfg)

	backend, err := deps.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}

	dict, err := store.Load(ctx, backend.Source, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if dict.Empty() {
		logger.Warn("Dictionary is empty, every name will be unknown",
			logging.F("source", backend.Source.Name()),
			logging.F("hint", "gendercode dict import <file>"))
	}

	opts = append([]coding.Option{
		coding.WithConfig(cfg.Dispatcher),
		coding.WithLogger(logger),
	}, opts...)

	return &session{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		dict:      dict,
		processor: coding.NewProcessor(dict, opts...),
	}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}
