// Package db provides PostgreSQL connection, health and migration helpers for
// the dictionary database.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration.
// The password is never read from the config file.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"-"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// ConnectAttempts is how many times a connection is tried before giving up.
	ConnectAttempts int `yaml:"connect_attempts"`
	// RetryDelay separates connection attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// ReadyTimeout bounds how long serve waits for the names table to
	// appear. Zero disables the wait.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "gendercode",
		User:            "gendercode",
		Password:        "",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		ConnectAttempts: 3,
		RetryDelay:      2 * time.Second,
	}
}

// ApplyEnv overrides fields of cfg from the environment and returns cfg.
//
//   - GENDERCODE_DB_HOST, GENDERCODE_DB_PORT, GENDERCODE_DB_NAME
//   - GENDERCODE_DB_USER, GENDERCODE_DB_PASSWORD, GENDERCODE_DB_SSLMODE
//   - GENDERCODE_DB_MAX_CONNS, GENDERCODE_DB_MIN_CONNS
//   - GENDERCODE_DB_CONNECT_ATTEMPTS
//
// Unparseable numbers are ignored.
func ApplyEnv(cfg *Config) *Config {
	if host := os.Getenv("GENDERCODE_DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("GENDERCODE_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if database := os.Getenv("GENDERCODE_DB_NAME"); database != "" {
		cfg.Database = database
	}
	if user := os.Getenv("GENDERCODE_DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("GENDERCODE_DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if sslmode := os.Getenv("GENDERCODE_DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	if maxConns := os.Getenv("GENDERCODE_DB_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.ParseInt(maxConns, 10, 32); err == nil {
			cfg.MaxConns = int32(mc)
		}
	}
	if minConns := os.Getenv("GENDERCODE_DB_MIN_CONNS"); minConns != "" {
		if mc, err := strconv.ParseInt(minConns, 10, 32); err == nil {
			cfg.MinConns = int32(mc)
		}
	}
	if attempts := os.Getenv("GENDERCODE_DB_CONNECT_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.ConnectAttempts = n
		}
	}

	return cfg
}

// ConnectionString builds a PostgreSQL connection string from the config.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	if c.ConnectAttempts < 0 {
		return fmt.Errorf("connect attempts must not be negative: %d", c.ConnectAttempts)
	}
	return nil
}

// Connect creates a new connection pool with the given configuration.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify the connection works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RetryFunc is told about each failed attempt that will be retried.
type RetryFunc func(attempt int, err error)

// ConnectWithRetry calls Connect up to cfg.ConnectAttempts times, sleeping
// cfg.RetryDelay between attempts. An invalid config is not retried.
func ConnectWithRetry(ctx context.Context, cfg *Config, onRetry RetryFunc) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	attempts := max(cfg.ConnectAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := Connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("connecting to %s:%d: %w", cfg.Host, cfg.Port, ctx.Err())
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, lastErr)
}

// Close gracefully closes a connection pool if it is not nil.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
