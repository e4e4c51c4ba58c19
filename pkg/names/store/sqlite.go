package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

//go:embed schema.sql
var sqliteSchema string

// sqliteSchemaVersion is bumped whenever schema.sql changes incompatibly.
const sqliteSchemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteSource keeps the dictionary tables in a single SQLite table,
// gender_coding_names, keyed by tier and ordered by insertion id.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the dictionary database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteSource{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Name implements Source.
func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

func (s *SQLiteSource) initSchema(ctx context.Context) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if exists == 1 {
		var version int
		if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != sqliteSchemaVersion {
			return fmt.Errorf("%w: dictionary database has schema version %d, expected %d",
				gcerrors.ErrValidation, version, sqliteSchemaVersion)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", sqliteSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Table implements Source.
func (s *SQLiteSource) Table(ctx context.Context, tier names.Tier) ([]names.Entry, error) {
	var entries []names.Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT first_name, gender FROM gender_coding_names WHERE tier = ? ORDER BY id",
			tier.String())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var pattern, code string
			if err := rows.Scan(&pattern, &code); err != nil {
				return err
			}
			g, err := gender.Parse(code)
			if err != nil {
				return fmt.Errorf("%w: row %q: %v", gcerrors.ErrValidation, pattern, err)
			}
			entries = append(entries, names.Entry{Pattern: pattern, Gender: g})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query %s names: %w", tier, err)
	}
	return entries, nil
}

// ReplaceTable implements Writer. The table is replaced atomically.
func (s *SQLiteSource) ReplaceTable(ctx context.Context, tier names.Tier, entries []names.Entry) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin replace tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM gender_coding_names WHERE tier = ?", tier.String()); err != nil {
			return fmt.Errorf("clear %s names: %w", tier, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO gender_coding_names (tier, first_name, gender) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, tier.String(), e.Pattern, e.Gender.String()); err != nil {
				return fmt.Errorf("insert %s name %q: %w", tier, e.Pattern, err)
			}
		}
		return tx.Commit()
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
