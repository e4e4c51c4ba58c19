package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/gendercode/pkg/db"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// PostgresSource reads the dictionary tables from the gender_coding_names
// table of a PostgreSQL database.
type PostgresSource struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresSource wraps an open pool. name is used in logs.
func NewPostgresSource(pool *pgxpool.Pool, name string) *PostgresSource {
	if name == "" {
		name = "postgres"
	}
	return &PostgresSource{pool: pool, name: name}
}

// Name implements Source.
func (s *PostgresSource) Name() string {
	return s.name
}

// Pool returns the underlying connection pool.
func (s *PostgresSource) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema applies any pending dictionary migrations.
func (s *PostgresSource) EnsureSchema(ctx context.Context) (*db.MigrationResult, error) {
	return db.RunMigrations(ctx, s.pool, db.Migrations())
}

// Table implements Source.
func (s *PostgresSource) Table(ctx context.Context, tier names.Tier) ([]names.Entry, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("%w: pool is nil", gcerrors.ErrSourceUnavailable)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT first_name, gender FROM gender_coding_names WHERE tier = $1 ORDER BY id`,
		tier.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s names: %w", tier, err)
	}
	defer rows.Close()

	var entries []names.Entry
	for rows.Next() {
		var pattern, code string
		if err := rows.Scan(&pattern, &code); err != nil {
			return nil, fmt.Errorf("failed to scan %s name: %w", tier, err)
		}
		g, err := gender.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("%w: row %q: %v", gcerrors.ErrValidation, pattern, err)
		}
		entries = append(entries, names.Entry{Pattern: pattern, Gender: g})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s names: %w", tier, err)
	}
	return entries, nil
}

// ReplaceTable implements Writer. Rows are bulk loaded with COPY inside a
// transaction so readers see either the old or the new table.
func (s *PostgresSource) ReplaceTable(ctx context.Context, tier names.Tier, entries []names.Entry) error {
	if s.pool == nil {
		return fmt.Errorf("%w: pool is nil", gcerrors.ErrSourceUnavailable)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM gender_coding_names WHERE tier = $1`, tier.String()); err != nil {
		return fmt.Errorf("failed to clear %s names: %w", tier, err)
	}

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{tier.String(), e.Pattern, e.Gender.String()}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"gender_coding_names"},
		[]string{"tier", "first_name", "gender"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to copy %s names: %w", tier, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
