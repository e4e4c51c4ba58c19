package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded migrations rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration represents a single database migration file.
type Migration struct {
	Version string
	Name    string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// MigrationStatusEntry represents a single migration in a status report.
type MigrationStatusEntry struct {
	Version   string
	Name      string
	AppliedAt *time.Time // nil for pending
}

// MigrationStatus represents the complete status of migrations.
type MigrationStatus struct {
	Applied []MigrationStatusEntry // applied and has file
	Pending []MigrationStatusEntry // has file but not applied
	Drift   []MigrationStatusEntry // applied but no file
}

// RunMigrations executes all .sql files in fsys that have not been applied yet.
// Files are executed in lexical order (use numeric prefixes like 001_, 002_).
// Applied versions are tracked in schema_migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := findMigrations(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to find migrations: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	result := &MigrationResult{}
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}
		if err := applyMigration(ctx, pool, fsys, m); err != nil {
			return result, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

// GetMigrationStatus reports which migrations in fsys are applied, pending,
// or applied without a corresponding file.
func GetMigrationStatus(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (*MigrationStatus, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	migrations, err := findMigrations(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to find migrations: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	return buildStatus(migrations, applied), nil
}

func buildStatus(migrations []Migration, applied map[string]time.Time) *MigrationStatus {
	status := &MigrationStatus{
		Applied: []MigrationStatusEntry{},
		Pending: []MigrationStatusEntry{},
		Drift:   []MigrationStatusEntry{},
	}

	files := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		files[m.Version] = true
		if appliedAt, ok := applied[m.Version]; ok {
			status.Applied = append(status.Applied, MigrationStatusEntry{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: &appliedAt,
			})
		} else {
			status.Pending = append(status.Pending, MigrationStatusEntry{
				Version: m.Version,
				Name:    m.Name,
			})
		}
	}

	for version, appliedAt := range applied {
		appliedAt := appliedAt
		if files[version] {
			continue
		}
		status.Drift = append(status.Drift, MigrationStatusEntry{
			Version:   version,
			Name:      version + ".sql",
			AppliedAt: &appliedAt,
		})
	}
	sort.Slice(status.Drift, func(i, j int) bool {
		return status.Drift[i].Version < status.Drift[j].Version
	})

	return status
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// findMigrations lists the .sql files at the root of fsys in version order.
func findMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(path.Ext(name), ".sql") {
			continue
		}
		migrations = append(migrations, Migration{
			Version: normalizeVersion(name),
			Name:    name,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// normalizeVersion removes the .sql suffix from a version string for comparison.
func normalizeVersion(v string) string {
	if len(v) > 4 && strings.EqualFold(v[len(v)-4:], ".sql") {
		return v[:len(v)-4]
	}
	return v
}

func getAppliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	applied := make(map[string]time.Time)

	rows, err := pool.Query(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, err
		}
		applied[normalizeVersion(version)] = appliedAt
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, m Migration) error {
	content, err := fs.ReadFile(fsys, m.Name)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	sql := string(content)
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("migration file is empty")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
