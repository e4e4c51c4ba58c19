package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/db"
)

// TestDbCommand tests the parent db command structure.
func TestDbCommand(t *testing.T) {
	cmd := NewDbCommand(nil)

	assert.NotNil(t, cmd, "NewDbCommand() should not return nil")
	assert.Equal(t, "db", cmd.Use, "db command Use should be 'db'")
	assert.NotEmpty(t, cmd.Short, "db command should have Short description")
	assert.NotEmpty(t, cmd.Long, "db command should have Long description")
}

// TestDbCommand_HasSubcommands verifies the db command has migrate and status subcommands.
func TestDbCommand_HasSubcommands(t *testing.T) {
	cmd := NewDbCommand(nil)

	migrateFound := false
	statusFound := false
	for _, sub := range cmd.Commands() {
		switch sub.Use {
		case "migrate":
			migrateFound = true
		case "status":
			statusFound = true
		}
	}

	assert.True(t, migrateFound, "db command should have 'migrate' subcommand")
	assert.True(t, statusFound, "db command should have 'status' subcommand")
}

// TestDbMigrateCommand_Flags verifies the migrate subcommand has a --dry-run flag.
func TestDbMigrateCommand_Flags(t *testing.T) {
	cmd := NewDbCommand(nil)

	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err, "should find migrate subcommand")

	dryRunFlag := migrateCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRunFlag, "migrate command should have --dry-run flag")
	assert.Equal(t, "bool", dryRunFlag.Value.Type(), "--dry-run should be a boolean flag")
	assert.NotEmpty(t, dryRunFlag.Usage, "--dry-run flag should have usage description")
}

func TestDbCommand_Aliases(t *testing.T) {
	cmd := NewDbCommand(nil)
	assert.Contains(t, cmd.Aliases, "migrations")
}

func TestRunDbStatus_ConnectError(t *testing.T) {
	_, deps := newTestEnv(t, nil)
	deps.ConnectDB = func(context.Context, *config.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("connection refused")
	}

	err := runDbStatus(context.Background(), deps, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
	assert.Contains(t, err.Error(), "connection refused")

	err = runDbMigrate(context.Background(), deps, &bytes.Buffer{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWriteMigrationStatus(t *testing.T) {
	applied := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{{Version: "001", Name: "create_names", AppliedAt: &applied}},
		Pending: []db.MigrationStatusEntry{{Version: "002", Name: "add_index"}},
		Drift:   []db.MigrationStatusEntry{{Version: "099", Name: "hotfix", AppliedAt: &applied}},
	}

	var out bytes.Buffer
	require.NoError(t, writeMigrationStatus(&out, status))

	s := out.String()
	assert.Contains(t, s, "create_names")
	assert.Contains(t, s, "2026-10-01 09:30:00")
	assert.Contains(t, s, "pending")
	assert.Contains(t, s, "drift")
}

func TestWriteMigrationStatus_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeMigrationStatus(&out, &db.MigrationStatus{}))
	assert.Equal(t, "No migrations found.\n", out.String())
}
