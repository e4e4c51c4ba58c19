package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/api"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
)

func TestServeCommand(t *testing.T) {
	cmd := NewServeCommand(nil)

	assert.Equal(t, "serve", cmd.Use)
	for _, name := range []string{"addr", "max-batch", "refresh", "wait-db"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "serve command should have --%s flag", name)
	}
}

func TestRunServe(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	ready := make(chan string, 1)
	opts := &serveOptions{
		addr:     "127.0.0.1:0",
		maxBatch: 10,
		refresh:  20 * time.Millisecond,
		ready:    func(addr string) { ready <- addr },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- runServe(ctx, deps, opts) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errc:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + addr

	resp, err := http.Get(base + "/classify?name=John&name=Mary-Jane")
	require.NoError(t, err)
	var batch api.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, gender.Male, batch.Results[0].Gender)
	assert.Equal(t, gender.Female, batch.Results[1].Gender)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "gendercode_dictionary_entries")
	assert.Contains(t, string(body), "go_goroutines")

	// Let the refresher run at least once.
	time.Sleep(60 * time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServe_ListenError(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	err := runServe(context.Background(), deps, &serveOptions{addr: "256.0.0.1:99999", maxBatch: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestWithReadyTimeout(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	waiting := withReadyTimeout(deps, 90*time.Second)
	cfg, err := waiting.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Database.ReadyTimeout)

	cfg, err = deps.LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.Database.ReadyTimeout)
}

func TestRunServe_WaitDBGivesUp(t *testing.T) {
	_, deps := newTestEnv(t, func(c *config.Config) {
		c.Dictionary.Source = config.SourcePostgres
	})
	deps.ConnectDB = func(ctx context.Context, _ *config.Config) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, "postgres://coder@127.0.0.1:1/gendercode?connect_timeout=1")
	}

	start := time.Now()
	err := runServe(context.Background(), deps, &serveOptions{addr: "127.0.0.1:0", maxBatch: 10, waitDB: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dictionary database not ready")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectDatabase_RetriesAndLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Global()
	logging.SetGlobal(logging.NewLogger(&logging.Config{Level: logging.LevelInfo, JSONFormat: true, Output: &buf}))
	defer logging.SetGlobal(prev)

	cfg := config.DefaultConfig()
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Database.ConnectTimeout = time.Second
	cfg.Database.ConnectAttempts = 2
	cfg.Database.RetryDelay = time.Millisecond

	_, err := connectDatabase(context.Background(), cfg, newMemSecrets())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, buf.String(), "Database not reachable, retrying")
	assert.Contains(t, buf.String(), `"attempt":1`)
}
