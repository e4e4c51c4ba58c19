package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NamesTable holds the dictionary rows of the postgres source.
const NamesTable = "gender_coding_names"

// ErrNamesTableMissing is returned while the database answers but the names
// table has not been migrated yet.
var ErrNamesTableMissing = errors.New("table " + NamesTable + " does not exist")

var errNilPool = errors.New("pool is nil")

// DictionaryHealth describes the dictionary database as /healthz reports it.
type DictionaryHealth struct {
	Reachable bool
	Latency   time.Duration

	// RowsByTier counts the rows of each tier. It is nil when the table is
	// missing or could not be read.
	RowsByTier map[string]int64

	OpenConns  int32
	InUseConns int32

	Err error
}

// Ready reports whether the database answers and the names table exists.
func (h *DictionaryHealth) Ready() bool {
	return h.Reachable && h.RowsByTier != nil && h.Err == nil
}

// Rows returns the total number of dictionary rows.
func (h *DictionaryHealth) Rows() int64 {
	var n int64
	for _, c := range h.RowsByTier {
		n += c
	}
	return n
}

// CheckDictionary pings the database and counts the names table per tier.
func CheckDictionary(ctx context.Context, pool *pgxpool.Pool) *DictionaryHealth {
	h := &DictionaryHealth{}
	if pool == nil {
		h.Err = errNilPool
		return h
	}

	start := time.Now()
	err := pool.Ping(ctx)
	h.Latency = time.Since(start)
	if err != nil {
		h.Err = fmt.Errorf("ping failed: %w", err)
		return h
	}
	h.Reachable = true

	stats := pool.Stat()
	h.OpenConns = stats.TotalConns()
	h.InUseConns = stats.AcquiredConns()

	h.RowsByTier, h.Err = countRowsByTier(ctx, pool)
	return h
}

func countRowsByTier(ctx context.Context, pool *pgxpool.Pool) (map[string]int64, error) {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, NamesTable).Scan(&exists); err != nil {
		return nil, fmt.Errorf("looking up %s: %w", NamesTable, err)
	}
	if !exists {
		return nil, ErrNamesTableMissing
	}

	rows, err := pool.Query(ctx, `SELECT tier, count(*) FROM `+NamesTable+` GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", NamesTable, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}

// WaitForDictionary polls every interval until CheckDictionary reports
// ready. onWait, when set, receives the reason of each failed poll. It gives
// up with the last reason once ctx is done.
func WaitForDictionary(ctx context.Context, pool *pgxpool.Pool, interval time.Duration, onWait func(error)) error {
	if pool == nil {
		return errNilPool
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h := CheckDictionary(ctx, pool)
		if h.Ready() {
			return nil
		}
		reason := h.Err
		if onWait != nil {
			onWait(reason)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("dictionary database not ready: %w (%v)", ctx.Err(), reason)
		case <-ticker.C:
		}
	}
}
