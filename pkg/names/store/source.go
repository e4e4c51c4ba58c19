// Package store loads the name dictionary tables from their backing storage:
// YAML/TOML/JSON files, SQLite, PostgreSQL, optionally cached in Redis.
package store

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// TracerName is the name of the tracer for dictionary loads.
const TracerName = "gendercode/store"

// SpanLoadDictionary is the span covering one full dictionary load.
const SpanLoadDictionary = "gendercode.dictionary_load"

// Source provides the ordered contents of each dictionary table.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Table returns the entries of one table in their stored order.
	Table(ctx context.Context, tier names.Tier) ([]names.Entry, error)
}

// BulkSource is implemented by sources that can read every table at once
// more cheaply than table by table.
type BulkSource interface {
	Source
	Tables(ctx context.Context) (names.Tables, error)
}

// Writer is implemented by sources whose tables can be replaced.
type Writer interface {
	ReplaceTable(ctx context.Context, tier names.Tier, entries []names.Entry) error
}

// LoadTables reads all four tables from src. Tables are fetched concurrently
// unless src implements BulkSource.
func LoadTables(ctx context.Context, src Source) (names.Tables, error) {
	if bulk, ok := src.(BulkSource); ok {
		tables, err := bulk.Tables(ctx)
		if err != nil {
			return names.Tables{}, &gcerrors.TableError{Source: src.Name(), Table: "*", Cause: err}
		}
		return tables, nil
	}

	loaded := make([][]names.Entry, len(names.Tiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, tier := range names.Tiers {
		i, tier := i, tier
		g.Go(func() error {
			entries, err := src.Table(gctx, tier)
			if err != nil {
				return &gcerrors.TableError{Source: src.Name(), Table: tier.String(), Cause: err}
			}
			loaded[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return names.Tables{}, err
	}

	var tables names.Tables
	for i, tier := range names.Tiers {
		tables.Set(tier, loaded[i])
	}
	return tables, nil
}

// Load reads all tables from src and builds a dictionary snapshot.
func Load(ctx context.Context, src Source, logger logging.Logger) (*names.Dictionary, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, span := otel.Tracer(TracerName).Start(ctx, SpanLoadDictionary,
		trace.WithAttributes(attribute.String("source", src.Name())))
	defer span.End()

	start := time.Now()
	tables, err := LoadTables(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}

	dict := names.NewDictionary(tables)
	fields := []logging.Field{
		logging.F("source", src.Name()),
		logging.F("duration", time.Since(start)),
	}
	for _, st := range dict.Stats() {
		fields = append(fields, logging.F(st.Tier.String(), st.Indexed))
		if st.Rejected > 0 {
			logger.Warn("Dictionary entries rejected",
				logging.F("tier", st.Tier.String()),
				logging.F("rejected", st.Rejected))
		}
	}
	logger.Info("Dictionary loaded", fields...)
	span.SetAttributes(attribute.Int("entries", tables.Len()))

	return dict, nil
}

// Import copies every table from src into dst.
func Import(ctx context.Context, src Source, dst Writer) (names.Tables, error) {
	tables, err := LoadTables(ctx, src)
	if err != nil {
		return names.Tables{}, err
	}
	for _, tier := range names.Tiers {
		if err := dst.ReplaceTable(ctx, tier, tables.Get(tier)); err != nil {
			return names.Tables{}, fmt.Errorf("failed to import table %s: %w", tier, err)
		}
	}
	return tables, nil
}
