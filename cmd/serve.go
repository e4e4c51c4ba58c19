package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/api"
	"github.com/otherjamesbrown/gendercode/pkg/coding"
	"github.com/otherjamesbrown/gendercode/pkg/db"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names/store"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr     string
	maxBatch int
	refresh  time.Duration
	waitDB   time.Duration

	// ready, when set, receives the bound address once the listener is open.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve gender classification over HTTP.

Routes:
  GET  /classify?name=A&name=B   classify names given as query parameters
  POST /batch                    classify {"names": [...]} or
                                 {"inputs": [{"first_name": ..., "unique_id": ...}]}
  GET  /dictionary/stats         table sizes of the loaded snapshot
  GET  /dictionary/explain?name= normalized key and matching table
  GET  /healthz                  dictionary and database health
  GET  /metrics                  Prometheus metrics
  GET  /version                  build information

With --refresh (or dictionary.refresh_interval) the dictionary is reloaded
periodically. Batches already running keep the snapshot they started with.

For the postgres source, --wait-db (or database.ready_timeout) holds startup
until the names table has been migrated, e.g. while a migration job runs.

Examples:
  gendercode serve
  gendercode serve --addr 127.0.0.1:9090 --refresh 5m
  gendercode serve --wait-db 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), deps, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from serve.addr)")
	cmd.Flags().IntVar(&opts.maxBatch, "max-batch", api.DefaultMaxBatch, "Maximum names accepted per request")
	cmd.Flags().DurationVar(&opts.refresh, "refresh", 0, "Dictionary reload interval (default from dictionary.refresh_interval)")
	cmd.Flags().DurationVar(&opts.waitDB, "wait-db", 0, "Wait this long for the postgres names table (default from database.ready_timeout)")

	return cmd
}

func runServe(ctx context.Context, deps *Deps, opts *serveOptions) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if opts.waitDB > 0 {
		deps = withReadyTimeout(deps, opts.waitDB)
	}

	s, err := openSession(ctx, deps, coding.WithMetrics(coding.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer s.Close()

	if s.backend.Pool != nil {
		if _, err := db.RegisterPoolCollector(reg, s.backend.Pool, s.cfg.Metrics.Namespace, postgresSourceName(s.cfg), "serve"); err != nil {
			return fmt.Errorf("registering pool metrics: %w", err)
		}
	}

	addr := opts.addr
	if addr == "" {
		addr = s.cfg.Serve.Addr
	}
	refresh := opts.refresh
	if refresh == 0 {
		refresh = s.cfg.Dictionary.RefreshInterval
	}

	router := api.NewRouter(s.processor,
		api.WithLogger(s.logger),
		api.WithGatherer(reg),
		api.WithPool(s.backend.Pool),
		api.WithMaxBatch(opts.maxBatch),
	)
	srv := api.NewServer(addr, router)
	srv.ErrorLog = api.ServerErrorLog(s.logger)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Serving classification API",
			logging.F("addr", ln.Addr().String()),
			logging.F("workers", s.processor.Workers()),
			logging.F("refresh", refresh))
		if opts.ready != nil {
			opts.ready(ln.Addr().String())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if refresh > 0 {
		refresher := store.NewRefresher(s.backend.Source, refresh, s.processor.SetDictionary, s.logger)
		g.Go(func() error {
			if err := refresher.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// withReadyTimeout returns a copy of deps whose configuration waits up to d
// for the names table.
func withReadyTimeout(deps *Deps, d time.Duration) *Deps {
	out := *deps
	load := deps.LoadConfig
	out.LoadConfig = func() (*config.Config, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		cfg.Database.ReadyTimeout = d
		return cfg, nil
	}
	return &out
}
