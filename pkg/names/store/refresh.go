package store

import (
	"context"
	"time"

	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// Refresher reloads the dictionary from a source on a fixed interval and
// hands each new snapshot to a callback. A failed reload keeps the previous
// snapshot in service.
type Refresher struct {
	src      Source
	interval time.Duration
	apply    func(*names.Dictionary)
	logger   logging.Logger
}

// NewRefresher creates a Refresher. apply is called from the Run goroutine.
func NewRefresher(src Source, interval time.Duration, apply func(*names.Dictionary), logger logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Refresher{
		src:      src,
		interval: interval,
		apply:    apply,
		logger:   logger.With(logging.F("component", "refresher")),
	}
}

// Run reloads until ctx is done. It returns ctx's error.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Warn("Dictionary refresh failed, keeping previous snapshot", logging.Err(err))
			}
		}
	}
}

// RefreshOnce performs a single reload.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	dict, err := Load(ctx, r.src, r.logger)
	if err != nil {
		return err
	}
	r.apply(dict)
	return nil
}
