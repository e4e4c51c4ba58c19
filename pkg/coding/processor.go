// Package coding classifies batches of first names concurrently and reports
// progress while it does so.
//
// A Processor holds the current dictionary snapshot and the registered
// progress listeners. Every call to ClassifyBatch or ClassifyInputs runs in
// its own session with its own queue and counters, so one Processor can serve
// concurrent batches.
package coding

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// DefaultPollInterval is how often a running batch reports progress.
const DefaultPollInterval = 2 * time.Second

// DefaultWorkers returns the pool size used when none is configured: the
// number of CPUs plus two, and never less than one.
func DefaultWorkers() int {
	n := runtime.NumCPU() + 2
	if n < 1 {
		n = 1
	}
	return n
}

// Config tunes batch execution.
type Config struct {
	// Workers is the pool size. Values below 1 select DefaultWorkers.
	// A value of 1 classifies sequentially on the calling goroutine.
	Workers int `yaml:"workers"`

	// PollInterval is the delay between progress observations.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      DefaultWorkers(),
		PollInterval: DefaultPollInterval,
	}
}

// Processor classifies names against a dictionary snapshot.
type Processor struct {
	cfg       Config
	dict      atomic.Pointer[names.Dictionary]
	listeners listeners
	logger    logging.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig sets the worker count and poll interval.
func WithConfig(cfg Config) Option {
	return func(p *Processor) {
		p.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Processor) {
		p.tracer = tp.Tracer(TracerName)
	}
}

// NewProcessor creates a Processor serving lookups from dict.
// A nil dict is allowed and classifies everything as Unknown.
func NewProcessor(dict *names.Dictionary, opts ...Option) *Processor {
	p := &Processor{
		cfg:    DefaultConfig(),
		logger: logging.NewNopLogger(),
		tracer: defaultTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.Workers < 1 {
		p.cfg.Workers = DefaultWorkers()
	}
	if p.cfg.PollInterval <= 0 {
		p.cfg.PollInterval = DefaultPollInterval
	}
	p.logger = p.logger.With(logging.F("component", "coding"))
	p.SetDictionary(dict)
	return p
}

// SetDictionary swaps in a new snapshot. Batches already running keep the
// snapshot they started with.
func (p *Processor) SetDictionary(dict *names.Dictionary) {
	p.dict.Store(dict)
	if dict != nil {
		p.metrics.observeDictionary(dict)
	}
}

// Dictionary returns the current snapshot.
func (p *Processor) Dictionary() *names.Dictionary {
	return p.dict.Load()
}

// Workers returns the configured pool size.
func (p *Processor) Workers() int {
	return p.cfg.Workers
}

// OnProgress registers a listener for the progress of every batch this
// Processor runs. Calling the returned function unregisters it.
func (p *Processor) OnProgress(fn ProgressListener) (unregister func()) {
	return p.listeners.add(fn)
}

// Classify classifies a single name synchronously.
func (p *Processor) Classify(name string) gender.Gender {
	return p.dict.Load().Lookup(name)
}

// ClassifyBatch classifies names and returns one Result per name in
// submission order, with Row numbered from 1.
//
// It returns once every name has been classified. If ctx is cancelled first,
// the results are returned with ctx's error; names no worker reached are left
// Unknown and not processed.
func (p *Processor) ClassifyBatch(ctx context.Context, firstNames []string) ([]*Result, error) {
	return p.run(ctx, resultsFromNames(firstNames))
}

// ClassifyInputs is ClassifyBatch for names that carry a caller identifier.
// Each Result keeps the UniqueID of its Input.
func (p *Processor) ClassifyInputs(ctx context.Context, inputs []Input) ([]*Result, error) {
	return p.run(ctx, resultsFromInputs(inputs))
}

func (p *Processor) run(ctx context.Context, results []*Result) ([]*Result, error) {
	s := newBatchSession(p.dict.Load(), results)

	workers := p.cfg.Workers
	if workers > s.total() {
		workers = s.total()
	}

	ctx = context.WithValue(ctx, logging.BatchIDKey, s.id)
	ctx, span := p.tracer.Start(ctx, SpanClassifyBatch, trace.WithAttributes(
		attribute.String(AttrBatchID, s.id),
		attribute.Int(AttrBatchSize, s.total()),
		attribute.Int(AttrWorkers, workers),
	))
	defer span.End()

	log := p.logger.WithContext(ctx)
	log.Debug("Batch started",
		logging.F("names", s.total()),
		logging.F("workers", workers))

	if p.metrics != nil {
		p.metrics.BatchesInFlight.Inc()
		defer p.metrics.BatchesInFlight.Dec()
		p.metrics.Workers.Set(float64(workers))
	}

	start := time.Now()
	var err error
	switch {
	case s.total() == 0:
	case workers == 1:
		err = p.runSequential(ctx, s, log)
	default:
		err = p.runConcurrent(ctx, s, workers, log)
	}
	p.report(s, true, log)

	elapsed := time.Since(start)
	counts := s.counts()
	p.recordMetrics(s, counts, elapsed, err)

	span.SetAttributes(attribute.Int64(AttrUnknown, counts[gender.Unknown]))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Batch interrupted",
			logging.Err(err),
			logging.F("completed", int(s.completed.Load())),
			logging.F("names", s.total()))
		return s.results, err
	}

	log.Info("Batch classified",
		logging.F("names", s.total()),
		logging.F("unknown", counts[gender.Unknown]),
		logging.F("duration", elapsed))

	return s.results, nil
}

// runConcurrent starts the worker group and polls the completed counter
// until the group has exited.
func (p *Processor) runConcurrent(ctx context.Context, s *batchSession, workers int, log logging.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return s.work(gctx)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.report(s, false, log)
		select {
		case err := <-done:
			return err
		case <-ticker.C:
		}
	}
}

// runSequential classifies every result on the calling goroutine, reporting
// at most once per poll interval.
func (p *Processor) runSequential(ctx context.Context, s *batchSession, log logging.Logger) error {
	last := time.Now()
	p.report(s, false, log)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, ok := <-s.queue
		if !ok {
			return nil
		}
		s.classify(r)
		if time.Since(last) >= p.cfg.PollInterval {
			p.report(s, false, log)
			last = time.Now()
		}
	}
}

// report emits one progress observation to every listener and to the debug log.
func (p *Processor) report(s *batchSession, done bool, log logging.Logger) {
	ev := s.progress(done)

	log.Debug("Gender coding progress",
		logging.F("percent", ev.Percent()),
		logging.F("completed", ev.Completed),
		logging.F("total", ev.Total))

	for _, fn := range p.listeners.snapshot() {
		fn(ev)
	}
}

func (p *Processor) recordMetrics(s *batchSession, counts map[gender.Gender]int64, elapsed time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "cancelled"
	}
	p.metrics.BatchesTotal.WithLabelValues(status).Inc()
	p.metrics.BatchSeconds.Observe(elapsed.Seconds())
	p.metrics.BatchSize.Observe(float64(s.total()))
	for g, n := range counts {
		if n > 0 {
			p.metrics.NamesClassifiedTotal.WithLabelValues(g.String()).Add(float64(n))
		}
	}
}
