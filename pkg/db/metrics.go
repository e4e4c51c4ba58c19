package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetric reads one value from a pool snapshot.
type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*pgxpool.Stat) float64
}

// PoolCollector exports the dictionary pool's statistics, read on every
// scrape. Every series carries the dictionary source and the command that
// opened the pool as constant labels.
type PoolCollector struct {
	pool    *pgxpool.Pool
	metrics []poolMetric
}

// NewPoolCollector creates a collector for pool. source names the dictionary
// source, e.g. "postgres:db.internal/gendercode".
func NewPoolCollector(pool *pgxpool.Pool, namespace, source, command string) *PoolCollector {
	labels := prometheus.Labels{"source": source, "command": command}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "dictionary_db", name), help, nil, labels)
	}

	return &PoolCollector{
		pool: pool,
		metrics: []poolMetric{
			{
				desc:      desc("open_conns", "Connections open to the dictionary database."),
				valueType: prometheus.GaugeValue,
				value:     func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) },
			},
			{
				desc:      desc("in_use_conns", "Connections currently serving a dictionary query."),
				valueType: prometheus.GaugeValue,
				value:     func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) },
			},
			{
				desc:      desc("max_conns", "Configured connection limit."),
				valueType: prometheus.GaugeValue,
				value:     func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) },
			},
			{
				desc:      desc("acquires_total", "Connections handed out by the pool."),
				valueType: prometheus.CounterValue,
				value:     func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) },
			},
			{
				desc:      desc("acquire_waits_total", "Acquires that had to wait for a free connection."),
				valueType: prometheus.CounterValue,
				value:     func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) },
			},
			{
				desc:      desc("acquire_seconds_total", "Time spent waiting for connections."),
				valueType: prometheus.CounterValue,
				value:     func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() },
			},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector. A nil pool yields no samples.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(stat))
	}
}

// RegisterPoolCollector registers a PoolCollector with reg. A collector
// already registered under the same labels is not an error.
func RegisterPoolCollector(reg prometheus.Registerer, pool *pgxpool.Pool, namespace, source, command string) (*PoolCollector, error) {
	c := NewPoolCollector(pool, namespace, source, command)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return c, nil
}
