package coding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// Metrics holds the Prometheus metrics for batch classification.
type Metrics struct {
	BatchesTotal         *prometheus.CounterVec
	NamesClassifiedTotal *prometheus.CounterVec
	BatchSeconds         prometheus.Histogram
	BatchSize            prometheus.Histogram
	BatchesInFlight      prometheus.Gauge
	Workers              prometheus.Gauge
	DictionaryEntries    *prometheus.GaugeVec
}

// DefaultMetrics creates metrics registered with the default registry.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gendercode_batches_total",
				Help: "Total batches classified, by outcome",
			},
			[]string{"status"},
		),
		NamesClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gendercode_names_classified_total",
				Help: "Total names classified, by resulting gender",
			},
			[]string{"gender"},
		),
		BatchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gendercode_batch_seconds",
				Help:    "Wall time of one batch",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gendercode_batch_size",
				Help:    "Number of names per batch",
				Buckets: prometheus.ExponentialBuckets(1, 10, 7),
			},
		),
		BatchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gendercode_batches_in_flight",
				Help: "Batches currently being classified",
			},
		),
		Workers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gendercode_workers",
				Help: "Workers started for the most recent batch",
			},
		),
		DictionaryEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gendercode_dictionary_entries",
				Help: "Indexed entries per dictionary table",
			},
			[]string{"tier"},
		),
	}
}

func (m *Metrics) observeDictionary(d *names.Dictionary) {
	if m == nil {
		return
	}
	for _, st := range d.Stats() {
		m.DictionaryEntries.WithLabelValues(st.Tier.String()).Set(float64(st.Indexed))
	}
}
