package cosmosgremlin

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK             = "ok"
	outcomeArgumentError  = "argument_error"
	outcomeTransportError = "transport_error"
	outcomeDecodeError    = "decode_error"
	outcomeError          = "error"
)

// Metrics holds Prometheus metrics for query execution. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	resultSize    prometheus.Histogram
	decodeErrors  prometheus.Counter
}

// NewMetrics creates the query metrics and registers them with reg. Metrics
// that are already registered (for example by a second client in the same
// process) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosmosgremlin_queries_total",
				Help: "Total number of submitted graph queries by outcome",
			},
			[]string{"outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cosmosgremlin_query_duration_seconds",
				Help:    "Duration of graph queries including materialization",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"outcome"},
		),
		resultSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cosmosgremlin_query_results",
				Help:    "Number of result items returned per successful query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		decodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cosmosgremlin_decode_errors_total",
				Help: "Total number of result payloads that failed classification or materialization",
			},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.queriesTotal, err = register(reg, m.queriesTotal); err != nil {
		return nil, err
	}
	if m.queryDuration, err = register(reg, m.queryDuration); err != nil {
		return nil, err
	}
	if m.resultSize, err = register(reg, m.resultSize); err != nil {
		return nil, err
	}
	if m.decodeErrors, err = register(reg, m.decodeErrors); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(outcome string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	switch outcome {
	case outcomeOK:
		m.resultSize.Observe(float64(results))
	case outcomeDecodeError:
		m.decodeErrors.Inc()
	}
}
