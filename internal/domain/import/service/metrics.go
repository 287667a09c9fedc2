package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ingestion counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	files          *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	parseErrors    *prometheus.CounterVec
	periodsCreated prometheus.Counter
	fileDuration   *prometheus.HistogramVec
}

// NewMetrics registers the ingestion collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "files_total",
			Help:      "Statements processed, by detected bank and outcome.",
		}, []string{"bank", "outcome"}),
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "transactions_total",
			Help:      "Candidate transactions, by outcome.",
		}, []string{"outcome"}),
		parseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "parse_errors_total",
			Help:      "Errors collected while extracting and parsing statements.",
		}, []string{"bank"}),
		periodsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "budget_periods_created_total",
			Help:      "Budget periods created on demand during ingestion.",
		}),
		fileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statement_ingest",
			Name:      "file_duration_seconds",
			Help:      "Time spent extracting, parsing and classifying one statement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bank"}),
	}
}

const (
	outcomeParsed      = "parsed"
	outcomeUnsupported = "unsupported"
	outcomeUnreadable  = "unreadable"

	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate_hash"
	outcomeFlagged   = "flagged"
	outcomeUnbound   = "unbound"
)

func (m *Metrics) fileProcessed(bank, outcome string, seconds float64, errs int) {
	if m == nil {
		return
	}
	if bank == "" {
		bank = "unknown"
	}
	m.files.WithLabelValues(bank, outcome).Inc()
	m.fileDuration.WithLabelValues(bank).Observe(seconds)
	if errs > 0 {
		m.parseErrors.WithLabelValues(bank).Add(float64(errs))
	}
}

func (m *Metrics) transaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) periodCreated() {
	if m == nil {
		return
	}
	m.periodsCreated.Inc()
}
