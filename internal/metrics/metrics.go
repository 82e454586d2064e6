package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livehouse/internal/app/ingest"
)

// Ingest records ingestion outcomes. It implements ingest.Observer.
type Ingest struct {
	eventsCreated *prometheus.CounterVec
	eventsSkipped *prometheus.CounterVec
	venuesCreated prometheus.Counter
	failures      *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	duration      prometheus.Summary
	lastSuccess   *prometheus.GaugeVec
}

// New creates the ingestion metrics and registers them with reg.
func New(reg prometheus.Registerer) *Ingest {
	m := &Ingest{}
	m.eventsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livehouse",
		Name:      "events_created_total",
		Help:      "Events written by ingestion",
	}, []string{"venue"})
	m.eventsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livehouse",
		Name:      "events_skipped_total",
		Help:      "Candidate events not written, by reason",
	}, []string{"venue", "reason"})
	m.venuesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livehouse",
		Name:      "venues_created_total",
		Help:      "Venues created by ingestion",
	})
	m.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livehouse",
		Name:      "ingest_failures_total",
		Help:      "Aborted ingestion runs by error kind",
	}, []string{"kind"})
	m.parseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livehouse",
		Name:      "parse_failures_total",
		Help:      "Source records skipped because they could not be parsed",
	}, []string{"venue"})
	m.duration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "livehouse",
		Name:      "ingest_duration_seconds",
		Help:      "Time spent ingesting one venue batch",
	})
	m.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livehouse",
		Name:      "ingest_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last committed ingestion per venue",
	}, []string{"venue"})

	reg.MustRegister(
		m.eventsCreated, m.eventsSkipped, m.venuesCreated,
		m.failures, m.parseFailures, m.duration, m.lastSuccess,
	)
	return m
}

// ObserveIngest implements ingest.Observer.
func (m *Ingest) ObserveIngest(report ingest.Report, err error, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	if report.ParseFailures > 0 {
		m.parseFailures.WithLabelValues(report.Venue).Add(float64(report.ParseFailures))
	}
	if err != nil {
		m.failures.WithLabelValues(ingest.KindName(err)).Inc()
		return
	}

	if report.VenueCreated {
		m.venuesCreated.Inc()
	}
	m.eventsCreated.WithLabelValues(report.Venue).Add(float64(report.Created))
	m.eventsSkipped.WithLabelValues(report.Venue, "existing").Add(float64(report.SkippedExisting))
	m.eventsSkipped.WithLabelValues(report.Venue, "in_batch").Add(float64(report.SkippedInBatch))
	m.eventsSkipped.WithLabelValues(report.Venue, "conflict").Add(float64(len(report.Conflicts)))
	m.lastSuccess.WithLabelValues(report.Venue).Set(float64(time.Now().Unix()))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
