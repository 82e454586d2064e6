package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"livehouse/internal/app/ingest"
	"livehouse/internal/models"
)

func TestObserveIngest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngest(ingest.Report{
		Venue:           "Crawfish",
		VenueCreated:    true,
		Created:         18,
		SkippedExisting: 2,
		SkippedInBatch:  1,
		Conflicts:       []models.EventKey{{Date: "2025-06-19", Title: "辺見トリオ"}},
		ParseFailures:   3,
	}, nil, 150*time.Millisecond)
	m.ObserveIngest(ingest.Report{Venue: "Crawfish"}, &ingest.Error{Op: "find venue", Kind: ingest.ErrStoreUnavailable, Err: errors.New("timeout")}, time.Second)

	if got := testutil.ToFloat64(m.eventsCreated.WithLabelValues("Crawfish")); got != 18 {
		t.Fatalf("events created = %v, want 18", got)
	}
	if got := testutil.ToFloat64(m.eventsSkipped.WithLabelValues("Crawfish", "existing")); got != 2 {
		t.Fatalf("skipped existing = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.eventsSkipped.WithLabelValues("Crawfish", "conflict")); got != 1 {
		t.Fatalf("skipped conflict = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.venuesCreated); got != 1 {
		t.Fatalf("venues created = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("store_unavailable")); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.parseFailures.WithLabelValues("Crawfish")); got != 3 {
		t.Fatalf("parse failures = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveIngest(ingest.Report{Venue: "LIQUIDROOM", Created: 2}, nil, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `livehouse_events_created_total{venue="LIQUIDROOM"} 2`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
