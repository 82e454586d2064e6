package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

func newTxWriter(store *fakeStore, opts ...Option) *Writer {
	opts = append([]Option{WithTx(Transactional(store.InTx))}, opts...)
	return NewWriter(store, opts...)
}

func TestIngestCrawfishScenario(t *testing.T) {
	store := &fakeStore{}
	w := newTxWriter(store)
	batch := Batch{Venue: models.Venue{Name: "Crawfish"}, Events: crawfishEvents()}

	first, err := w.Ingest(context.Background(), batch)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !first.VenueCreated || first.Created != 20 || first.Skipped != 0 || !first.Committed {
		t.Fatalf("unexpected first report %+v", first)
	}
	if len(store.venues) != 1 || len(store.events) != 20 {
		t.Fatalf("expected 1 venue and 20 events, got %d and %d", len(store.venues), len(store.events))
	}

	second, err := w.Ingest(context.Background(), batch)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.VenueCreated || second.Created != 0 || second.Skipped != 20 || second.SkippedExisting != 20 {
		t.Fatalf("unexpected second report %+v", second)
	}
	if second.VenueID != first.VenueID {
		t.Fatal("expected the same venue on the second run")
	}
	if store.insertCalls != 1 {
		t.Fatalf("expected no write on the second run, got %d inserts", store.insertCalls)
	}
}

func TestIngestPartialExisting(t *testing.T) {
	venueID := uuid.New()
	stored := []models.Event{event("2025-06-18", "A"), event("2025-06-19", "B")}
	for i := range stored {
		stored[i].VenueID = venueID
	}
	store := &fakeStore{
		venues: []models.Venue{{ID: venueID, Name: "LIQUIDROOM"}},
		events: stored,
	}

	report, err := newTxWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "LIQUIDROOM"},
		Events: []models.Event{event("2025-06-19", "B"), event("2025-06-20", "C"), event("2025-06-21", "D")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Created != 2 || report.Skipped != 1 || report.VenueCreated {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []models.EventKey{{Date: "2025-06-20", Title: "C"}, {Date: "2025-06-21", Title: "D"}}
	if len(report.CreatedKeys) != 2 || report.CreatedKeys[0] != want[0] || report.CreatedKeys[1] != want[1] {
		t.Fatalf("unexpected created keys %v", report.CreatedKeys)
	}
}

func TestIngestNeverWritesDuplicateKeys(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(store)
	ctx := context.Background()

	batches := [][]models.Event{
		{event("2025-06-01", "A"), event("2025-06-01", "A"), event("2025-06-02", "B")},
		{event("2025-06-02", "B"), event("2025-06-03", "C"), event("2025-06-03", " C ")},
		{event("2025-06-01", "A"), event("2025-06-03", "C")},
	}
	for _, events := range batches {
		if _, err := w.Ingest(ctx, Batch{Venue: models.Venue{Name: "下北沢SHELTER"}, Events: events}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	seen := map[models.EventKey]bool{}
	for _, e := range store.events {
		if seen[e.Key()] {
			t.Fatalf("duplicate key %v written", e.Key())
		}
		seen[e.Key()] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct events, got %d", len(seen))
	}
}

func TestIngestWithinBatchDuplicatesCounted(t *testing.T) {
	store := &fakeStore{}
	report, err := NewWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "Crawfish"},
		Events: []models.Event{event("2025-06-19", "辺見トリオ"), event("2025-06-19", "辺見トリオ")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Created != 1 || report.SkippedInBatch != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestIngestEmptyBatchDoesNotWrite(t *testing.T) {
	store := &fakeStore{}
	report, err := NewWriter(store).Ingest(context.Background(), Batch{Venue: models.Venue{Name: "Crawfish"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Created != 0 || store.insertCalls != 0 {
		t.Fatalf("expected no write, got report %+v and %d inserts", report, store.insertCalls)
	}
	if !report.VenueCreated {
		t.Fatal("expected the venue to be created")
	}
}

func TestIngestConflictCountedAsSkipped(t *testing.T) {
	store := &fakeStore{}
	store.beforeInsert = func(f *fakeStore) {
		racing := event("2025-06-20", "Steve Bernstein")
		racing.VenueID = f.venues[0].ID
		f.events = append(f.events, racing)
	}

	report, err := newTxWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "Crawfish"},
		Events: []models.Event{event("2025-06-19", "辺見トリオ"), event("2025-06-20", "Steve Bernstein")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Created != 1 || report.Skipped != 1 || len(report.Conflicts) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Conflicts[0].Title != "Steve Bernstein" {
		t.Fatalf("unexpected conflict %v", report.Conflicts[0])
	}
}

func TestIngestRollsBackVenueOnFailure(t *testing.T) {
	store := &fakeStore{insertErr: errTransport}

	report, err := newTxWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "Twinbox AKIHABARA"},
		Events: []models.Event{event("2025-06-01", "A")},
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	var ingestErr *Error
	if !errors.As(err, &ingestErr) || ingestErr.Venue != "Twinbox AKIHABARA" {
		t.Fatalf("expected venue context in error, got %v", err)
	}
	if len(store.venues) != 0 {
		t.Fatal("expected venue creation to be rolled back")
	}
	if report.Committed || report.VenueCreated || report.Created != 0 {
		t.Fatalf("expected nothing reported as committed, got %+v", report)
	}
	if report.VenueID != uuid.Nil {
		t.Fatalf("expected rolled back venue id to be cleared, got %s", report.VenueID)
	}
}

func TestIngestWithoutTxReportsRowsWrittenBeforeFailure(t *testing.T) {
	store := &fakeStore{insertErr: errTransport, insertBeforeErr: 1}

	report, err := NewWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "Crawfish"},
		Events: []models.Event{event("2025-06-01", "A"), event("2025-06-02", "B")},
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if report.Committed {
		t.Fatal("expected the run not to be marked committed")
	}
	if report.Created != 1 || len(report.CreatedKeys) != 1 || report.CreatedKeys[0] != (models.EventKey{Date: "2025-06-01", Title: "A"}) {
		t.Fatalf("expected the written row in the report, got %+v", report)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(store.events))
	}
}

func TestIngestWithTxDropsPartialRowsOnFailure(t *testing.T) {
	store := &fakeStore{insertErr: errTransport, insertBeforeErr: 1}

	report, err := newTxWriter(store).Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "Crawfish"},
		Events: []models.Event{event("2025-06-01", "A"), event("2025-06-02", "B")},
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if report.Created != 0 || len(report.CreatedKeys) != 0 || len(store.events) != 0 {
		t.Fatalf("expected rollback to discard written rows, got %+v", report)
	}
}

func TestIngestWithoutTxIsRetrySafe(t *testing.T) {
	store := &fakeStore{insertErr: errTransport}
	w := NewWriter(store)
	batch := Batch{Venue: models.Venue{Name: "Twinbox AKIHABARA"}, Events: []models.Event{event("2025-06-01", "A")}}

	report, err := w.Ingest(context.Background(), batch)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !report.VenueCreated || report.Created != 0 || report.Committed {
		t.Fatalf("expected a created venue and no events, got %+v", report)
	}

	store.insertErr = nil
	report, err = w.Ingest(context.Background(), batch)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if report.VenueCreated || report.Created != 1 || len(store.venues) != 1 {
		t.Fatalf("unexpected retry report %+v", report)
	}
}

func TestIngestAppliesDefaults(t *testing.T) {
	schedule := "https://www.loft-prj.co.jp/schedule/shelter"
	store := &fakeStore{}
	w := NewWriter(store, WithClassifier(func(artist, title string) string {
		if artist == "SCOOBIE DO" {
			return "rock"
		}
		return "other"
	}))

	e := event("2025-06-08", " KOGA RECORDS 30th Anniversary ")
	e.Artists = []string{"SCOOBIE DO"}
	e.RawData = map[string]any{"date_text": "2025 06 08"}

	_, err := w.Ingest(context.Background(), Batch{
		Venue:  models.Venue{Name: "下北沢SHELTER", ScheduleURL: &schedule},
		Events: []models.Event{e, event("2025-06-09", "no artists")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got := store.events[0]
	if got.Title != "KOGA RECORDS 30th Anniversary" {
		t.Fatalf("expected trimmed title, got %q", got.Title)
	}
	if got.Status != models.StatusActive || got.SourceURL != schedule {
		t.Fatalf("unexpected defaults status=%q source=%q", got.Status, got.SourceURL)
	}
	if got.RawData["inferred_genre"] != "rock" || got.RawData["date_text"] != "2025 06 08" {
		t.Fatalf("unexpected raw data %v", got.RawData)
	}
	if e.RawData["inferred_genre"] != nil {
		t.Fatal("caller's raw data must not be mutated")
	}
	if store.events[1].Artists == nil || store.events[1].TicketInfo == nil {
		t.Fatal("expected empty artists and ticket info instead of nil")
	}
}

type recordingObserver struct {
	reports []Report
	errs    []error
}

func (o *recordingObserver) ObserveIngest(report Report, err error, _ time.Duration) {
	o.reports = append(o.reports, report)
	o.errs = append(o.errs, err)
}

func TestIngestAllStopsAtFirstFailure(t *testing.T) {
	dup := uuid.New()
	store := &fakeStore{venues: []models.Venue{{ID: dup, Name: "Dup"}, {ID: uuid.New(), Name: "Dup"}}}
	obs := &recordingObserver{}
	w := NewWriter(store, WithObserver(obs))

	reports, err := w.IngestAll(context.Background(), []Batch{
		{Venue: models.Venue{Name: "Crawfish"}, Events: []models.Event{event("2025-06-01", "A")}},
		{Venue: models.Venue{Name: "Dup"}, Events: []models.Event{event("2025-06-01", "A")}},
		{Venue: models.Venue{Name: "Never"}},
	})
	if !errors.Is(err, ErrNotUnique) {
		t.Fatalf("expected ErrNotUnique, got %v", err)
	}
	if len(reports) != 2 || reports[0].Created != 1 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if len(obs.reports) != 2 || obs.errs[0] != nil || obs.errs[1] == nil {
		t.Fatalf("unexpected observations %+v", obs)
	}
	if reports[0].RunID == "" {
		t.Fatal("expected a run id in the report")
	}
}

func TestIngestCountsParseFailures(t *testing.T) {
	report, err := NewWriter(&fakeStore{}).Ingest(context.Background(), Batch{
		Venue:         models.Venue{Name: "Crawfish"},
		Events:        []models.Event{event("2025-06-01", "A")},
		ParseFailures: []ParseFailure{{Index: 3, Reason: "missing date"}},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.ParseFailures != 1 || report.Created != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestErrorMessageAndKind(t *testing.T) {
	key := models.EventKey{Date: "2025-06-01", Title: "A"}
	err := &Error{Op: "insert event", Venue: "Crawfish", Key: &key, Kind: ErrConstraintConflict}

	want := `insert event venue "Crawfish" event "2025-06-01 A": natural key conflict`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if KindName(err) != "constraint_conflict" || KindName(errors.New("x")) != "unknown" {
		t.Fatal("unexpected kind names")
	}
	if !errors.Is(ParseFailure{Index: 1, Reason: "bad"}.Err("Crawfish"), ErrParseFailure) {
		t.Fatal("expected parse failure kind")
	}
}
