package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/logging"
	"livehouse/internal/models"
)

// Batch is one venue and its candidate events.
type Batch struct {
	Venue         models.Venue   `json:"venue"`
	Events        []models.Event `json:"events"`
	ParseFailures []ParseFailure `json:"parse_failures,omitempty"`
}

// Report summarises one ingestion run. Created and CreatedKeys only count rows
// known to be committed.
type Report struct {
	RunID           string            `json:"run_id"`
	Venue           string            `json:"venue"`
	VenueID         uuid.UUID         `json:"venue_id"`
	VenueCreated    bool              `json:"venue_created"`
	Created         int               `json:"created"`
	Skipped         int               `json:"skipped"`
	SkippedExisting int               `json:"skipped_existing"`
	SkippedInBatch  int               `json:"skipped_in_batch"`
	Conflicts       []models.EventKey `json:"conflicts,omitempty"`
	ParseFailures   int               `json:"parse_failures"`
	CreatedKeys     []models.EventKey `json:"created_keys,omitempty"`
	Committed       bool              `json:"committed"`
}

// Observer is notified after every ingestion run.
type Observer interface {
	ObserveIngest(report Report, err error, elapsed time.Duration)
}

// Classifier infers a genre label for an event from its lead artist and title.
type Classifier func(artist, title string) string

// Option configures a Writer.
type Option func(*Writer)

// WithTx makes the writer run each batch inside a transaction.
func WithTx(tx TxFunc) Option {
	return func(w *Writer) { w.tx = tx }
}

// WithObserver registers an observer for completed runs.
func WithObserver(o Observer) Option {
	return func(w *Writer) { w.observer = o }
}

// WithClassifier records an inferred genre in each new event's raw data.
func WithClassifier(c Classifier) Option {
	return func(w *Writer) { w.classify = c }
}

// Writer persists a venue and the new part of its event batch.
type Writer struct {
	store    Store
	tx       TxFunc
	observer Observer
	classify Classifier
}

// NewWriter constructs a Writer over store.
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{store: store}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ingest resolves the batch's venue, filters its events against the store and
// writes the new ones. Without a transaction a failed run may leave the venue
// created; running it again is safe.
func (w *Writer) Ingest(ctx context.Context, batch Batch) (Report, error) {
	ctx, runID := logging.WithRunID(ctx)
	start := time.Now()
	logger := logging.WithContext(ctx)

	report := Report{
		RunID:         runID,
		Venue:         strings.TrimSpace(batch.Venue.Name),
		ParseFailures: len(batch.ParseFailures),
	}
	for _, f := range batch.ParseFailures {
		logger.Warn().Err(f.Err(report.Venue)).Int("index", f.Index).Msg("record skipped")
	}

	var err error
	if w.tx != nil {
		err = w.tx(ctx, func(s Store) error {
			var runErr error
			report, runErr = w.run(ctx, s, batch, report)
			return runErr
		})
		if err != nil {
			var ingestErr *Error
			if !errors.As(err, &ingestErr) {
				err = unavailable("commit", report.Venue, err)
			}
			if report.VenueCreated {
				report.VenueID = uuid.Nil
			}
			report.VenueCreated = false
			report.Created = 0
			report.CreatedKeys = nil
			report.Committed = false
		} else {
			report.Committed = true
		}
	} else {
		report, err = w.run(ctx, w.store, batch, report)
		report.Committed = err == nil
	}

	if w.observer != nil {
		w.observer.ObserveIngest(report, err, time.Since(start))
	}

	if err != nil {
		logger.Error().Err(err).
			Str("venue", report.Venue).
			Bool("venue_created", report.VenueCreated).
			Int("created", report.Created).
			Msg("ingest aborted")
		return report, err
	}

	logger.Info().
		Str("venue", report.Venue).
		Str("venue_id", report.VenueID.String()).
		Bool("venue_created", report.VenueCreated).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("parse_failures", report.ParseFailures).
		Dur("elapsed", time.Since(start)).
		Msg("ingest complete")
	return report, nil
}

// IngestAll ingests batches in order and stops at the first failure.
func (w *Writer) IngestAll(ctx context.Context, batches []Batch) ([]Report, error) {
	reports := make([]Report, 0, len(batches))
	for _, b := range batches {
		report, err := w.Ingest(ctx, b)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (w *Writer) run(ctx context.Context, s Store, batch Batch, report Report) (Report, error) {
	logger := logging.WithContext(ctx)

	venue, created, err := NewResolver(s).Resolve(ctx, batch.Venue)
	if err != nil {
		return report, err
	}
	report.VenueID = venue.ID
	report.VenueCreated = created

	candidates := make([]models.Event, len(batch.Events))
	for i, e := range batch.Events {
		e.Title = strings.TrimSpace(e.Title)
		candidates[i] = e
	}

	fresh, err := NewDeduplicator(s).FilterNew(ctx, venue.ID, candidates)
	if err != nil {
		var ingestErr *Error
		if errors.As(err, &ingestErr) {
			ingestErr.Venue = venue.Name
		}
		return report, err
	}
	report.SkippedExisting = len(batch.Events) - len(fresh)

	unique, dupes := CollapseBatch(fresh)
	report.SkippedInBatch = len(dupes)
	for _, d := range dupes {
		logger.Debug().Str("venue", venue.Name).Stringer("event", d.Key()).Msg("duplicate candidate in batch")
	}

	if len(unique) == 0 {
		report.Skipped = report.SkippedExisting + report.SkippedInBatch
		return report, nil
	}

	rows := make([]models.Event, len(unique))
	for i, e := range unique {
		rows[i] = w.prepare(venue, e)
	}

	inserted, err := s.InsertEvents(ctx, rows)
	written := make(map[models.EventKey]struct{}, len(inserted))
	for _, e := range inserted {
		written[e.Key()] = struct{}{}
		report.CreatedKeys = append(report.CreatedKeys, e.Key())
	}
	report.Created = len(inserted)
	if err != nil {
		// Rows returned before the failure are already written unless a
		// surrounding transaction rolls them back.
		return report, unavailable("insert events", venue.Name, err)
	}

	for _, e := range rows {
		k := e.Key()
		if _, ok := written[k]; ok {
			continue
		}
		report.Conflicts = append(report.Conflicts, k)
		logger.Warn().
			Err(&Error{Op: "insert event", Venue: venue.Name, Key: &k, Kind: ErrConstraintConflict}).
			Msg("event written concurrently, counted as skipped")
	}

	report.Skipped = report.SkippedExisting + report.SkippedInBatch + len(report.Conflicts)
	return report, nil
}

// prepare fills in the write-time defaults of a new event.
func (w *Writer) prepare(venue models.Venue, e models.Event) models.Event {
	e.VenueID = venue.ID
	if e.Status == "" {
		e.Status = models.StatusActive
	}
	if e.SourceURL == "" {
		if venue.ScheduleURL != nil {
			e.SourceURL = *venue.ScheduleURL
		} else {
			e.SourceURL = venue.OfficialURL
		}
	}
	if e.Artists == nil {
		e.Artists = []string{}
	}
	if e.TicketInfo == nil {
		e.TicketInfo = map[string]any{}
	}

	raw := make(map[string]any, len(e.RawData)+1)
	for k, v := range e.RawData {
		raw[k] = v
	}
	if w.classify != nil {
		if _, ok := raw["inferred_genre"]; !ok {
			artist := ""
			if len(e.Artists) > 0 {
				artist = e.Artists[0]
			}
			raw["inferred_genre"] = w.classify(artist, e.Title)
		}
	}
	e.RawData = raw
	return e
}
