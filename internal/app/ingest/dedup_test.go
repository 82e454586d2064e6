package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

func TestFilterNewPartialBatch(t *testing.T) {
	venueID := uuid.New()
	a := event("2025-06-01", "A")
	b := event("2025-06-02", "B")
	c := event("2025-06-03", "C")
	d := event("2025-06-03", "C")

	a.VenueID, b.VenueID = venueID, venueID
	store := &fakeStore{events: []models.Event{a, b}}

	got, err := NewDeduplicator(store).FilterNew(context.Background(), venueID, []models.Event{a, c, d})
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if titles(got) != "C,C" {
		t.Fatalf("expected [C C], got [%s]", titles(got))
	}
	if store.listCalls != 1 {
		t.Fatalf("expected a single bulk fetch, got %d", store.listCalls)
	}
}

func TestFilterNewPreservesOrder(t *testing.T) {
	venueID := uuid.New()
	existing := event("2025-07-03", "The Beatles Night")
	existing.VenueID = venueID
	store := &fakeStore{events: []models.Event{existing}}

	candidates := []models.Event{
		event("2025-07-25", "MiMi Live"),
		event("2025-06-19", "辺見トリオ"),
		event("2025-07-03", "The Beatles Night"),
		event("2025-07-24", "辺見トリオ"),
		event("2025-06-18", "Paul McCartney Birthday Event"),
	}

	got, err := NewDeduplicator(store).FilterNew(context.Background(), venueID, candidates)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	want := "MiMi Live,辺見トリオ,辺見トリオ,Paul McCartney Birthday Event"
	if titles(got) != want {
		t.Fatalf("got [%s], want [%s]", titles(got), want)
	}
}

func TestFilterNewIgnoresOtherVenues(t *testing.T) {
	other := event("2025-06-01", "A")
	other.VenueID = uuid.New()
	store := &fakeStore{events: []models.Event{other}}

	got, err := NewDeduplicator(store).FilterNew(context.Background(), uuid.New(), []models.Event{event("2025-06-01", "A")})
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected candidate to be new for this venue, got %d", len(got))
	}
}

func TestFilterNewErrors(t *testing.T) {
	_, err := NewDeduplicator(&fakeStore{listErr: errTransport}).FilterNew(context.Background(), uuid.New(), []models.Event{event("2025-06-01", "A")})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	store := &fakeStore{}
	_, err = NewDeduplicator(store).FilterNew(context.Background(), uuid.New(), []models.Event{{Title: "no date"}})
	if !errors.Is(err, ErrInvalidCandidate) {
		t.Fatalf("expected ErrInvalidCandidate, got %v", err)
	}
	if store.listCalls != 0 {
		t.Fatal("invalid candidates must be rejected before querying the store")
	}
}

func TestCollapseBatch(t *testing.T) {
	unique, dupes := CollapseBatch([]models.Event{
		event("2025-06-01", "A"),
		event("2025-06-02", "A"),
		event("2025-06-01", "A"),
		event("2025-06-01", "B"),
	})
	if titles(unique) != "A,A,B" {
		t.Fatalf("unexpected unique [%s]", titles(unique))
	}
	if len(dupes) != 1 || dupes[0].Key() != (models.EventKey{Date: "2025-06-01", Title: "A"}) {
		t.Fatalf("unexpected dupes %v", dupes)
	}
}
