package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

type fakeStore struct {
	venues []models.Venue
	events []models.Event

	findCalls   int
	createCalls int
	listCalls   int
	insertCalls int

	findErr   error
	createErr error
	listErr   error
	insertErr error
	// insertBeforeErr is how many rows InsertEvents writes before returning insertErr.
	insertBeforeErr int

	// beforeInsert runs ahead of each InsertEvents, e.g. to simulate a racing writer.
	beforeInsert func(f *fakeStore)
	// beforeCreate runs ahead of each CreateVenue.
	beforeCreate func(f *fakeStore)
}

func (f *fakeStore) FindVenuesByName(_ context.Context, name string) ([]models.Venue, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Venue
	for _, v := range f.venues {
		if v.Name == name {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateVenue(_ context.Context, venue *models.Venue) (bool, error) {
	f.createCalls++
	if f.beforeCreate != nil {
		f.beforeCreate(f)
	}
	if f.createErr != nil {
		return false, f.createErr
	}
	for _, v := range f.venues {
		if v.Name == venue.Name {
			return false, nil
		}
	}
	venue.ID = uuid.New()
	f.venues = append(f.venues, *venue)
	return true, nil
}

func (f *fakeStore) ListEventKeys(_ context.Context, venueID uuid.UUID) ([]models.EventKey, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []models.EventKey
	for _, e := range f.events {
		if e.VenueID == venueID {
			keys = append(keys, e.Key())
		}
	}
	return keys, nil
}

func (f *fakeStore) InsertEvents(_ context.Context, events []models.Event) ([]models.Event, error) {
	f.insertCalls++
	if f.beforeInsert != nil {
		f.beforeInsert(f)
	}
	if f.insertErr != nil && f.insertBeforeErr == 0 {
		return nil, f.insertErr
	}
	var inserted []models.Event
	for _, e := range events {
		if f.insertErr != nil && len(inserted) == f.insertBeforeErr {
			return inserted, f.insertErr
		}
		if f.has(e.VenueID, e.Key()) {
			continue
		}
		e.ID = uuid.New()
		f.events = append(f.events, e)
		inserted = append(inserted, e)
	}
	return inserted, nil
}

func (f *fakeStore) has(venueID uuid.UUID, key models.EventKey) bool {
	for _, e := range f.events {
		if e.VenueID == venueID && e.Key() == key {
			return true
		}
	}
	return false
}

// InTx snapshots the rows and restores them when fn fails.
func (f *fakeStore) InTx(_ context.Context, fn func(*fakeStore) error) error {
	venues := append([]models.Venue(nil), f.venues...)
	events := append([]models.Event(nil), f.events...)
	if err := fn(f); err != nil {
		f.venues = venues
		f.events = events
		return err
	}
	return nil
}

func (f *fakeStore) eventsFor(venueID uuid.UUID) []models.Event {
	var out []models.Event
	for _, e := range f.events {
		if e.VenueID == venueID {
			out = append(out, e)
		}
	}
	return out
}

var errTransport = errors.New("dial tcp: connection refused")

func mustDate(s string) models.Event {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return models.Event{Date: d}
}

func event(date, title string) models.Event {
	e := mustDate(date)
	e.Title = title
	return e
}

func titles(events []models.Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.Title
	}
	return strings.Join(parts, ",")
}

func crawfishEvents() []models.Event {
	dates := []string{
		"2025-06-18", "2025-06-19", "2025-06-20", "2025-06-21", "2025-06-22",
		"2025-06-25", "2025-06-26", "2025-06-28", "2025-06-30", "2025-07-01",
		"2025-07-03", "2025-07-06", "2025-07-11", "2025-07-13", "2025-07-16",
		"2025-07-20", "2025-07-21", "2025-07-22", "2025-07-24", "2025-07-25",
	}
	events := make([]models.Event, len(dates))
	for i, d := range dates {
		events[i] = event(d, fmt.Sprintf("Crawfish session %02d", i+1))
	}
	return events
}
