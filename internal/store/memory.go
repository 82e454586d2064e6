package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

// Memory is an in-memory store with the same operations and uniqueness
// constraints as Store. It backs dry runs and tests.
type Memory struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	// txMu serialises transactions; mu guards the rows.
	txMu   sync.Mutex
	mu     sync.RWMutex
	venues []models.Venue
	events []models.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: &memoryState{}}
}

// InTx runs fn against the store and restores the previous rows when fn fails.
// Writes made outside the transaction while it runs are discarded by a rollback.
func (m *Memory) InTx(_ context.Context, fn func(*Memory) error) error {
	if m.inTx {
		return fn(m)
	}

	m.state.txMu.Lock()
	defer m.state.txMu.Unlock()

	m.state.mu.RLock()
	venues := append([]models.Venue(nil), m.state.venues...)
	events := append([]models.Event(nil), m.state.events...)
	m.state.mu.RUnlock()

	if err := fn(&Memory{state: m.state, inTx: true}); err != nil {
		m.state.mu.Lock()
		m.state.venues = venues
		m.state.events = events
		m.state.mu.Unlock()
		return err
	}
	return nil
}

// EnsureSchema always succeeds.
func (m *Memory) EnsureSchema(context.Context) error { return nil }

// FindVenuesByName returns every venue whose name matches exactly.
func (m *Memory) FindVenuesByName(_ context.Context, name string) ([]models.Venue, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Venue
	for _, v := range m.state.venues {
		if v.Name == name {
			out = append(out, cloneVenue(v))
		}
	}
	return out, nil
}

// ListVenues returns all venues ordered by name.
func (m *Memory) ListVenues(_ context.Context) ([]models.Venue, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	out := make([]models.Venue, 0, len(m.state.venues))
	for _, v := range m.state.venues {
		out = append(out, cloneVenue(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetVenue retrieves a single venue by ID.
func (m *Memory) GetVenue(_ context.Context, id uuid.UUID) (models.Venue, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	i := m.venueIndex(id)
	if i < 0 {
		return models.Venue{}, ErrVenueNotFound
	}
	return cloneVenue(m.state.venues[i]), nil
}

// CreateVenue inserts venue unless the name is taken.
func (m *Memory) CreateVenue(_ context.Context, venue *models.Venue) (bool, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	for _, v := range m.state.venues {
		if v.Name == venue.Name {
			return false, nil
		}
	}

	now := time.Now().UTC()
	venue.ID = uuid.New()
	venue.CreatedAt = now
	venue.UpdatedAt = now
	if venue.Metadata == nil {
		venue.Metadata = map[string]any{}
	}
	m.state.venues = append(m.state.venues, cloneVenue(*venue))
	return true, nil
}

// PatchVenueMetadata merges patch into the venue's metadata.
func (m *Memory) PatchVenueMetadata(_ context.Context, id uuid.UUID, patch map[string]any) (models.Venue, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	i := m.venueIndex(id)
	if i < 0 {
		return models.Venue{}, ErrVenueNotFound
	}
	v := cloneVenue(m.state.venues[i])
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	for k, val := range patch {
		v.Metadata[k] = val
	}
	v.UpdatedAt = time.Now().UTC()
	m.state.venues[i] = v
	return cloneVenue(v), nil
}

// UpdateScheduleSource records where and when the venue's schedule was last fetched.
func (m *Memory) UpdateScheduleSource(_ context.Context, id uuid.UUID, scheduleURL string, fetchedAt time.Time) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	i := m.venueIndex(id)
	if i < 0 {
		return ErrVenueNotFound
	}
	v := &m.state.venues[i]
	v.ScheduleURL = &scheduleURL
	v.LastScheduleFetch = &fetchedAt
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// ListEventKeys returns the (date, title) pairs stored for a venue.
func (m *Memory) ListEventKeys(_ context.Context, venueID uuid.UUID) ([]models.EventKey, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var keys []models.EventKey
	for _, e := range m.state.events {
		if e.VenueID == venueID {
			keys = append(keys, e.Key())
		}
	}
	return keys, nil
}

// InsertEvents writes events, skipping rows whose (venue_id, date, title)
// already exists, and returns the rows it wrote.
func (m *Memory) InsertEvents(_ context.Context, events []models.Event) ([]models.Event, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	existing := make(map[eventKey]struct{}, len(m.state.events))
	for _, e := range m.state.events {
		existing[eventKey{venueID: e.VenueID, key: e.Key()}] = struct{}{}
	}

	var inserted []models.Event
	now := time.Now().UTC()
	for _, e := range events {
		k := eventKey{venueID: e.VenueID, key: e.Key()}
		if _, ok := existing[k]; ok {
			continue
		}
		existing[k] = struct{}{}
		e.ID = uuid.New()
		e.CreatedAt = now
		m.state.events = append(m.state.events, cloneEvent(e))
		inserted = append(inserted, e)
	}
	return inserted, nil
}

// ListEvents returns the events matching filter ordered by date, start time
// and title.
func (m *Memory) ListEvents(_ context.Context, filter models.EventFilter) ([]models.Event, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Event
	for _, e := range m.state.events {
		if filter.VenueID != uuid.Nil && e.VenueID != filter.VenueID {
			continue
		}
		if filter.From != nil && e.Date.Before(truncateDay(*filter.From)) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if as, bs := clockOrMax(a.StartTime), clockOrMax(b.StartTime); as != bs {
			return as < bs
		}
		return a.Title < b.Title
	})
	return out, nil
}

func (m *Memory) venueIndex(id uuid.UUID) int {
	for i, v := range m.state.venues {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// clockOrMax sorts events without a start time last.
func clockOrMax(s *string) string {
	if s == nil {
		return "~"
	}
	return *s
}

func cloneVenue(v models.Venue) models.Venue {
	v.Metadata = cloneMap(v.Metadata)
	if v.Capacity != nil {
		c := *v.Capacity
		v.Capacity = &c
	}
	if v.ScheduleURL != nil {
		u := *v.ScheduleURL
		v.ScheduleURL = &u
	}
	if v.LastScheduleFetch != nil {
		t := *v.LastScheduleFetch
		v.LastScheduleFetch = &t
	}
	return v
}

func cloneEvent(e models.Event) models.Event {
	if e.Artists != nil {
		e.Artists = append([]string{}, e.Artists...)
	}
	e.TicketInfo = cloneMap(e.TicketInfo)
	e.RawData = cloneMap(e.RawData)
	return e
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
