package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

// Store defines persistence operations for events
type Store interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// Service coordinates event listings
type Service interface {
	// ListByVenue returns a venue's events, optionally from a date onwards.
	ListByVenue(ctx context.Context, venueID uuid.UUID, from *time.Time) ([]models.Event, error)
	// Upcoming returns a venue's active events on or after today.
	Upcoming(ctx context.Context, venueID uuid.UUID, today time.Time) ([]models.Event, error)
}

type service struct {
	store Store
}

// New constructs an events Service
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) ListByVenue(ctx context.Context, venueID uuid.UUID, from *time.Time) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, models.EventFilter{VenueID: venueID, From: from})
}

func (s *service) Upcoming(ctx context.Context, venueID uuid.UUID, today time.Time) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return s.store.ListEvents(ctx, models.EventFilter{
		VenueID: venueID,
		From:    &day,
		Status:  models.StatusActive,
	})
}
