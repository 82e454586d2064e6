package venues

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/models"
	"livehouse/internal/store"
)

// ErrAmbiguousName is returned when a name lookup matches several venues.
var ErrAmbiguousName = errors.New("venue name matches more than one venue")

// Store defines persistence operations for venues
type Store interface {
	ListVenues(ctx context.Context) ([]models.Venue, error)
	GetVenue(ctx context.Context, id uuid.UUID) (models.Venue, error)
	FindVenuesByName(ctx context.Context, name string) ([]models.Venue, error)
	PatchVenueMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) (models.Venue, error)
	UpdateScheduleSource(ctx context.Context, id uuid.UUID, scheduleURL string, fetchedAt time.Time) error
}

// Service coordinates venue-related operations
type Service interface {
	List(ctx context.Context) ([]models.Venue, error)
	Get(ctx context.Context, id uuid.UUID) (models.Venue, error)
	FindByName(ctx context.Context, name string) (models.Venue, error)
	// ApplyDefaultGenres sets metadata.genre for each named venue. It returns
	// the names it updated and the names with no matching venue.
	ApplyDefaultGenres(ctx context.Context, defaults map[string][]string) (updated, missing []string, err error)
	RecordScheduleFetch(ctx context.Context, id uuid.UUID, scheduleURL string, at time.Time) error
}

type service struct {
	store Store
}

// New constructs a venues Service backed by the provided Store
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context) ([]models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListVenues(ctx)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return models.Venue{}, err
	}
	return s.store.GetVenue(ctx, id)
}

func (s *service) FindByName(ctx context.Context, name string) (models.Venue, error) {
	if err := ctx.Err(); err != nil {
		return models.Venue{}, err
	}
	name = strings.TrimSpace(name)
	venues, err := s.store.FindVenuesByName(ctx, name)
	if err != nil {
		return models.Venue{}, err
	}
	switch len(venues) {
	case 0:
		return models.Venue{}, fmt.Errorf("%q: %w", name, store.ErrVenueNotFound)
	case 1:
		return venues[0], nil
	default:
		return models.Venue{}, fmt.Errorf("%q: %w", name, ErrAmbiguousName)
	}
}

func (s *service) ApplyDefaultGenres(ctx context.Context, defaults map[string][]string) ([]string, []string, error) {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	var updated, missing []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return updated, missing, err
		}

		venue, err := s.FindByName(ctx, name)
		if errors.Is(err, store.ErrVenueNotFound) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return updated, missing, err
		}

		if _, err := s.store.PatchVenueMetadata(ctx, venue.ID, map[string]any{"genre": defaults[name]}); err != nil {
			return updated, missing, fmt.Errorf("set genres for %q: %w", name, err)
		}
		updated = append(updated, name)
	}
	return updated, missing, nil
}

func (s *service) RecordScheduleFetch(ctx context.Context, id uuid.UUID, scheduleURL string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.UpdateScheduleSource(ctx, id, scheduleURL, at.UTC())
}
