package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"livehouse/internal/logging"
	"livehouse/internal/models"
)

// Resolver finds or creates venues by name.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveVenue returns the ID of the venue named like candidate, creating it
// from candidate when absent.
func (r *Resolver) ResolveVenue(ctx context.Context, candidate models.Venue) (uuid.UUID, error) {
	venue, _, err := r.Resolve(ctx, candidate)
	if err != nil {
		return uuid.Nil, err
	}
	return venue.ID, nil
}

// Resolve is ResolveVenue that also returns the stored venue and whether this
// call created it. Existing venues are returned untouched.
func (r *Resolver) Resolve(ctx context.Context, candidate models.Venue) (models.Venue, bool, error) {
	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		return models.Venue{}, false, &Error{Op: "resolve venue", Kind: ErrInvalidCandidate, Err: errors.New("name is required")}
	}
	candidate.Name = name

	existing, found, err := r.lookup(ctx, name)
	if err != nil || found {
		return existing, false, err
	}

	created, err := r.store.CreateVenue(ctx, &candidate)
	if err != nil {
		return models.Venue{}, false, unavailable("create venue", name, err)
	}
	if created {
		logging.WithContext(ctx).Info().
			Str("venue", name).
			Str("venue_id", candidate.ID.String()).
			Msg("venue created")
		return candidate, true, nil
	}

	// Another writer created the venue between lookup and insert.
	existing, found, err = r.lookup(ctx, name)
	if err != nil {
		return models.Venue{}, false, err
	}
	if !found {
		return models.Venue{}, false, &Error{
			Op:    "create venue",
			Venue: name,
			Kind:  ErrConstraintConflict,
			Err:   errors.New("conflicting venue is not visible"),
		}
	}
	logging.WithContext(ctx).Debug().Str("venue", name).Msg("venue created concurrently")
	return existing, false, nil
}

func (r *Resolver) lookup(ctx context.Context, name string) (models.Venue, bool, error) {
	venues, err := r.store.FindVenuesByName(ctx, name)
	if err != nil {
		return models.Venue{}, false, unavailable("find venue", name, err)
	}
	switch len(venues) {
	case 0:
		return models.Venue{}, false, nil
	case 1:
		return venues[0], true, nil
	default:
		return models.Venue{}, false, &Error{
			Op:    "find venue",
			Venue: name,
			Kind:  ErrNotUnique,
			Err:   fmt.Errorf("%d venues share the name", len(venues)),
		}
	}
}
