package ingest

import (
	"context"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

// Store is the slice of the relational store the ingestion workflow consumes.
type Store interface {
	// FindVenuesByName returns every venue whose name matches exactly.
	FindVenuesByName(ctx context.Context, name string) ([]models.Venue, error)
	// CreateVenue inserts venue and fills in its ID. It reports false, without
	// error, when another writer already holds the name.
	CreateVenue(ctx context.Context, venue *models.Venue) (bool, error)
	// ListEventKeys returns the (date, title) pairs stored for a venue.
	ListEventKeys(ctx context.Context, venueID uuid.UUID) ([]models.EventKey, error)
	// InsertEvents writes events in one batch, skipping rows that conflict on
	// (venue_id, date, title), and returns the rows it wrote.
	InsertEvents(ctx context.Context, events []models.Event) ([]models.Event, error)
}

// TxFunc runs fn inside a transaction, passing a Store bound to it. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxFunc func(ctx context.Context, fn func(Store) error) error

// Transactional adapts a store's InTx method into a TxFunc.
func Transactional[S Store](inTx func(context.Context, func(S) error) error) TxFunc {
	return func(ctx context.Context, fn func(Store) error) error {
		return inTx(ctx, func(s S) error {
			return fn(s)
		})
	}
}
