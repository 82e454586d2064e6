package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

// Deduplicator filters candidate events against those already stored.
type Deduplicator struct {
	store Store
}

// NewDeduplicator constructs a Deduplicator over store.
func NewDeduplicator(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// FilterNew returns the candidates whose (date, title) is not yet stored for
// venueID, in input order. Existing keys are fetched in a single query.
// Candidates repeating each other are all returned; see CollapseBatch.
func (d *Deduplicator) FilterNew(ctx context.Context, venueID uuid.UUID, candidates []models.Event) ([]models.Event, error) {
	for i, c := range candidates {
		if err := validateCandidate(c); err != nil {
			return nil, &Error{
				Op:   fmt.Sprintf("filter candidate %d", i),
				Kind: ErrInvalidCandidate,
				Err:  err,
			}
		}
	}

	keys, err := d.store.ListEventKeys(ctx, venueID)
	if err != nil {
		return nil, unavailable("list events", venueID.String(), err)
	}

	existing := make(map[models.EventKey]struct{}, len(keys))
	for _, k := range keys {
		existing[k] = struct{}{}
	}

	fresh := make([]models.Event, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := existing[c.Key()]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, nil
}

// CollapseBatch keeps the first event for each (date, title) and returns the
// later repeats separately.
func CollapseBatch(events []models.Event) (unique, dupes []models.Event) {
	seen := make(map[models.EventKey]struct{}, len(events))
	unique = make([]models.Event, 0, len(events))
	for _, e := range events {
		k := e.Key()
		if _, ok := seen[k]; ok {
			dupes = append(dupes, e)
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, e)
	}
	return unique, dupes
}

func validateCandidate(e models.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title is required")
	}
	if e.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}
