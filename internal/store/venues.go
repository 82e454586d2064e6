package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

const venueColumns = `
	id, name, COALESCE(name_kana, ''), COALESCE(area, ''), COALESCE(address, ''),
	capacity, COALESCE(official_url, ''), metadata, schedule_url, last_schedule_fetch,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (models.Venue, error) {
	var (
		v         models.Venue
		capacity  sql.NullInt64
		metadata  []byte
		schedule  sql.NullString
		lastFetch sql.NullTime
	)
	if err := row.Scan(
		&v.ID, &v.Name, &v.NameKana, &v.Area, &v.Address,
		&capacity, &v.OfficialURL, &metadata, &schedule, &lastFetch,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return models.Venue{}, err
	}

	if capacity.Valid {
		c := int(capacity.Int64)
		v.Capacity = &c
	}
	if schedule.Valid {
		v.ScheduleURL = &schedule.String
	}
	if lastFetch.Valid {
		v.LastScheduleFetch = &lastFetch.Time
	}
	m, err := unmarshalMap(metadata)
	if err != nil {
		return models.Venue{}, fmt.Errorf("decode metadata for %q: %w", v.Name, err)
	}
	v.Metadata = m
	return v, nil
}

func (s *Store) queryVenues(ctx context.Context, query string, args ...any) ([]models.Venue, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select venues: %w", err)
	}
	defer rows.Close()

	var venues []models.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate venues: %w", err)
	}
	return venues, nil
}

// FindVenuesByName returns every venue whose name matches exactly.
func (s *Store) FindVenuesByName(ctx context.Context, name string) ([]models.Venue, error) {
	return s.queryVenues(ctx, `SELECT`+venueColumns+`
		FROM venues
		WHERE name = $1
	`, name)
}

// ListVenues returns all venues ordered by name.
func (s *Store) ListVenues(ctx context.Context) ([]models.Venue, error) {
	return s.queryVenues(ctx, `SELECT`+venueColumns+`
		FROM venues
		ORDER BY name ASC
	`)
}

// GetVenue retrieves a single venue by ID.
func (s *Store) GetVenue(ctx context.Context, id uuid.UUID) (models.Venue, error) {
	v, err := scanVenue(s.q.QueryRowContext(ctx, `SELECT`+venueColumns+`
		FROM venues
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Venue{}, ErrVenueNotFound
	}
	if err != nil {
		return models.Venue{}, fmt.Errorf("select venue: %w", err)
	}
	return v, nil
}

// CreateVenue inserts venue and fills in its ID and timestamps. It reports
// false, without error, when a venue with the same name already exists.
func (s *Store) CreateVenue(ctx context.Context, venue *models.Venue) (bool, error) {
	metadata := venue.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := marshalJSON(metadata)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}

	err = s.q.QueryRowContext(ctx, `
		INSERT INTO venues (name, name_kana, area, address, capacity, official_url, metadata, schedule_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at, updated_at
	`, venue.Name, venue.NameKana, venue.Area, venue.Address,
		venue.Capacity, venue.OfficialURL, metadataJSON, venue.ScheduleURL,
	).Scan(&venue.ID, &venue.CreatedAt, &venue.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("insert venue: %w", ErrConflict)
		}
		return false, fmt.Errorf("insert venue: %w", err)
	}

	venue.Metadata = metadata
	return true, nil
}

// PatchVenueMetadata merges patch into the venue's metadata. Keys present in
// patch replace existing ones; other keys are kept.
func (s *Store) PatchVenueMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) (models.Venue, error) {
	patchJSON, err := marshalJSON(patch)
	if err != nil {
		return models.Venue{}, fmt.Errorf("marshal metadata patch: %w", err)
	}

	v, err := scanVenue(s.q.QueryRowContext(ctx, `
		UPDATE venues
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING`+venueColumns, id, patchJSON))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Venue{}, ErrVenueNotFound
	}
	if err != nil {
		return models.Venue{}, fmt.Errorf("update venue metadata: %w", err)
	}
	return v, nil
}

// UpdateScheduleSource records where and when the venue's schedule was last fetched.
func (s *Store) UpdateScheduleSource(ctx context.Context, id uuid.UUID, scheduleURL string, fetchedAt time.Time) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE venues
		SET schedule_url = $2, last_schedule_fetch = $3, updated_at = NOW()
		WHERE id = $1
	`, id, scheduleURL, fetchedAt)
	if err != nil {
		return fmt.Errorf("update schedule source: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule source: %w", err)
	}
	if n == 0 {
		return ErrVenueNotFound
	}
	return nil
}
