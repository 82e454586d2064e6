package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"livehouse/internal/models"
)

// insertChunk bounds the rows per INSERT so the statement stays under the
// protocol's parameter limit.
const insertChunk = 500

const eventInsertColumns = 11

// ListEventKeys returns the (date, title) pairs stored for a venue.
func (s *Store) ListEventKeys(ctx context.Context, venueID uuid.UUID) ([]models.EventKey, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT date::text, title
		FROM events
		WHERE venue_id = $1
	`, venueID)
	if err != nil {
		return nil, fmt.Errorf("select event keys: %w", err)
	}
	defer rows.Close()

	var keys []models.EventKey
	for rows.Next() {
		var k models.EventKey
		if err := rows.Scan(&k.Date, &k.Title); err != nil {
			return nil, fmt.Errorf("scan event key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event keys: %w", err)
	}
	return keys, nil
}

type eventKey struct {
	venueID uuid.UUID
	key     models.EventKey
}

// InsertEvents writes events, skipping rows that conflict on
// (venue_id, date, title), and returns the rows it wrote with their IDs.
func (s *Store) InsertEvents(ctx context.Context, events []models.Event) ([]models.Event, error) {
	var inserted []models.Event
	for start := 0; start < len(events); start += insertChunk {
		end := start + insertChunk
		if end > len(events) {
			end = len(events)
		}
		written, err := s.insertEventChunk(ctx, events[start:end])
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, written...)
	}
	return inserted, nil
}

func (s *Store) insertEventChunk(ctx context.Context, events []models.Event) ([]models.Event, error) {
	var (
		b    strings.Builder
		args = make([]any, 0, len(events)*eventInsertColumns)
	)
	b.WriteString(`
		INSERT INTO events (venue_id, title, date, start_time, end_time, artists,
		                    ticket_info, description, status, source_url, raw_data)
		VALUES `)
	for i, e := range events {
		row, err := eventArgs(e)
		if err != nil {
			return nil, fmt.Errorf("encode event %q: %w", e.Key().String(), err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d::date, $%d::time, $%d::time, $%d::jsonb, $%d::jsonb, $%d, $%d, $%d, $%d::jsonb)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11)
		args = append(args, row...)
	}
	b.WriteString(`
		ON CONFLICT (venue_id, date, title) DO NOTHING
		RETURNING id, venue_id, date::text, title, created_at`)

	rows, err := s.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert events: %w", ErrConflict)
		}
		return nil, fmt.Errorf("insert events: %w", err)
	}
	defer rows.Close()

	byKey := make(map[eventKey]int, len(events))
	for i, e := range events {
		byKey[eventKey{venueID: e.VenueID, key: e.Key()}] = i
	}

	var inserted []models.Event
	for rows.Next() {
		var (
			id, venueID uuid.UUID
			key         models.EventKey
			e           models.Event
		)
		if err := rows.Scan(&id, &venueID, &key.Date, &key.Title, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inserted event: %w", err)
		}
		i, ok := byKey[eventKey{venueID: venueID, key: key}]
		if !ok {
			return nil, fmt.Errorf("insert events: unexpected row %s", key)
		}
		createdAt := e.CreatedAt
		e = events[i]
		e.ID = id
		e.CreatedAt = createdAt
		inserted = append(inserted, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inserted events: %w", err)
	}
	return inserted, nil
}

func eventArgs(e models.Event) ([]any, error) {
	artists := e.Artists
	if artists == nil {
		artists = []string{}
	}
	artistsJSON, err := marshalJSON(artists)
	if err != nil {
		return nil, err
	}
	ticketJSON, err := marshalJSON(orEmpty(e.TicketInfo))
	if err != nil {
		return nil, err
	}
	rawJSON, err := marshalJSON(orEmpty(e.RawData))
	if err != nil {
		return nil, err
	}
	return []any{
		e.VenueID, e.Title, e.Date.Format(models.DateLayout), e.StartTime, e.EndTime,
		artistsJSON, ticketJSON, e.Description, string(e.Status), e.SourceURL, rawJSON,
	}, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ListEvents returns the events matching filter ordered by date, start time
// and title.
func (s *Store) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.VenueID != uuid.Nil {
		args = append(args, filter.VenueID)
		where = append(where, fmt.Sprintf("venue_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.Format(models.DateLayout))
		where = append(where, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `
		SELECT id, venue_id, title, date, start_time::text, end_time::text, artists,
		       ticket_info, COALESCE(description, ''), status, COALESCE(source_url, ''),
		       raw_data, created_at
		FROM events`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY date ASC, start_time ASC NULLS LAST, title ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (models.Event, error) {
	var (
		e                    models.Event
		startTime, endTime   sql.NullString
		artists, ticket, raw []byte
		status               string
	)
	if err := row.Scan(
		&e.ID, &e.VenueID, &e.Title, &e.Date, &startTime, &endTime, &artists,
		&ticket, &e.Description, &status, &e.SourceURL, &raw, &e.CreatedAt,
	); err != nil {
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Status = models.EventStatus(status)
	if startTime.Valid {
		e.StartTime = &startTime.String
	}
	if endTime.Valid {
		e.EndTime = &endTime.String
	}

	e.Artists = []string{}
	if len(artists) > 0 {
		if err := json.Unmarshal(artists, &e.Artists); err != nil {
			return models.Event{}, fmt.Errorf("decode artists for %s: %w", e.Key(), err)
		}
	}
	var err error
	if e.TicketInfo, err = unmarshalMap(ticket); err != nil {
		return models.Event{}, fmt.Errorf("decode ticket info for %s: %w", e.Key(), err)
	}
	if e.RawData, err = unmarshalMap(raw); err != nil {
		return models.Event{}, fmt.Errorf("decode raw data for %s: %w", e.Key(), err)
	}
	return e, nil
}
