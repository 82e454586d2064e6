package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DateLayout is the calendar date format used for events.
	DateLayout = "2006-01-02"
	// ClockLayout is the canonical time-of-day format.
	ClockLayout = "15:04:05"
)

// EventStatus is an open enumeration; ingestion only ever writes StatusActive.
type EventStatus string

const StatusActive EventStatus = "active"

// Event is a single dated performance at a venue.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	VenueID     uuid.UUID      `json:"venue_id"`
	Title       string         `json:"title"`
	Date        time.Time      `json:"date"`
	StartTime   *string        `json:"start_time,omitempty"`
	EndTime     *string        `json:"end_time,omitempty"`
	Artists     []string       `json:"artists"`
	TicketInfo  map[string]any `json:"ticket_info,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      EventStatus    `json:"status"`
	SourceURL   string         `json:"source_url,omitempty"`
	RawData     map[string]any `json:"raw_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Key returns the (date, title) part of the event's natural key.
func (e Event) Key() EventKey {
	return NewEventKey(e.Date, e.Title)
}

// EventKey identifies an event within a venue.
type EventKey struct {
	Date  string `json:"date"`
	Title string `json:"title"`
}

// NewEventKey builds a key from a date and title.
func NewEventKey(date time.Time, title string) EventKey {
	return EventKey{Date: date.Format(DateLayout), Title: title}
}

func (k EventKey) String() string {
	return k.Date + " " + k.Title
}

// EventFilter narrows event listings.
type EventFilter struct {
	VenueID uuid.UUID
	From    *time.Time
	Status  EventStatus
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock normalises "15:04" or "15:04:05" to ClockLayout.
func ParseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ClockLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q: want HH:MM", s)
}
