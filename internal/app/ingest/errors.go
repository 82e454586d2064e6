package ingest

import (
	"errors"
	"fmt"
	"strings"

	"livehouse/internal/models"
)

var (
	// ErrStoreUnavailable signals a transport, auth or query failure from the store.
	// Nothing beyond what the report marks as committed may be assumed written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotUnique signals that a natural-key lookup matched more than one row.
	ErrNotUnique = errors.New("natural key not unique")
	// ErrConstraintConflict signals a write that raced another writer on a natural key.
	ErrConstraintConflict = errors.New("natural key conflict")
	// ErrParseFailure signals a source record that could not be interpreted.
	ErrParseFailure = errors.New("record could not be parsed")
	// ErrInvalidCandidate signals a candidate missing its natural key fields.
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// Error carries the context needed to retry a single venue or event by hand.
type Error struct {
	Op    string
	Venue string
	Key   *models.EventKey
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Venue != "" {
		fmt.Fprintf(&b, " venue %q", e.Venue)
	}
	if e.Key != nil {
		fmt.Fprintf(&b, " event %q", e.Key.String())
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind reports which taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrStoreUnavailable,
		ErrNotUnique,
		ErrConstraintConflict,
		ErrParseFailure,
		ErrInvalidCandidate,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is a short label for metrics and HTTP responses.
func KindName(err error) string {
	switch Kind(err) {
	case ErrStoreUnavailable:
		return "store_unavailable"
	case ErrNotUnique:
		return "not_unique"
	case ErrConstraintConflict:
		return "constraint_conflict"
	case ErrParseFailure:
		return "parse_failure"
	case ErrInvalidCandidate:
		return "invalid_candidate"
	}
	return "unknown"
}

func unavailable(op, venue string, err error) error {
	return &Error{Op: op, Venue: venue, Kind: ErrStoreUnavailable, Err: err}
}

// ParseFailure records a source record that was skipped.
type ParseFailure struct {
	Index  int            `json:"index"`
	Reason string         `json:"reason"`
	Raw    map[string]any `json:"raw,omitempty"`
}

// Err converts the failure into a taxonomy error for logging.
func (f ParseFailure) Err(venue string) error {
	return &Error{
		Op:    fmt.Sprintf("parse record %d", f.Index),
		Venue: venue,
		Kind:  ErrParseFailure,
		Err:   errors.New(f.Reason),
	}
}
