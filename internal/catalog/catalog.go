// Package catalog reads venue and event records from YAML or JSON files.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"livehouse/internal/app/ingest"
	"livehouse/internal/models"
)

type file struct {
	Venues []entry `yaml:"venues"`
}

type entry struct {
	Venue  models.Venue `yaml:"venue"`
	Events []yaml.Node  `yaml:"events"`
}

// record is one event as written in a catalog file.
type record struct {
	Title       string         `yaml:"title"`
	Date        scalar         `yaml:"date"`
	StartTime   scalar         `yaml:"start_time"`
	EndTime     scalar         `yaml:"end_time"`
	Artists     []string       `yaml:"artists"`
	TicketInfo  map[string]any `yaml:"ticket_info"`
	Description string         `yaml:"description"`
	SourceURL   string         `yaml:"source_url"`
}

// scalar keeps a YAML scalar's source text, so 2025-06-18 is not read as a timestamp.
type scalar string

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	if node.ShortTag() == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(node.Value)
	return nil
}

// Load reads the catalog file at path.
func Load(path string) ([]ingest.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalog into one batch per venue. Event records that cannot
// be interpreted are returned as parse failures of their batch.
func Parse(r io.Reader) ([]ingest.Batch, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	batches := make([]ingest.Batch, 0, len(f.Venues))
	var errs []error
	for i, e := range f.Venues {
		if err := validateVenue(e.Venue); err != nil {
			errs = append(errs, fmt.Errorf("venue %d: %w", i, err))
			continue
		}
		e.Venue.Name = strings.TrimSpace(e.Venue.Name)

		batch := ingest.Batch{Venue: e.Venue}
		for j := range e.Events {
			event, failure := decodeEvent(&e.Events[j], j)
			if failure != nil {
				batch.ParseFailures = append(batch.ParseFailures, *failure)
				continue
			}
			batch.Events = append(batch.Events, event)
		}
		batches = append(batches, batch)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return batches, nil
}

func validateVenue(v models.Venue) error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("name is required")
	}
	if v.Capacity != nil && *v.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", *v.Capacity)
	}
	return nil
}

func decodeEvent(node *yaml.Node, index int) (models.Event, *ingest.ParseFailure) {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return models.Event{}, &ingest.ParseFailure{Index: index, Reason: fmt.Sprintf("line %d: %v", node.Line, err)}
	}
	raw = normalize(raw).(map[string]any)

	fail := func(reason string) (models.Event, *ingest.ParseFailure) {
		return models.Event{}, &ingest.ParseFailure{Index: index, Reason: reason, Raw: raw}
	}

	var rec record
	if err := node.Decode(&rec); err != nil {
		return fail(fmt.Sprintf("line %d: %v", node.Line, err))
	}
	if strings.TrimSpace(rec.Title) == "" {
		return fail("missing title")
	}
	date, err := models.ParseDate(string(rec.Date))
	if err != nil {
		return fail(err.Error())
	}

	e := models.Event{
		Title:       strings.TrimSpace(rec.Title),
		Date:        date,
		Artists:     rec.Artists,
		TicketInfo:  rec.TicketInfo,
		Description: rec.Description,
		SourceURL:   rec.SourceURL,
		RawData:     raw,
	}
	if rec.StartTime != "" {
		t, err := models.ParseClock(string(rec.StartTime))
		if err != nil {
			return fail(err.Error())
		}
		e.StartTime = &t
	}
	if rec.EndTime != "" {
		t, err := models.ParseClock(string(rec.EndTime))
		if err != nil {
			return fail(err.Error())
		}
		e.EndTime = &t
	}
	return e, nil
}

// normalize rewrites YAML timestamps as dates so raw records survive a JSON round trip.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format(models.DateLayout)
		}
		return t.Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

// LoadGenreDefaults reads a mapping of venue name to default genre tags.
func LoadGenreDefaults(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genre defaults: %w", err)
	}
	defaults := map[string][]string{}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("decode genre defaults: %w", err)
	}
	return defaults, nil
}
