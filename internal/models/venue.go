package models

import (
	"time"

	"github.com/google/uuid"
)

// Venue represents a live music venue. Name is the natural key.
type Venue struct {
	ID                uuid.UUID      `json:"id"`
	Name              string         `json:"name" yaml:"name"`
	NameKana          string         `json:"name_kana,omitempty" yaml:"name_kana"`
	Area              string         `json:"area,omitempty" yaml:"area"`
	Address           string         `json:"address,omitempty" yaml:"address"`
	Capacity          *int           `json:"capacity,omitempty" yaml:"capacity"`
	OfficialURL       string         `json:"official_url,omitempty" yaml:"official_url"`
	Metadata          map[string]any `json:"metadata,omitempty" yaml:"metadata"`
	ScheduleURL       *string        `json:"schedule_url,omitempty" yaml:"schedule_url"`
	LastScheduleFetch *time.Time     `json:"last_schedule_fetch,omitempty" yaml:"-"`
	CreatedAt         time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time      `json:"updated_at" yaml:"-"`
}

// Genres returns the genre tags stored under metadata.genre.
func (v Venue) Genres() []string {
	raw, ok := v.Metadata["genre"]
	if !ok {
		return nil
	}
	switch tags := raw.(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
