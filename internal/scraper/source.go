package scraper

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"livehouse/internal/models"
)

// SourcesVersion is the newest sources file format this package reads.
const SourcesVersion = 1

const (
	defaultTimezone    = "Asia/Tokyo"
	defaultDatePattern = `(\d{4})\D+(\d{1,2})\D+(\d{1,2})`
)

// Selectors are the CSS lookups applied to a schedule page. Every field but
// Container is evaluated relative to one container match.
type Selectors struct {
	Container   string `yaml:"container"`
	Title       string `yaml:"title"`
	Date        string `yaml:"date"`
	Day         string `yaml:"day"`
	Time        string `yaml:"time"`
	Artists     string `yaml:"artists"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
}

// Source describes how to scrape one venue's schedule page.
type Source struct {
	Version     int          `yaml:"version"`
	Venue       models.Venue `yaml:"venue"`
	ScheduleURL string       `yaml:"schedule_url"`
	Selectors   Selectors    `yaml:"selectors"`
	// DatePattern overrides the default date regexp. Named groups year, month
	// and day are used when present, otherwise the first three groups. Without
	// a year the date nearest to the fetch time is assumed.
	DatePattern string `yaml:"date_pattern"`
	Timezone    string `yaml:"timezone"`

	datePattern *regexp.Regexp
	location    *time.Location
}

type sourcesFile struct {
	Version int      `yaml:"version"`
	Sources []Source `yaml:"sources"`
}

// LoadSources reads and validates a sources file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates sources from YAML.
func ParseSources(data []byte) ([]Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if file.Version > SourcesVersion {
		return nil, fmt.Errorf("sources version %d is newer than supported version %d", file.Version, SourcesVersion)
	}

	var errs []error
	for i := range file.Sources {
		src := &file.Sources[i]
		if src.Version == 0 {
			src.Version = file.Version
		}
		if err := src.compile(); err != nil {
			errs = append(errs, fmt.Errorf("source %d (%s): %w", i, src.Venue.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file.Sources, nil
}

// Find returns the source for the named venue.
func Find(sources []Source, venue string) (Source, bool) {
	for _, src := range sources {
		if src.Venue.Name == venue {
			return src, true
		}
	}
	return Source{}, false
}

func (s *Source) compile() error {
	var problems []string
	if strings.TrimSpace(s.Venue.Name) == "" {
		problems = append(problems, "venue.name is required")
	}
	if s.ScheduleURL == "" {
		problems = append(problems, "schedule_url is required")
	}
	if s.Version > SourcesVersion {
		problems = append(problems, fmt.Sprintf("version %d is not supported", s.Version))
	}
	for _, required := range []struct{ name, selector string }{
		{"container", s.Selectors.Container},
		{"title", s.Selectors.Title},
		{"date", s.Selectors.Date},
	} {
		if required.selector == "" {
			problems = append(problems, "selectors."+required.name+" is required")
		}
	}

	pattern := s.DatePattern
	if pattern == "" {
		pattern = defaultDatePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		problems = append(problems, fmt.Sprintf("date_pattern: %v", err))
	} else if re.NumSubexp() < 2 {
		problems = append(problems, "date_pattern needs at least month and day groups")
	}

	tz := s.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		problems = append(problems, fmt.Sprintf("timezone: %v", err))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	s.datePattern = re
	s.location = loc
	if s.Venue.ScheduleURL == nil {
		u := s.ScheduleURL
		s.Venue.ScheduleURL = &u
	}
	return nil
}
