package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"livehouse/internal/app/ingest"
	"livehouse/internal/logging"
	"livehouse/internal/models"
)

const (
	DefaultUserAgent = "livehouse-scraper/1.0"
	DefaultTimeout   = 10 * time.Second
)

var (
	openPattern  = regexp.MustCompile(`(?i)OPEN\s*(\d{1,2}):(\d{2})`)
	startPattern = regexp.MustCompile(`(?i)START\s*(\d{1,2}):(\d{2})`)
	clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Options configures a Scraper.
type Options struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

// Scraper fetches venue schedule pages and turns them into ingestion batches.
type Scraper struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// Result is one fetched and parsed schedule page.
type Result struct {
	Batch     ingest.Batch
	FetchedAt time.Time
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Scraper{client: client, userAgent: opts.UserAgent, now: time.Now}
}

// Fetch downloads src's schedule page and parses it.
func (s *Scraper) Fetch(ctx context.Context, src Source) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.ScheduleURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetching %s: %w", src.ScheduleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetching %s: unexpected status code: %d", src.ScheduleURL, resp.StatusCode)
	}

	fetchedAt := s.now()
	batch, err := parse(resp.Body, src, fetchedAt)
	if err != nil {
		return Result{}, err
	}

	logging.WithContext(ctx).Info().
		Str("venue", src.Venue.Name).
		Str("url", src.ScheduleURL).
		Int("events", len(batch.Events)).
		Int("parse_failures", len(batch.ParseFailures)).
		Msg("schedule scraped")
	return Result{Batch: batch, FetchedAt: fetchedAt}, nil
}

// Parse extracts candidate events from a schedule page. Records without a
// title or a readable date are returned as parse failures.
func Parse(r io.Reader, src Source) (ingest.Batch, error) {
	return parse(r, src, time.Now())
}

func parse(r io.Reader, src Source, now time.Time) (ingest.Batch, error) {
	if src.datePattern == nil {
		if err := src.compile(); err != nil {
			return ingest.Batch{}, fmt.Errorf("source %s: %w", src.Venue.Name, err)
		}
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("parsing HTML: %w", err)
	}

	batch := ingest.Batch{Venue: src.Venue}
	scrapedAt := now.UTC().Format(time.RFC3339)
	sel := src.Selectors

	doc.Find(sel.Container).Each(func(i int, item *goquery.Selection) {
		title := text(item, sel.Title)
		dateText := text(item, sel.Date)
		dayText := text(item, sel.Day)
		timeText := text(item, sel.Time)
		price := text(item, sel.Price)

		artists := []string{}
		if sel.Artists != "" {
			item.Find(sel.Artists).Each(func(_ int, a *goquery.Selection) {
				if name := clean(a.Text()); name != "" {
					artists = append(artists, name)
				}
			})
		}

		raw := map[string]any{
			"date_text":  dateText,
			"day_text":   dayText,
			"time_text":  timeText,
			"artists":    artists,
			"scraped_at": scrapedAt,
		}

		if title == "" {
			batch.ParseFailures = append(batch.ParseFailures, ingest.ParseFailure{Index: i, Reason: "missing title", Raw: raw})
			return
		}
		date, ok := src.parseDate(dateText, now)
		if !ok {
			batch.ParseFailures = append(batch.ParseFailures, ingest.ParseFailure{
				Index:  i,
				Reason: fmt.Sprintf("unreadable date %q", dateText),
				Raw:    raw,
			})
			return
		}

		openTime := matchClock(openPattern, timeText)
		startTime := matchClock(startPattern, timeText)
		if startTime == "" && openTime == "" {
			startTime = matchClock(clockPattern, timeText)
		}

		ticket := map[string]any{}
		if openTime != "" {
			ticket["open_time"] = openTime
		}
		if startTime != "" {
			ticket["start_time"] = startTime
		}
		if price != "" {
			ticket["price"] = price
		}

		description := text(item, sel.Description)
		if description == "" {
			description = strings.TrimSpace(dayText + " " + timeText)
		}

		e := models.Event{
			Title:       title,
			Date:        date,
			Artists:     artists,
			TicketInfo:  ticket,
			Description: description,
			SourceURL:   src.ScheduleURL,
			RawData:     raw,
		}
		if startTime != "" {
			e.StartTime = &startTime
		}
		batch.Events = append(batch.Events, e)
	})

	return batch, nil
}

// parseDate reads a calendar date from text. Dates without a year resolve to
// the year that puts them within six months of now.
func (s Source) parseDate(text string, now time.Time) (time.Time, bool) {
	m := s.datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	groups := map[string]string{}
	for i, name := range s.datePattern.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	if len(groups) == 0 {
		if len(m) >= 4 {
			groups = map[string]string{"year": m[1], "month": m[2], "day": m[3]}
		} else {
			groups = map[string]string{"month": m[1], "day": m[2]}
		}
	}

	month, err := strconv.Atoi(groups["month"])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(groups["day"])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	local := now.In(s.location)
	year := local.Year()
	explicitYear := groups["year"] != ""
	if explicitYear {
		if year, err = strconv.Atoi(groups["year"]); err != nil {
			return time.Time{}, false
		}
		if year < 100 {
			year += 2000
		}
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day {
		return time.Time{}, false
	}
	if !explicitYear {
		today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		switch {
		case date.Before(today.AddDate(0, -6, 0)):
			date = date.AddDate(1, 0, 0)
		case date.After(today.AddDate(0, 6, 0)):
			date = date.AddDate(-1, 0, 0)
		}
	}
	return date, true
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return clean(item.Find(selector).First().Text())
}

func clean(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func matchClock(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:00", hour, minute)
}
