package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/Melokeo/Timetable4Inky/internal/config"
	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/style"
	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// CalendarProvider fetches ICS subscriptions and converts the day's
// occurrences into tasks carrying the calendar tag colors.
type CalendarProvider struct {
	sources  []config.CalendarConfig
	client   *http.Client
	cacheDir string
}

// NewCalendarProvider creates a provider caching feed bodies under
// cacheDir so network failures fall back to the last good copy.
func NewCalendarProvider(sources []config.CalendarConfig, cacheDir string) *CalendarProvider {
	return &CalendarProvider{
		sources:  sources,
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// TasksForDay returns all calendar occurrences overlapping the civil day
// containing now. Per-source failures are logged and skipped; the error
// returned is non-nil only when every source failed.
func (p *CalendarProvider) TasksForDay(ctx context.Context, now time.Time) ([]task.Task, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []task.Task
	var failed int
	var lastErr error

	for _, src := range p.sources {
		body, err := p.fetch(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			failed++
			lastErr = err
			continue
		}
		tasks, err := eventsToTasks(src, body, dayStart, dayEnd)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", src.ID)
			failed++
			lastErr = err
			continue
		}
		out = append(out, tasks...)
	}

	if failed > 0 && failed == len(p.sources) {
		return out, lastErr
	}
	return out, nil
}

// cacheMeta holds HTTP cache metadata for one feed URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// fetch retrieves one feed, honoring ETag/Last-Modified against a disk
// cache and falling back to the cached body when the network is down.
func (p *CalendarProvider) fetch(ctx context.Context, src config.CalendarConfig) ([]byte, error) {
	if src.URL == "" {
		return nil, errors.New("calendar source URL is empty")
	}

	dir := p.cachePath(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	metaFile := filepath.Join(dir, "meta.json")
	bodyFile := filepath.Join(dir, "body.ics")

	var meta cacheMeta
	if data, err := os.ReadFile(metaFile); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	cached, _ := os.ReadFile(bodyFile)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("ics network error; using cached body", "id", src.ID)
			return cached, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(bodyFile, body, 0o600); err == nil {
			meta = cacheMeta{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			}
			if data, err := json.Marshal(&meta); err == nil {
				_ = os.WriteFile(metaFile, data, 0o600)
			}
		}
		return body, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, errors.New("304 Not Modified but no cached body")
		}
		return cached, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("ics non-OK status; using cached body", "id", src.ID, "status", resp.StatusCode)
			return cached, nil
		}
		return nil, errors.New(resp.Status)
	}
}

func (p *CalendarProvider) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(p.cacheDir, "ics-cache", hex.EncodeToString(sum[:8]))
}

// calendarTag is the presentation applied to calendar-sourced tasks.
var calendarTag = task.Tag{
	Name:        "calendar",
	TextColor:   style.Black,
	FillColor:   style.Mix(style.B(3), style.G(3), style.W(20)),
	BorderColor: style.Mix(style.B(3), style.G(3), style.W(10)),
}

// eventsToTasks parses an ICS body and expands occurrences that overlap
// [dayStart, dayEnd). All-day events are skipped; the timeline has no
// slot for them.
func eventsToTasks(src config.CalendarConfig, body []byte, dayStart, dayEnd time.Time) ([]task.Task, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []task.Task
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ev.GetEndAt()
		if err != nil || !end.After(start) {
			end = start.Add(time.Hour)
		}
		duration := end.Sub(start)
		if duration >= 24*time.Hour {
			continue // all-day
		}

		summary := ""
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
			summary = p.Value
		}
		description := ""
		if p := ev.GetProperty(ical.ComponentPropertyDescription); p != nil {
			description = p.Value
		}

		for _, occ := range occurrencesIn(ev, start, dayStart, dayEnd) {
			out = append(out, task.Task{
				Title:       summary,
				Description: description,
				Start:       occ.In(dayStart.Location()),
				Duration:    duration,
				TextColor:   calendarTag.TextColor,
				FillColor:   calendarTag.FillColor,
				BorderColor: calendarTag.BorderColor,
			})
		}
	}

	appLog.Debug("ics expanded", "id", src.ID, "tasks", len(out))
	return out, nil
}

// occurrencesIn returns the event's start instants inside [from, to),
// expanding RRULEs when present.
func occurrencesIn(ev *ical.VEvent, start, from, to time.Time) []time.Time {
	rruleProp := ev.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		if start.Before(from) || !start.Before(to) {
			return nil
		}
		return []time.Time{start}
	}

	opts, err := rrule.StrToROption(rruleProp.Value)
	if err != nil {
		appLog.Warn("bad RRULE; treating event as single", "rrule", rruleProp.Value)
		if start.Before(from) || !start.Before(to) {
			return nil
		}
		return []time.Time{start}
	}
	opts.Dtstart = start
	rule, err := rrule.NewRRule(*opts)
	if err != nil {
		return nil
	}
	return rule.Between(from, to, true)
}

// redactURL trims a feed URL down to its host for logging.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
