package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Melokeo/Timetable4Inky/internal/config"
)

const icsFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:one@test
DTSTART:20260828T140000Z
DTEND:20260828T150000Z
SUMMARY:Dentist
DESCRIPTION:Bring insurance card
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTART;VALUE=DATE:20260828
DTEND;VALUE=DATE:20260829
SUMMARY:Public holiday
END:VEVENT
BEGIN:VEVENT
UID:weekly@test
DTSTART:20260807T090000Z
DTEND:20260807T093000Z
RRULE:FREQ=WEEKLY;BYDAY=FR
SUMMARY:Team sync
END:VEVENT
END:VCALENDAR
`

func icsServer(t *testing.T, hits *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(icsFixture))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func calendarFor(t *testing.T, url string) *CalendarProvider {
	t.Helper()
	return NewCalendarProvider(
		[]config.CalendarConfig{{URL: url, ID: "test", Name: "Test"}},
		t.TempDir(),
	)
}

// 2026-08-28 is a Friday, so the weekly rule lands on it too.
var calDay = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func TestTasksForDay(t *testing.T) {
	var hits atomic.Int32
	ts := icsServer(t, &hits, http.StatusOK)
	p := calendarFor(t, ts.URL)

	tasks, err := p.TasksForDay(context.Background(), calDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d (%+v), want dentist + weekly sync", len(tasks), tasks)
	}

	byTitle := map[string]bool{}
	for _, tk := range tasks {
		byTitle[tk.Title] = true
		if tk.Title == "Dentist" {
			if tk.Start.Hour() != 14 || tk.Duration != time.Hour {
				t.Fatalf("dentist = %+v", tk)
			}
			if tk.Description != "Bring insurance card" {
				t.Fatalf("description = %q", tk.Description)
			}
		}
	}
	if !byTitle["Dentist"] || !byTitle["Team sync"] {
		t.Fatalf("titles = %v", byTitle)
	}
	if byTitle["Public holiday"] {
		t.Fatal("all-day event leaked into the timeline")
	}
}

func TestTasksForDaySkipsOtherDays(t *testing.T) {
	var hits atomic.Int32
	ts := icsServer(t, &hits, http.StatusOK)
	p := calendarFor(t, ts.URL)

	// a Monday: no dentist, no friday sync
	monday := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	tasks, err := p.TasksForDay(context.Background(), monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks = %+v, want none", tasks)
	}
}

func TestFetchFallsBackToCache(t *testing.T) {
	var hits atomic.Int32
	ts := icsServer(t, &hits, http.StatusOK)
	p := calendarFor(t, ts.URL)

	ctx := context.Background()
	if _, err := p.TasksForDay(ctx, calDay); err != nil {
		t.Fatal(err)
	}

	// server goes away; the cached body keeps the day populated
	ts.Close()
	tasks, err := p.TasksForDay(ctx, calDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks after outage = %d, want cached 2", len(tasks))
	}
}

func TestFetchServes304FromCache(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte(icsFixture))
			return
		}
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("revalidation without etag: %q", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer ts.Close()
	p := calendarFor(t, ts.URL)

	ctx := context.Background()
	if _, err := p.TasksForDay(ctx, calDay); err != nil {
		t.Fatal(err)
	}
	tasks, err := p.TasksForDay(ctx, calDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks via 304 = %d", len(tasks))
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestTasksForDayErrorOnlyWhenAllFail(t *testing.T) {
	var hits atomic.Int32
	bad := icsServer(t, &hits, http.StatusInternalServerError)
	good := icsServer(t, &hits, http.StatusOK)

	p := NewCalendarProvider([]config.CalendarConfig{
		{URL: bad.URL, ID: "bad"},
		{URL: good.URL, ID: "good"},
	}, t.TempDir())

	tasks, err := p.TasksForDay(context.Background(), calDay)
	if err != nil {
		t.Fatalf("partial failure must not error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d", len(tasks))
	}

	allBad := NewCalendarProvider([]config.CalendarConfig{{URL: bad.URL, ID: "bad"}}, t.TempDir())
	if _, err := allBad.TasksForDay(context.Background(), calDay); err == nil {
		t.Fatal("total failure swallowed")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc123/basic.ics")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Fatalf("got %q", got)
	}
}
