// Package provider pulls the external facts a frame needs: the lunar
// header line, calendar events and abbreviated titles. Every provider
// degrades to a cached or zero value on failure; a render is never
// blocked on a provider.
package provider

import (
	"context"
	"time"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/lunar"
	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// Snapshot is the provider state captured for one render cycle.
type Snapshot struct {
	// LunarLine is the ganzhi header string; empty when unavailable.
	LunarLine string
	// CalendarTasks are today's calendar events converted to tasks.
	CalendarTasks []task.Task
	// Abbrevs maps long task titles to short forms for narrow lanes.
	Abbrevs map[string]string
}

// Providers bundles the configured sources. Nil members are skipped.
type Providers struct {
	Calendar    *CalendarProvider
	Abbreviator *Abbreviator
}

// Collect builds a Snapshot for the given day. Individual provider
// failures are logged and leave their section zero-valued.
func (p *Providers) Collect(ctx context.Context, now time.Time, titles []string) Snapshot {
	snap := Snapshot{
		LunarLine: lunar.HeaderLine(now),
	}

	if p.Calendar != nil {
		tasks, err := p.Calendar.TasksForDay(ctx, now)
		if err != nil {
			appLog.Error("calendar provider failed; rendering without events", err)
		}
		snap.CalendarTasks = tasks
	}

	if p.Abbreviator != nil && len(titles) > 0 {
		abbrevs, err := p.Abbreviator.Abbreviate(ctx, titles)
		if err != nil {
			appLog.Error("abbreviation provider failed; falling back to truncation", err)
		}
		snap.Abbrevs = abbrevs
	}

	return snap
}
