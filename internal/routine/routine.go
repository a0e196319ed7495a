// Package routine holds the user-authored timetable: named day presets
// referencing task templates, selected per date with weekday and
// date-override fallbacks.
package routine

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// Entry is one time-bound slot in a day preset. DurationMinutes of zero
// means "use the template default".
type Entry struct {
	Key             string
	Hour            int
	Minute          int
	DurationMinutes int
}

// DayPreset is a full day's ordered entry list.
type DayPreset struct {
	Name    string
	Entries []Entry
}

// Schedule instantiates the preset's entries into concrete tasks for the
// given day. Unknown template keys resolve to the registry's default
// placeholder; they never fail the schedule.
func (p DayPreset) Schedule(reg *task.Registry, day time.Time) []task.Task {
	out := make([]task.Task, 0, len(p.Entries))
	for _, e := range p.Entries {
		tpl := reg.Resolve(e.Key)
		out = append(out, tpl.Instantiate(day, e.Hour, e.Minute, e.DurationMinutes))
	}
	return out
}

// Validate checks the non-overlap invariant: entries must be ordered by
// start time and no entry may run into the next one's start.
func (p DayPreset) Validate(reg *task.Registry) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Entries, validation.By(func(any) error {
			return p.checkEntries(reg)
		})),
	)
}

func (p DayPreset) checkEntries(reg *task.Registry) error {
	for i := range p.Entries {
		e := p.Entries[i]
		if e.Hour < 0 || e.Hour > 23 || e.Minute < 0 || e.Minute > 59 {
			return fmt.Errorf("routine %q: entry %d has invalid time %02d:%02d", p.Name, i, e.Hour, e.Minute)
		}
		if i == 0 {
			continue
		}
		prev := p.Entries[i-1]
		prevStart := prev.Hour*60 + prev.Minute
		start := e.Hour*60 + e.Minute
		if start < prevStart {
			return fmt.Errorf("routine %q: entry %q at %02d:%02d starts before previous entry", p.Name, e.Key, e.Hour, e.Minute)
		}
		dur := prev.DurationMinutes
		if dur == 0 {
			dur = reg.Resolve(prev.Key).DurationMinutes
		}
		if prevStart+dur > start {
			return fmt.Errorf("routine %q: entry %q overlaps %q", p.Name, prev.Key, e.Key)
		}
	}
	return nil
}

// Set is the full routine configuration: a default preset, optional
// per-weekday presets and exact-date overrides keyed "MMDD".
type Set struct {
	Default   DayPreset
	Weekdays  map[time.Weekday]DayPreset
	Overrides map[string]DayPreset
}

// ForDate picks the preset for a given day: exact-date override first,
// then weekday, then the default.
func (s *Set) ForDate(t time.Time) DayPreset {
	if p, ok := s.Overrides[t.Format("0102")]; ok {
		return p
	}
	if p, ok := s.Weekdays[t.Weekday()]; ok {
		return p
	}
	return s.Default
}

// Validate validates every preset in the set.
func (s *Set) Validate(reg *task.Registry) error {
	if err := s.Default.Validate(reg); err != nil {
		return err
	}
	for _, p := range s.Weekdays {
		if err := p.Validate(reg); err != nil {
			return err
		}
	}
	for _, p := range s.Overrides {
		if err := p.Validate(reg); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinSet is the compiled-in workday routine used when no routine
// file is configured or loading it fails.
func BuiltinSet(reg *task.Registry) *Set {
	entries, err := Parse(
		"6:50 standup --7:10, 8:00 focus --12:00, 13:00 focus --17:00, "+
			"17:40 dine, 18:30 drawing --22:30, 22:42 sleep --23:59", reg)
	if err != nil {
		panic("routine: builtin routine invalid: " + err.Error())
	}
	return &Set{
		Default: DayPreset{Name: "Workday", Entries: entries},
	}
}
