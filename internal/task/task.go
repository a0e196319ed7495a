// Package task defines the timetable's task model: presentation tags,
// reusable templates and concrete per-day task instances.
package task

import (
	"image/color"
	"time"

	"github.com/Melokeo/Timetable4Inky/internal/style"
)

// Tag is a reusable presentation rule shared by related task types.
type Tag struct {
	Name        string
	TextColor   color.NRGBA
	BorderColor color.NRGBA
	FillColor   color.NRGBA
	HasAlarm    bool
	AlarmSound  string
}

// Template is a registry entry: how a task type looks and how long it
// runs by default. Colors left zero inherit from the tag at registry
// load; templates are immutable afterwards.
type Template struct {
	Key             string
	Title           string
	Description     string
	DurationMinutes int
	TagName         string

	TextColor   color.NRGBA
	BorderColor color.NRGBA
	FillColor   color.NRGBA
	HasAlarm    bool
	AlarmSound  string
}

// Task is a concrete entry on a specific day's timetable.
type Task struct {
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration

	TextColor   color.NRGBA
	BorderColor color.NRGBA
	FillColor   color.NRGBA
	HasAlarm    bool
	AlarmSound  string
}

// End returns the task's end instant.
func (t Task) End() time.Time {
	return t.Start.Add(t.Duration)
}

// Instantiate produces a Task from a template for the given day and
// start-of-day time. durationMinutes <= 0 keeps the template default.
func (tpl Template) Instantiate(day time.Time, startHour, startMinute, durationMinutes int) Task {
	if durationMinutes <= 0 {
		durationMinutes = tpl.DurationMinutes
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMinute, 0, 0, day.Location())
	return Task{
		Title:       tpl.Title,
		Description: tpl.Description,
		Start:       start,
		Duration:    time.Duration(durationMinutes) * time.Minute,
		TextColor:   tpl.TextColor,
		BorderColor: tpl.BorderColor,
		FillColor:   tpl.FillColor,
		HasAlarm:    tpl.HasAlarm,
		AlarmSound:  tpl.AlarmSound,
	}
}

// FindCurrent returns the task active at t, or nil.
func FindCurrent(tasks []Task, t time.Time) *Task {
	for i := range tasks {
		if !tasks[i].Start.After(t) && !tasks[i].End().Before(t) {
			return &tasks[i]
		}
	}
	return nil
}

// FindNext returns the earliest task starting strictly after t, or nil.
func FindNext(tasks []Task, t time.Time) *Task {
	var next *Task
	for i := range tasks {
		if tasks[i].Start.After(t) {
			if next == nil || tasks[i].Start.Before(next.Start) {
				next = &tasks[i]
			}
		}
	}
	return next
}

// FindInRange returns all tasks overlapping [from, to).
func FindInRange(tasks []Task, from, to time.Time) []Task {
	var out []Task
	for _, tk := range tasks {
		if tk.End().After(from) && tk.Start.Before(to) {
			out = append(out, tk)
		}
	}
	return out
}

// zeroColor reports whether c was never set.
func zeroColor(c color.NRGBA) bool {
	return c == color.NRGBA{}
}

// defaultTextColor is applied when neither template nor tag set one.
var defaultTextColor = style.Black
