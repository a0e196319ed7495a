package task

import (
	"testing"
	"time"
)

var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 9, h, m, 0, 0, time.UTC)
}

func TestInstantiateDefaultDuration(t *testing.T) {
	tpl := Template{Key: "focus", Title: "Deep work", DurationMinutes: 60}

	tk := tpl.Instantiate(day, 9, 30, 0)
	if got := tk.Start; !got.Equal(at(9, 30)) {
		t.Fatalf("start = %v, want 09:30", got)
	}
	if tk.Duration != 60*time.Minute {
		t.Fatalf("duration = %v, want 60m (template default)", tk.Duration)
	}

	tk = tpl.Instantiate(day, 9, 30, 15)
	if tk.Duration != 15*time.Minute {
		t.Fatalf("duration = %v, want explicit 15m", tk.Duration)
	}
}

func TestFindCurrentAndNext(t *testing.T) {
	tasks := []Task{
		{Title: "a", Start: at(8, 0), Duration: 30 * time.Minute},
		{Title: "b", Start: at(10, 0), Duration: time.Hour},
	}

	if cur := FindCurrent(tasks, at(8, 15)); cur == nil || cur.Title != "a" {
		t.Fatalf("current at 08:15 = %+v, want a", cur)
	}
	if cur := FindCurrent(tasks, at(9, 0)); cur != nil {
		t.Fatalf("current at 09:00 = %q, want none", cur.Title)
	}
	if next := FindNext(tasks, at(8, 15)); next == nil || next.Title != "b" {
		t.Fatalf("next at 08:15 = %+v, want b", next)
	}
	if next := FindNext(tasks, at(11, 30)); next != nil {
		t.Fatalf("next at 11:30 = %q, want none", next.Title)
	}
}

func TestFindInRange(t *testing.T) {
	tasks := []Task{
		{Title: "a", Start: at(8, 0), Duration: 30 * time.Minute},
		{Title: "b", Start: at(10, 0), Duration: time.Hour},
		{Title: "c", Start: at(13, 0), Duration: time.Hour},
	}

	got := FindInRange(tasks, at(9, 0), at(12, 0))
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("range 09-12 = %+v, want only b", got)
	}

	// a task straddling the window start still counts
	got = FindInRange(tasks, at(8, 15), at(9, 0))
	if len(got) != 1 || got[0].Title != "a" {
		t.Fatalf("range 08:15-09 = %+v, want only a", got)
	}
}

func TestNewRegistryRejectsBadInput(t *testing.T) {
	_, err := NewRegistry(nil, []Template{{Key: "x", DurationMinutes: 0}})
	if err == nil {
		t.Fatal("non-positive duration accepted")
	}

	_, err = NewRegistry(nil, []Template{{Key: "x", DurationMinutes: 10, TagName: "ghost"}})
	if err == nil {
		t.Fatal("unknown tag reference accepted")
	}

	_, err = NewRegistry(nil, []Template{
		{Key: "x", DurationMinutes: 10},
		{Key: "x", DurationMinutes: 20},
	})
	if err == nil {
		t.Fatal("duplicate key accepted")
	}
}

func TestRegistryTagCascade(t *testing.T) {
	tags := []Tag{{Name: "loud", HasAlarm: true, AlarmSound: "bell"}}
	tpls := []Template{
		{Key: "a", DurationMinutes: 10, TagName: "loud"},
		{Key: "b", DurationMinutes: 10, TagName: "loud", AlarmSound: "own"},
	}
	reg, err := NewRegistry(tags, tpls)
	if err != nil {
		t.Fatal(err)
	}

	if got := reg.Resolve("a"); !got.HasAlarm || got.AlarmSound != "bell" {
		t.Fatalf("a = %+v, want tag alarm bell", got)
	}
	if got := reg.Resolve("b"); got.AlarmSound != "own" {
		t.Fatalf("b sound = %q, template value must win over tag", got.AlarmSound)
	}
}

func TestResolveUnknownKeySynthesizes(t *testing.T) {
	reg := DefaultRegistry()

	tpl := reg.Resolve("nap")
	if reg.Has("nap") {
		t.Fatal("synthesized key must not enter the registry")
	}
	if tpl.Title != "nap" {
		t.Fatalf("title = %q, want raw key", tpl.Title)
	}
	if tpl.DurationMinutes != 30 {
		t.Fatalf("duration = %d, want 30", tpl.DurationMinutes)
	}
	if zeroColor(tpl.FillColor) || zeroColor(tpl.BorderColor) {
		t.Fatal("synthesized template missing colors")
	}
}

func TestDefaultRegistryKnownKeys(t *testing.T) {
	reg := DefaultRegistry()
	for _, key := range []string{"standup", "focus", "dine", "sleep", "drawing"} {
		if !reg.Has(key) {
			t.Fatalf("missing built-in template %q", key)
		}
	}
	if tpl := reg.Resolve("standup"); !tpl.HasAlarm || tpl.AlarmSound != "EWMF" {
		t.Fatalf("standup = %+v, want EWMF alarm", tpl)
	}
}
