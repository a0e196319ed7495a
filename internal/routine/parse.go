package routine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// Parse reads the compact routine syntax:
//
//	"8:00 standup --8:15, 9:00 focus, 10:00 run"
//
// Each comma-separated item is "HH:MM key" with an optional "--HH:MM"
// end-time override. Without an override the entry runs until the next
// entry's start, unless the template default duration is shorter than
// that gap, in which case the default wins.
func Parse(s string, reg *task.Registry) ([]Entry, error) {
	items := splitItems(s)
	if len(items) == 0 {
		return nil, fmt.Errorf("routine: empty definition")
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		head, tail, hasStop := strings.Cut(item, "--")

		timeStr, key, ok := strings.Cut(strings.TrimSpace(head), " ")
		if !ok {
			return nil, fmt.Errorf("routine: item %q: want \"HH:MM key\"", item)
		}
		key = strings.TrimSpace(key)
		h, m, err := parseClock(timeStr)
		if err != nil {
			return nil, fmt.Errorf("routine: item %q: %w", item, err)
		}

		e := Entry{Key: key, Hour: h, Minute: m}

		if hasStop {
			eh, em, err := parseClock(strings.TrimSpace(tail))
			if err != nil {
				return nil, fmt.Errorf("routine: item %q: bad stop time: %w", item, err)
			}
			dur := (eh*60 + em) - (h*60 + m)
			if dur <= 0 {
				return nil, fmt.Errorf("routine: item %q: stop time not after start", item)
			}
			e.DurationMinutes = dur
		} else if i+1 < len(items) {
			// Run until the next entry unless the template default is shorter.
			nextHead, _, _ := strings.Cut(items[i+1], "--")
			nextTime, _, _ := strings.Cut(strings.TrimSpace(nextHead), " ")
			nh, nm, err := parseClock(nextTime)
			if err == nil {
				gap := (nh*60 + nm) - (h*60 + m)
				if def := reg.Resolve(key).DurationMinutes; gap < def {
					e.DurationMinutes = gap
				}
			}
		}

		entries = append(entries, e)
	}
	return entries, nil
}

func splitItems(s string) []string {
	raw := strings.Split(s, ",")
	items := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := strings.TrimSpace(r); t != "" {
			items = append(items, t)
		}
	}
	return items
}

func parseClock(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("bad clock %q", s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("bad hour %q", hs)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(ms))
	if err != nil {
		return 0, 0, fmt.Errorf("bad minute %q", ms)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return hour, minute, nil
}
