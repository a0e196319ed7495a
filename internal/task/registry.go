package task

import (
	"fmt"

	"github.com/Melokeo/Timetable4Inky/internal/style"
)

// Registry maps template keys to validated templates. Unknown keys
// resolve to a synthesized default entry at render time instead of
// failing the frame.
type Registry struct {
	tags      map[string]Tag
	templates map[string]Template
}

// NewRegistry validates the given tags and templates: every template
// must reference a known tag and carry a positive default duration.
// Tag-inherited colors are resolved here so lookups stay flat.
func NewRegistry(tags []Tag, templates []Template) (*Registry, error) {
	r := &Registry{
		tags:      make(map[string]Tag, len(tags)),
		templates: make(map[string]Template, len(templates)),
	}
	for _, tg := range tags {
		if tg.Name == "" {
			return nil, fmt.Errorf("task: tag with empty name")
		}
		if _, dup := r.tags[tg.Name]; dup {
			return nil, fmt.Errorf("task: duplicate tag %q", tg.Name)
		}
		r.tags[tg.Name] = tg
	}
	for _, tpl := range templates {
		if tpl.Key == "" {
			return nil, fmt.Errorf("task: template with empty key")
		}
		if _, dup := r.templates[tpl.Key]; dup {
			return nil, fmt.Errorf("task: duplicate template %q", tpl.Key)
		}
		if tpl.DurationMinutes <= 0 {
			return nil, fmt.Errorf("task: template %q has non-positive duration", tpl.Key)
		}
		tg, ok := r.tags[tpl.TagName]
		if tpl.TagName != "" && !ok {
			return nil, fmt.Errorf("task: template %q references unknown tag %q", tpl.Key, tpl.TagName)
		}
		r.templates[tpl.Key] = applyTag(tpl, tg)
	}
	return r, nil
}

// applyTag fills unset template fields from the tag, then from hard
// defaults, mirroring how tags cascade presentation rules.
func applyTag(tpl Template, tg Tag) Template {
	if zeroColor(tpl.TextColor) {
		tpl.TextColor = tg.TextColor
	}
	if zeroColor(tpl.BorderColor) {
		tpl.BorderColor = tg.BorderColor
	}
	if zeroColor(tpl.FillColor) {
		tpl.FillColor = tg.FillColor
	}
	if !tpl.HasAlarm {
		tpl.HasAlarm = tg.HasAlarm
	}
	if tpl.AlarmSound == "" {
		tpl.AlarmSound = tg.AlarmSound
	}
	if zeroColor(tpl.TextColor) {
		tpl.TextColor = defaultTextColor
	}
	if zeroColor(tpl.BorderColor) {
		tpl.BorderColor = style.Mix(style.R(5), style.W(18))
	}
	if zeroColor(tpl.FillColor) {
		tpl.FillColor = style.White
	}
	return tpl
}

// Resolve returns the template for key. Unknown keys yield a default
// template titled with the raw key so routines never fail to build.
func (r *Registry) Resolve(key string) Template {
	if tpl, ok := r.templates[key]; ok {
		return tpl
	}
	return applyTag(Template{
		Key:             key,
		Title:           key,
		DurationMinutes: 30,
	}, r.tags["self"])
}

// Has reports whether key is a known template.
func (r *Registry) Has(key string) bool {
	_, ok := r.templates[key]
	return ok
}

// DefaultRegistry is the built-in preset used when no custom registry is
// configured. Durations and grouping follow the household timetable this
// project was built for.
func DefaultRegistry() *Registry {
	tags := []Tag{
		{
			Name:        "survive",
			FillColor:   style.Mix(style.B(5), style.R(3), style.W(38)),
			BorderColor: style.Mix(style.B(5), style.R(3), style.W(8), style.K(1.5)),
			HasAlarm:    true,
			AlarmSound:  "173",
		},
		{
			Name:        "self",
			FillColor:   style.Mix(style.Y(5), style.R(5), style.W(15)),
			BorderColor: style.Mix(style.Y(2), style.R(5), style.W(8), style.K(1.5)),
			HasAlarm:    true,
			AlarmSound:  "default",
		},
		{
			Name:        "work",
			FillColor:   style.Mix(style.R(5), style.W(15)),
			BorderColor: style.Mix(style.R(5), style.W(8), style.K(1.5)),
		},
		{
			Name:        "exer",
			FillColor:   style.Mix(style.R(10), style.W(15)),
			BorderColor: style.Mix(style.R(10), style.W(6), style.K(1.5)),
			HasAlarm:    true,
			AlarmSound:  "uprising",
		},
	}
	templates := []Template{
		{
			Key: "standup", Title: "Morning standup", DurationMinutes: 15, TagName: "survive",
			FillColor:   style.Mix(style.B(1), style.G(0.3), style.W(6)),
			BorderColor: style.Mix(style.B(1), style.W(1)),
			AlarmSound:  "EWMF",
		},
		{Key: "drawing", Title: "Sketching", DurationMinutes: 120, TagName: "self"},
		{Key: "music", Title: "Compose / practice", DurationMinutes: 30, TagName: "self"},
		{Key: "focus", Title: "Deep work", DurationMinutes: 60, TagName: "work"},
		{Key: "run", Title: "Go run!", DurationMinutes: 50, TagName: "exer"},
		{Key: "gym", Title: "Gym session", DurationMinutes: 40, TagName: "exer"},
		{Key: "class", Title: "Class", DurationMinutes: 120, TagName: "self"},
		{Key: "care", Title: "Chores", DurationMinutes: 25, TagName: "survive"},
		{Key: "cook", Title: "Cooking", DurationMinutes: 45, TagName: "survive"},
		{Key: "dine", Title: "Mealtime", DurationMinutes: 25, TagName: "survive"},
		{Key: "sleep", Title: "Lights out", DurationMinutes: 680, TagName: "survive"},
	}
	r, err := NewRegistry(tags, templates)
	if err != nil {
		// The built-in preset is compiled in; a failure here is a bug.
		panic("task: default registry invalid: " + err.Error())
	}
	return r
}
