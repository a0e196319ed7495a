package routine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// presetYAML is one preset in the routine file.
type presetYAML struct {
	Name    string `yaml:"name"`
	Entries string `yaml:"entries"`
}

// fileYAML is the on-disk routine file shape.
type fileYAML struct {
	Default   presetYAML            `yaml:"default"`
	Weekdays  map[string]presetYAML `yaml:"weekdays"`
	Overrides map[string]presetYAML `yaml:"overrides"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadFile reads a routine Set from a YAML file. Every preset uses the
// compact entries syntax understood by Parse. The whole set is validated
// against the registry before being returned.
func LoadFile(path string, reg *task.Registry) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f fileYAML
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("routine: %s: %w", path, err)
	}
	if f.Default.Entries == "" {
		return nil, fmt.Errorf("routine: %s: missing default preset", path)
	}

	set := &Set{
		Weekdays:  make(map[time.Weekday]DayPreset),
		Overrides: make(map[string]DayPreset),
	}

	set.Default, err = buildPreset("default", f.Default, reg)
	if err != nil {
		return nil, err
	}
	for name, p := range f.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("routine: %s: unknown weekday %q", path, name)
		}
		set.Weekdays[wd], err = buildPreset(name, p, reg)
		if err != nil {
			return nil, err
		}
	}
	for key, p := range f.Overrides {
		if len(key) != 4 {
			return nil, fmt.Errorf("routine: %s: override key %q is not MMDD", path, key)
		}
		set.Overrides[key], err = buildPreset(key, p, reg)
		if err != nil {
			return nil, err
		}
	}

	if err := set.Validate(reg); err != nil {
		return nil, err
	}
	return set, nil
}

func buildPreset(fallbackName string, p presetYAML, reg *task.Registry) (DayPreset, error) {
	entries, err := Parse(p.Entries, reg)
	if err != nil {
		return DayPreset{}, err
	}
	name := p.Name
	if name == "" {
		name = fallbackName
	}
	return DayPreset{Name: name, Entries: entries}, nil
}
