package timeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is a YAML description of one or more games, used to seed a store.
type Fixture struct {
	Games []FixtureGame `yaml:"games"`
}

// FixtureGame is one game with its timeline and manifest.
type FixtureGame struct {
	ID       string            `yaml:"id"`
	Date     string            `yaml:"date"`
	Home     string            `yaml:"home"`
	Away     string            `yaml:"away"`
	Manifest []FixtureManifest `yaml:"manifest"`
	Events   []FixtureEvent    `yaml:"events"`
	Shifts   []FixtureShift    `yaml:"shifts"`
}

// FixtureManifest maps a period to its source video.
type FixtureManifest struct {
	Period   int     `yaml:"period"`
	Source   string  `yaml:"source"`
	Offset   float64 `yaml:"offset"`
	Duration float64 `yaml:"duration"`
}

// FixtureEvent is one play-by-play event.
type FixtureEvent struct {
	ID       string            `yaml:"id"`
	Period   int               `yaml:"period"`
	Timecode float64           `yaml:"timecode"`
	Type     string            `yaml:"type"`
	Outcome  string            `yaml:"outcome"`
	Team     string            `yaml:"team"`
	Players  []string          `yaml:"players"`
	Extra    map[string]string `yaml:"extra"`
}

// FixtureShift is one player shift.
type FixtureShift struct {
	ID     string  `yaml:"id"`
	Period int     `yaml:"period"`
	Player string  `yaml:"player"`
	Team   string  `yaml:"team"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids, dates and shift bounds.
func (f *Fixture) Validate() error {
	seenGames := make(map[string]bool)
	for _, g := range f.Games {
		if g.ID == "" {
			return fmt.Errorf("fixture: game without id")
		}
		if seenGames[g.ID] {
			return fmt.Errorf("fixture: duplicate game %s", g.ID)
		}
		seenGames[g.ID] = true
		if _, err := parseDate(g.Date); err != nil {
			return fmt.Errorf("fixture: game %s: %w", g.ID, err)
		}
		for _, e := range g.Events {
			if e.ID == "" {
				return fmt.Errorf("fixture: game %s has an event without id", g.ID)
			}
		}
		for _, s := range g.Shifts {
			if s.ID == "" || s.Player == "" {
				return fmt.Errorf("fixture: game %s has a shift without id or player", g.ID)
			}
			if s.End <= s.Start {
				return fmt.Errorf("fixture: shift %s ends before it starts", s.ID)
			}
		}
		for _, m := range g.Manifest {
			if m.Source == "" {
				return fmt.Errorf("fixture: game %s period %d has no source", g.ID, m.Period)
			}
		}
	}
	return nil
}
