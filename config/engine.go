package config

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	yaml "go.yaml.in/yaml/v3"

	"github.com/tazhate/familyreminders/internal/domain"
	"github.com/tazhate/familyreminders/internal/planner"
	"github.com/tazhate/familyreminders/internal/recurrence"
)

// EngineConfig holds the scheduling knobs that can change without a
// restart. Example:
//
//	horizons:
//	  upcoming: 30
//	  interval_materialization: 60
//	birthday:
//	  advance: "09:00"
//	  midnight: "00:01"
//	  congratulate: "09:00"
//	retry:
//	  max_attempts: 3
//	  base_delay: 500ms
//	schedules:
//	  rematerialize: "5 0 * * *"
type EngineConfig struct {
	Horizons  recurrence.Horizons   `yaml:"horizons"`
	Birthday  planner.BirthdayTimes `yaml:"birthday"`
	Retry     planner.RetryPolicy   `yaml:"retry"`
	Schedules Schedules             `yaml:"schedules"`
}

// Schedules are cron specs (5 fields) in the configured timezone.
type Schedules struct {
	Rematerialize string `yaml:"rematerialize"`
	Digest        string `yaml:"digest"`
	CalendarSync  string `yaml:"calendar_sync"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Horizons: recurrence.DefaultHorizons,
		Birthday: planner.DefaultBirthdayTimes,
		Retry:    planner.DefaultRetryPolicy,
		Schedules: Schedules{
			Rematerialize: "5 0 * * *",
			Digest:        "0 9 * * *",
			CalendarSync:  "30 3 * * *",
		},
	}
}

// ParseEngine decodes YAML over the defaults and validates the result.
func ParseEngine(data []byte) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	cfg.Horizons = cfg.Horizons.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func LoadEngine(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, err
	}
	return ParseEngine(data)
}

func (c EngineConfig) Validate() error {
	for name, tod := range map[string]domain.TimeOfDay{
		"birthday.advance":      c.Birthday.Advance,
		"birthday.midnight":     c.Birthday.Midnight,
		"birthday.congratulate": c.Birthday.Congratulate,
	} {
		if !tod.Valid() {
			return fmt.Errorf("%s: invalid time %s", name, tod)
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{
		"schedules.rematerialize": c.Schedules.Rematerialize,
		"schedules.digest":        c.Schedules.Digest,
		"schedules.calendar_sync": c.Schedules.CalendarSync,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
