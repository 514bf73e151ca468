package main

import (
	"fmt"
	"os"

	"github.com/mfield4/skirmish/internal/models"
	"gopkg.in/yaml.v3"
)

// Config is the scheduler's yaml configuration: the durations every new
// round is created with and how often the internal runner ticks.
type Config struct {
	Round struct {
		WaitingDurationSec  int    `yaml:"waiting_duration_sec"`
		ActiveDurationSec   int    `yaml:"active_duration_sec"`
		CooldownDurationSec int    `yaml:"cooldown_duration_sec"`
		AssignmentAlgorithm string `yaml:"assignment_algorithm"`
	} `yaml:"round"`
	Scheduler struct {
		TickIntervalSec int `yaml:"tick_interval_sec"`
	} `yaml:"scheduler"`
}

func defaultConfig() *Config {
	var config Config
	config.Round.WaitingDurationSec = 60
	config.Round.ActiveDurationSec = 360
	config.Round.CooldownDurationSec = 120
	config.Round.AssignmentAlgorithm = "round_robin"
	config.Scheduler.TickIntervalSec = 60
	return &config
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func (c *Config) roundSettings() models.SessionSettings {
	return models.SessionSettings{
		WaitingDurationSec:  c.Round.WaitingDurationSec,
		ActiveDurationSec:   c.Round.ActiveDurationSec,
		CooldownDurationSec: c.Round.CooldownDurationSec,
		AssignmentAlgorithm: c.Round.AssignmentAlgorithm,
	}
}
