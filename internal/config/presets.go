package config

import (
	"sort"
	"time"
)

// Presets adjust the defaults for a kind of match.
var Presets = map[string]func(*Config){
	"competition": func(c *Config) {},
	// Skills runs are long and unattended, so settle tighter and give
	// segments more time.
	"skills": func(c *Config) {
		c.Routine = "skills"
		c.Linear.SmallError = 0.3
		c.Angular.SmallError = 0.015
		c.Linear.LargeTimeout = 700 * time.Millisecond
		c.Chassis.SettleRadius = 6
		c.Sim.Timeout = 60 * time.Second
	},
	// Gentle is for practice fields and first runs of a new routine.
	"gentle": func(c *Config) {
		c.Linear.Kp *= 0.6
		c.Angular.Kp *= 0.6
		c.Linear.Slew = 2
		c.Angular.Slew = 4
		c.Chassis.MaxAngular = 0.6
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Preset = name
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
