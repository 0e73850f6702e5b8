package models

import "time"

// Config represents the main configuration
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Emulation EmulationConfig `mapstructure:"emulation"`
	Output    OutputConfig    `mapstructure:"output"`
	Lists     []FilterList    `mapstructure:"lists"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// EmulationConfig controls the re-evaluation loop
type EmulationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"` // 0 disables polling
	Settle       time.Duration `mapstructure:"settle"`        // quiet period before a session result is written
	Concurrency  int           `mapstructure:"concurrency"`   // pages processed in parallel by apply
}

// OutputConfig contains output settings
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	InjectStyles bool   `mapstructure:"inject_styles"`
	HideInline   bool   `mapstructure:"hide_inline"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}
