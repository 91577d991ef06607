package commands

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the YAML configuration shape for clone/pull, mirroring the
// teacher's migrate.go ConfigFile but trimmed to this system's CVS-only,
// one-way, trunk-only domain: no target.type/remote (always a local bare
// Git repository) and no branch/tag mappings (both explicit Non-goals).
type ConfigFile struct {
	Source struct {
		Path string `yaml:"path"`
	} `yaml:"source"`

	Target struct {
		Path string `yaml:"path"`
	} `yaml:"target"`

	Mapping struct {
		Authors map[string]string `yaml:"authors"`
	} `yaml:"mapping"`

	Options struct {
		QuietPeriod         int  `yaml:"quietPeriod"` // seconds
		StopOnUnknownAuthor bool `yaml:"stopOnUnknownAuthor"`
		ChunkSize           int  `yaml:"chunkSize"`
		Verbose             bool `yaml:"verbose"`
	} `yaml:"options"`
}

// QuietPeriodDuration returns Options.QuietPeriod as a time.Duration, or 0
// if unset so changeset.New falls back to its own default.
func (c *ConfigFile) QuietPeriodDuration() time.Duration {
	if c.Options.QuietPeriod <= 0 {
		return 0
	}
	return time.Duration(c.Options.QuietPeriod) * time.Second
}

func loadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Source.Path == "" {
		return nil, fmt.Errorf("source.path is required")
	}
	if config.Target.Path == "" {
		return nil, fmt.Errorf("target.path is required")
	}
	if config.Mapping.Authors == nil {
		config.Mapping.Authors = make(map[string]string)
	}
	if config.Options.ChunkSize <= 0 {
		config.Options.ChunkSize = 100
	}

	return &config, nil
}
