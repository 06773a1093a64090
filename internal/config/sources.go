package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// SourceSettings holds one source's entry in sources.yaml.
type SourceSettings struct {
	Enabled     *bool         `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
	MinInterval time.Duration `yaml:"min_interval"`
	Departments []string      `yaml:"departments"`
	MaxPages    int           `yaml:"max_pages"`
}

// IsEnabled reports whether the source should be scraped. Sources are
// enabled unless the file says otherwise.
func (s SourceSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SourcesFile is the parsed shape of sources.yaml.
type SourcesFile struct {
	Sources map[string]SourceSettings `yaml:"sources"`
}

// LoadSources parses the per-source settings file. A missing file is not
// an error; every registered source then runs with its defaults.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SourcesFile{Sources: map[string]SourceSettings{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if file.Sources == nil {
		file.Sources = map[string]SourceSettings{}
	}
	return &file, nil
}

// Settings returns the entry for name, zero-valued when the file has none.
func (f *SourcesFile) Settings(name string) SourceSettings {
	return f.Sources[name]
}
