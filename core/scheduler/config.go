package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntryConfig is the file form of a catalog entry.
type EntryConfig struct {
	ID            string `json:"id" yaml:"id"`
	Strategy      string `json:"strategy" yaml:"strategy"`
	Start         []int  `json:"start,omitempty" yaml:"start,omitempty"`
	Deadline      []int  `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Duration      int    `json:"duration,omitempty" yaml:"duration,omitempty"`
	DurationRange []int  `json:"duration_range,omitempty" yaml:"duration_range,omitempty"`
	After         string `json:"after,omitempty" yaml:"after,omitempty"`
	Fallback      []int  `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// CatalogConfig is the root of a catalog file.
type CatalogConfig struct {
	Appliances []EntryConfig `json:"appliances" yaml:"appliances"`
}

// Entry converts the file form into a typed strategy. Range bounds are not
// checked here; malformed ranges surface as ConfigurationError when a plan is
// drawn so they only affect their own appliance.
func (c EntryConfig) Entry() (Entry, error) {
	if c.ID == "" {
		return Entry{}, fmt.Errorf("catalog entry without id")
	}
	switch strings.ToLower(c.Strategy) {
	case "deadline":
		return Entry{ID: c.ID, Strategy: Deadline{Start: c.Start, Deadline: c.Deadline, Duration: c.Duration}}, nil
	case "dependent":
		if c.After == "" {
			return Entry{}, fmt.Errorf("appliance %s: dependent strategy needs after", c.ID)
		}
		fb := Window{Start: 60, End: 68}
		if len(c.Fallback) == 2 {
			fb = Window{Start: c.Fallback[0], End: c.Fallback[1]}
		}
		return Entry{ID: c.ID, Strategy: Dependent{After: c.After, Duration: c.Duration, Fallback: fb}}, nil
	case "flexible":
		dur := c.DurationRange
		if dur == nil && c.Duration > 0 {
			dur = []int{c.Duration, c.Duration}
		}
		return Entry{ID: c.ID, Strategy: Flexible{Start: c.Start, Duration: dur}}, nil
	default:
		return Entry{}, fmt.Errorf("appliance %s: unknown strategy %q", c.ID, c.Strategy)
	}
}

// Catalog converts every entry.
func (c CatalogConfig) Catalog() (Catalog, error) {
	out := make(Catalog, 0, len(c.Appliances))
	for _, ec := range c.Appliances {
		e, err := ec.Entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadCatalog loads a catalog from a JSON or YAML file.
func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeCatalog(f, ext)
}

// DecodeCatalog reads a catalog in the given format from r.
func DecodeCatalog(r io.Reader, format string) (Catalog, error) {
	var cfg CatalogConfig
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", format)
	}
	return cfg.Catalog()
}
