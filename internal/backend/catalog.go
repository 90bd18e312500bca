package backend

import (
	"fmt"
	"os"
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
	"gopkg.in/yaml.v3"
)

// Source types
const (
	SourceTypeM3U    = "m3u"
	SourceTypeStatic = "static"
)

// Catalog is the list of configured backends
type Catalog struct {
	Backends []Entry `yaml:"backends"`
}

// Entry configures one backend
type Entry struct {
	ID       int            `yaml:"id"`
	Name     string         `yaml:"name"`
	Priority int            `yaml:"priority"`
	Enabled  *bool          `yaml:"enabled"`
	Type     string         `yaml:"type"`
	Path     string         `yaml:"path"`
	Channels []ChannelEntry `yaml:"channels"`
}

// ChannelEntry is an inline channel of a static backend
type ChannelEntry struct {
	UniqueID int      `yaml:"uid"`
	Name     string   `yaml:"name"`
	Icon     string   `yaml:"icon"`
	Number   string   `yaml:"number"`
	Radio    bool     `yaml:"radio"`
	Groups   []string `yaml:"groups"`
	EPGID    int      `yaml:"epg_id"`
}

// IsEnabled reports whether the backend is enabled. Backends are enabled unless configured otherwise.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// LoadCatalog reads a backend catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML backend catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse backend catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks ids, types and paths of all entries
func (c *Catalog) Validate() error {
	seen := make(map[int]bool, len(c.Backends))
	for _, e := range c.Backends {
		if e.ID <= 0 {
			return fmt.Errorf("backend %q: id must be > 0", e.Name)
		}
		if seen[e.ID] {
			return fmt.Errorf("backend %d: duplicate id", e.ID)
		}
		seen[e.ID] = true

		switch e.Type {
		case SourceTypeM3U:
			if e.Path == "" {
				return fmt.Errorf("backend %d: m3u source requires a path", e.ID)
			}
		case SourceTypeStatic, "":
		default:
			return fmt.Errorf("backend %d: %w: %s", e.ID, ErrUnknownSourceType, e.Type)
		}
	}
	return nil
}

// NewSource builds the source an entry describes
func (e Entry) NewSource(timeout time.Duration) (Source, error) {
	switch e.Type {
	case SourceTypeM3U:
		return NewM3USource(e.Path, timeout), nil
	case SourceTypeStatic, "":
		channels := make([]SourceChannel, 0, len(e.Channels))
		for i, c := range e.Channels {
			ch := SourceChannel{
				UniqueID: c.UniqueID,
				Name:     c.Name,
				IconPath: c.Icon,
				Radio:    c.Radio,
				Groups:   c.Groups,
				EPGID:    c.EPGID,
				Order:    i + 1,
			}
			if c.Number != "" {
				number, err := models.ParseChannelNumber(c.Number)
				if err != nil {
					return nil, fmt.Errorf("backend %d channel %q: %w", e.ID, c.Name, err)
				}
				ch.Number = number
			}
			channels = append(channels, ch)
		}
		return NewStaticSource(channels...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, e.Type)
	}
}
