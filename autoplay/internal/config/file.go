// Package config handles nextplay configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/nextplay/autoplay/dom"
	"github.com/hazyhaar/nextplay/autoplay/handshake"
)

// Config is the top-level nextplay configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Pages   []PageConfig  `yaml:"pages"`
	Timing  TimingConfig  `yaml:"timing"`
	Match   MatchConfig   `yaml:"match"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	HTTP    HTTPConfig    `yaml:"http"`

	// PagesDB is an optional SQLite file whose play_pages table adds pages
	// at runtime.
	PagesDB string `yaml:"pages_db"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
}

// PageConfig defines a page to drive.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// TimingConfig holds the orchestration and handshake durations.
type TimingConfig struct {
	Debounce         time.Duration `yaml:"debounce"`
	Settle           time.Duration `yaml:"settle"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PollTimeout      time.Duration `yaml:"poll_timeout"`
	AnnounceInterval time.Duration `yaml:"announce_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// MatchConfig holds what the scanner and handshake look for.
type MatchConfig struct {
	Label         string   `yaml:"label"`
	FramePatterns []string `yaml:"frame_patterns"`
	OriginHosts   []string `yaml:"origin_hosts"`
}

// SinkConfig defines a report backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | sqlite
	URL  string `yaml:"url"`  // webhook
	Path string `yaml:"path"` // sqlite
}

// HTTPConfig enables the status, trigger, metrics and MCP endpoints.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
	MCP  bool   `yaml:"mcp"`
}

// LoadFile reads a YAML configuration file and fills defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero value.
func (c *Config) ApplyDefaults() {
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	c.Timing.ApplyDefaults()
	c.Match.ApplyDefaults()
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %q has no url", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: unknown browser.stealth %q", c.Browser.Stealth)
	}
	return nil
}

// ApplyDefaults fills zero durations with the standard timings.
func (t *TimingConfig) ApplyDefaults() {
	if t.Debounce <= 0 {
		t.Debounce = 400 * time.Millisecond
	}
	if t.Settle <= 0 {
		t.Settle = 100 * time.Millisecond
	}
	if t.PollInterval <= 0 {
		t.PollInterval = 250 * time.Millisecond
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = 15 * time.Second
	}
	if t.AnnounceInterval <= 0 {
		t.AnnounceInterval = 300 * time.Millisecond
	}
	if t.HandshakeTimeout <= 0 {
		t.HandshakeTimeout = 10 * time.Second
	}
}

// ApplyDefaults fills the label and patterns of the video host.
func (m *MatchConfig) ApplyDefaults() {
	if m.Label == "" {
		m.Label = dom.DefaultLabel
	}
	if len(m.FramePatterns) == 0 {
		m.FramePatterns = append([]string(nil), dom.DefaultFramePatterns...)
	}
	if len(m.OriginHosts) == 0 {
		m.OriginHosts = append([]string(nil), handshake.DefaultOriginHosts...)
	}
}
