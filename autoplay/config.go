package autoplay

import (
	"github.com/hazyhaar/nextplay/autoplay/internal/config"
)

// Config is the top-level nextplay configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to drive.
type PageConfig = config.PageConfig

// TimingConfig holds orchestration and handshake durations.
type TimingConfig = config.TimingConfig

// MatchConfig holds the control label, frame patterns and accepted origins.
type MatchConfig = config.MatchConfig

// SinkConfig defines a report backend.
type SinkConfig = config.SinkConfig

// HTTPConfig enables the HTTP and MCP endpoints.
type HTTPConfig = config.HTTPConfig

// PageStore is the SQLite-backed runtime page list.
type PageStore = config.PageStore

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// OpenPageStore opens the runtime page database at path.
func OpenPageStore(path string) (*PageStore, error) {
	return config.OpenPageStore(path)
}
