// Package config handles openpaper configuration from YAML files, with
// defaults applied after load. Environment overrides live in the cmds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server is the backend configuration.
type Server struct {
	Addr string `yaml:"addr"`
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`
	// JWTSecret signs session tokens. Required, at least 32 bytes.
	JWTSecret string    `yaml:"jwt_secret"`
	LLM       LLMConfig `yaml:"llm"`
	// DailyQuotaChars is the per-user translated-character budget over a
	// rolling 24h window. 0 disables the quota.
	DailyQuotaChars  int           `yaml:"daily_quota_chars"`
	TranslateTimeout time.Duration `yaml:"translate_timeout"`
	LogLevel         string        `yaml:"log_level"`
	// MCPTransport enables the MCP tool surface ("stdio" or empty).
	MCPTransport string `yaml:"mcp_transport"`
}

// LLMConfig selects the translation provider.
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// Viewer is the document-viewer configuration.
type Viewer struct {
	// ServerURL is the backend base URL, without trailing slash.
	ServerURL string `yaml:"server_url"`
	// AuthToken authenticates viewer requests against the backend.
	AuthToken string `yaml:"auth_token"`
	// BrowserRemote is the WebSocket URL of an external Chromium.
	// Empty launches a local one.
	BrowserRemote  string `yaml:"browser_remote"`
	TargetLanguage string `yaml:"target_language"`
	LogLevel       string `yaml:"log_level"`
	Tuning         Tuning `yaml:"tuning"`
}

// Tuning exposes the selection pipeline constants. The defaults are the
// shipped behavior; the knobs exist for experimentation.
type Tuning struct {
	// SettleTimeout is the safety bound on waiting for a selection to
	// settle after pointer release.
	SettleTimeout time.Duration `yaml:"settle_timeout"`
	// CharBudget caps the selected text length sent for translation.
	CharBudget int `yaml:"char_budget"`
	// DragThresholdPx distinguishes a click from a drag.
	DragThresholdPx float64 `yaml:"drag_threshold_px"`
	// ContextChars is how much surrounding text the viewer sends along.
	ContextChars int `yaml:"context_chars"`
	// RequestTimeout is the client-side wall clock bound per translation.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoadServer reads a YAML server configuration file.
func LoadServer(path string) (*Server, error) {
	var cfg Server
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadViewer reads a YAML viewer configuration file.
func LoadViewer(path string) (*Viewer, error) {
	var cfg Viewer
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// DefaultServer returns the server configuration with all defaults, for
// running without a config file.
func DefaultServer() *Server {
	var cfg Server
	cfg.applyDefaults()
	return &cfg
}

// DefaultViewer returns the viewer configuration with all defaults.
func DefaultViewer() *Viewer {
	var cfg Viewer
	cfg.applyDefaults()
	return &cfg
}

func (c *Server) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8085"
	}
	if c.DBPath == "" {
		c.DBPath = "db/openpaper.db"
	}
	if c.DailyQuotaChars == 0 {
		c.DailyQuotaChars = 200_000
	}
	if c.TranslateTimeout <= 0 {
		c.TranslateTimeout = 12 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 30 * time.Second
	}
}

func (c *Viewer) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8085"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "zh-CN"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Tuning.applyDefaults()
}

func (t *Tuning) applyDefaults() {
	if t.SettleTimeout <= 0 {
		t.SettleTimeout = 2500 * time.Millisecond
	}
	if t.CharBudget <= 0 {
		t.CharBudget = 2400
	}
	if t.DragThresholdPx <= 0 {
		t.DragThresholdPx = 4
	}
	if t.ContextChars <= 0 {
		t.ContextChars = 220
	}
	if t.RequestTimeout <= 0 {
		t.RequestTimeout = 18 * time.Second
	}
}
