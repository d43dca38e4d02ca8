// internal/config/config.go
//
// This package handles configuration and the .releasedesk directory structure.
// Every project directory that runs releasedesk gets a .releasedesk/ folder.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	// DeskDir is the name of the directory we create in each project
	DeskDir = ".releasedesk"

	ModeIdenticalBatches   = "identical_batches"
	ModeConsecutiveBatches = "consecutive_batches"

	BackendSimulated = "simulated"
	BackendHTTP      = "http"

	defaultBackendName = "SAP RFC"
	defaultDemoUser    = "operador"
	defaultDemoSecret  = "modelo2024"
	defaultSuccessRate = 0.9
)

// Timing holds the delays of a release run.
type Timing struct {
	StartDelay     time.Duration `yaml:"start_delay"`
	HandshakeDelay time.Duration `yaml:"handshake_delay"`
	ProcessBase    time.Duration `yaml:"process_base"`
	ProcessJitter  time.Duration `yaml:"process_jitter"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
}

// ReleaseConfig captures release workflow preferences.
type ReleaseConfig struct {
	Mode        string   `yaml:"mode"`
	// SuccessRate is a pointer so an explicit 0 survives defaulting.
	SuccessRate *float64 `yaml:"success_rate,omitempty"`
	Timing      Timing   `yaml:"timing"`
}

// BackendConfig selects the system orders are released to.
type BackendConfig struct {
	Kind          string        `yaml:"kind"`
	Name          string        `yaml:"name"`
	URL           string        `yaml:"url,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
}

// User is one operator allowed to log in.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// AuthConfig lists the operators.
type AuthConfig struct {
	Users []User `yaml:"users"`
}

// LoggingConfig tunes the diagnostic log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BridgeConfig mirrors the optional HTTP bridge block.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .releasedesk/config.yaml.
type ProjectConfig struct {
	Version          int           `yaml:"version"`
	Release          ReleaseConfig `yaml:"release"`
	Backend          BackendConfig `yaml:"backend"`
	Auth             AuthConfig    `yaml:"auth"`
	Logging          LoggingConfig `yaml:"logging"`
	Bridge           BridgeConfig  `yaml:"bridge"`
	SeedSampleOrders *bool         `yaml:"seed_sample_orders,omitempty"`
}

// Config holds the runtime configuration for releasedesk.
type Config struct {
	// ProjectDir is the directory where the user ran `releasedesk` from
	ProjectDir string

	// DeskProjectDir is ProjectDir/.releasedesk
	DeskProjectDir string

	// mu guards Project once the TUI and the bridge share the config.
	mu      sync.RWMutex
	Project ProjectConfig
}

// InitDeskDir creates the .releasedesk directory structure in the given
// project directory and writes a default config.yaml when none exists.
//
// Structure created:
// .releasedesk/
// ├── config.yaml
// └── logs/       <- diagnostic log and activity journal
func InitDeskDir(projectDir string) error {
	deskDir := filepath.Join(projectDir, DeskDir)
	if err := os.MkdirAll(filepath.Join(deskDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(deskDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:     projectDir,
		DeskProjectDir: filepath.Join(projectDir, DeskDir),
		Project:        DefaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.DeskProjectDir, "logs")
}

// ActivityJournalPath returns the file mirroring the activity log.
func (c *Config) ActivityJournalPath() string {
	return filepath.Join(c.LogsDir(), "activity.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.DeskProjectDir, "config.yaml")
}

// ReleaseMode returns the configured release mode.
func (c *Config) ReleaseMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Project.Release.Mode
}

// SuccessRate returns the simulated backend's success probability.
func (c *Config) SuccessRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Project.Release.SuccessRate == nil {
		return defaultSuccessRate
	}
	return *c.Project.Release.SuccessRate
}

// SeedSampleOrders reports whether the demo orders are loaded at startup.
func (c *Config) SeedSampleOrders() bool {
	if c.Project.SeedSampleOrders == nil {
		return true
	}
	return *c.Project.SeedSampleOrders
}

// SetReleaseMode updates the release mode and persists the value back to
// .releasedesk/config.yaml.
func (c *Config) SetReleaseMode(mode string) error {
	mode = normalizeMode(mode)
	if mode != ModeIdenticalBatches && mode != ModeConsecutiveBatches {
		return fmt.Errorf("config: unknown release mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Project.Release.Mode = mode
	return c.saveProjectConfig()
}

// DemoLoginHint describes the demo operator while it still uses the shipped
// password, and returns "" once the operator has changed it.
func (c *Config) DemoLoginHint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, user := range c.Project.Auth.Users {
		if user.Username != defaultDemoUser {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(defaultDemoSecret)) == nil {
			return fmt.Sprintf("Demo credentials: %s / %s", defaultDemoUser, defaultDemoSecret)
		}
	}
	return ""
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

// DefaultProjectConfig returns the settings used when no config file exists.
// It carries no users; the demo operator is added when the file is first
// written.
func DefaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Release.Mode == "" {
		pc.Release.Mode = ModeIdenticalBatches
	}
	if pc.Release.SuccessRate == nil {
		rate := defaultSuccessRate
		pc.Release.SuccessRate = &rate
	}
	t := &pc.Release.Timing
	if t.StartDelay == 0 {
		t.StartDelay = 500 * time.Millisecond
	}
	if t.HandshakeDelay == 0 {
		t.HandshakeDelay = 800 * time.Millisecond
	}
	if t.ProcessBase == 0 {
		t.ProcessBase = 600 * time.Millisecond
	}
	if t.ProcessJitter == 0 {
		t.ProcessJitter = 400 * time.Millisecond
	}
	if t.SettleDelay == 0 {
		t.SettleDelay = 300 * time.Millisecond
	}
	if pc.Backend.Kind == "" {
		pc.Backend.Kind = BackendSimulated
	}
	if pc.Backend.Name == "" {
		pc.Backend.Name = defaultBackendName
	}
	if pc.Backend.Timeout == 0 {
		pc.Backend.Timeout = 5 * time.Second
	}
	if pc.Backend.RatePerSecond == 0 {
		pc.Backend.RatePerSecond = 5
	}
	if pc.Logging.Level == "" {
		pc.Logging.Level = "INFO"
	}
	if pc.Logging.Format == "" {
		pc.Logging.Format = "CONSOLE"
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Release.Mode = normalizeMode(pc.Release.Mode)
	pc.Backend.Kind = strings.ToLower(strings.TrimSpace(pc.Backend.Kind))
	pc.Backend.Name = strings.TrimSpace(pc.Backend.Name)
	pc.Backend.URL = strings.TrimRight(strings.TrimSpace(pc.Backend.URL), "/")
	for i := range pc.Auth.Users {
		pc.Auth.Users[i].Username = strings.TrimSpace(pc.Auth.Users[i].Username)
		pc.Auth.Users[i].PasswordHash = strings.TrimSpace(pc.Auth.Users[i].PasswordHash)
	}
	pc.Logging.Level = strings.ToUpper(strings.TrimSpace(pc.Logging.Level))
	pc.Logging.Format = strings.ToUpper(strings.TrimSpace(pc.Logging.Format))
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Release.Mode {
	case ModeIdenticalBatches, ModeConsecutiveBatches:
	default:
		return fmt.Errorf("release.mode must be %q or %q", ModeIdenticalBatches, ModeConsecutiveBatches)
	}
	if rate := pc.Release.SuccessRate; rate != nil && (*rate < 0 || *rate > 1) {
		return fmt.Errorf("release.success_rate must be within [0, 1]")
	}
	t := pc.Release.Timing
	for name, d := range map[string]time.Duration{
		"start_delay":     t.StartDelay,
		"handshake_delay": t.HandshakeDelay,
		"process_base":    t.ProcessBase,
		"process_jitter":  t.ProcessJitter,
		"settle_delay":    t.SettleDelay,
	} {
		if d < 0 {
			return fmt.Errorf("release.timing.%s must not be negative", name)
		}
	}
	switch pc.Backend.Kind {
	case BackendSimulated:
	case BackendHTTP:
		if pc.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for http backends")
		}
	default:
		return fmt.Errorf("backend.kind must be %q or %q", BackendSimulated, BackendHTTP)
	}
	if pc.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if pc.Backend.RatePerSecond < 0 {
		return fmt.Errorf("backend.rate_per_second must not be negative")
	}
	for i, user := range pc.Auth.Users {
		if user.Username == "" {
			return fmt.Errorf("auth.users[%d]: username is required", i)
		}
		if user.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d]: password_hash is required", i)
		}
	}
	if pc.Bridge.Port < 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be within 0-65535")
	}
	return nil
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if level := strings.TrimSpace(os.Getenv("RELEASEDESK_LOG_LEVEL")); level != "" {
		pc.Logging.Level = strings.ToUpper(level)
	}
	if format := strings.TrimSpace(os.Getenv("RELEASEDESK_LOG_FORMAT")); format != "" {
		pc.Logging.Format = strings.ToUpper(format)
	}
}

func normalizeMode(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ensureProjectConfig writes the default config, including a bcrypt hash for
// the demo operator, when none exists yet.
func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultDemoSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("config: hash demo password: %w", err)
	}
	pc := DefaultProjectConfig()
	pc.Auth.Users = []User{{Username: defaultDemoUser, PasswordHash: string(hash)}}
	data, err := yaml.Marshal(pc)
	if err != nil {
		return fmt.Errorf("config: encode default config: %w", err)
	}
	header := []byte("# releasedesk project configuration\n")
	return os.WriteFile(path, append(header, data...), 0o600)
}

// saveProjectConfig must be called with c.mu held for writing.
func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.DeskProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure desk dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
