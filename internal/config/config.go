// Package config provides configuration management for the input router host.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	// General contains general application settings
	General GeneralConfig `json:"general" toml:"general"`

	// Router contains flow-control settings
	Router RouterConfig `json:"router" toml:"router"`

	// Input selects the local event source
	Input InputConfig `json:"input" toml:"input"`

	// Shortcuts are key combinations handled by the host itself
	Shortcuts []Shortcut `json:"shortcuts" toml:"shortcuts"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIEnabled enables the HTTP API and the consumer endpoint
	APIEnabled bool `json:"api_enabled" toml:"api_enabled"`

	// APIPort is the port for the API server (default: 18090)
	APIPort int `json:"api_port" toml:"api_port"`

	// APIToken is an optional bearer token for API requests and the consumer socket
	APIToken string `json:"api_token,omitempty" toml:"api_token,omitempty"`

	// ConsumerAddr is the host:port the demo consumer connects to
	ConsumerAddr string `json:"consumer_addr,omitempty" toml:"consumer_addr,omitempty"`

	// ShowTray shows the system tray surface
	ShowTray bool `json:"show_tray" toml:"show_tray"`

	// Debug enables per-event logging
	Debug bool `json:"debug" toml:"debug"`
}

// RouterConfig holds router and queue tuning. Durations are in milliseconds.
type RouterConfig struct {
	DesktopTouchAckTimeoutMs int  `json:"desktop_touch_ack_timeout_ms" toml:"desktop_touch_ack_timeout_ms"`
	MobileTouchAckTimeoutMs  int  `json:"mobile_touch_ack_timeout_ms" toml:"mobile_touch_ack_timeout_ms"`
	TapSuppressionWindowMs   int  `json:"tap_suppression_window_ms" toml:"tap_suppression_window_ms"`
	TimeoutTickMs            int  `json:"timeout_tick_ms" toml:"timeout_tick_ms"`
	FlushTimeoutMs           int  `json:"flush_timeout_ms" toml:"flush_timeout_ms"`
	SendBufferSize           int  `json:"send_buffer_size" toml:"send_buffer_size"`
	MobileOptimized          bool `json:"mobile_optimized" toml:"mobile_optimized"`
}

// InputConfig selects the local event source
type InputConfig struct {
	// Device is an evdev node such as /dev/input/event3. Empty disables capture.
	Device string `json:"device,omitempty" toml:"device,omitempty"`

	// Grab takes the device exclusively (EVIOCGRAB)
	Grab bool `json:"grab" toml:"grab"`

	// InvertWheel flips the wheel direction
	InvertWheel bool `json:"invert_wheel" toml:"invert_wheel"`
}

// Shortcut binds a key combination (e.g. "Ctrl+Alt+F") to a host action.
// A fallback shortcut is forwarded to the consumer marked as a shortcut and
// only runs when the consumer does not consume it.
type Shortcut struct {
	Keys     string `json:"keys" toml:"keys"`
	Action   string `json:"action" toml:"action"`
	Fallback bool   `json:"fallback,omitempty" toml:"fallback,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			APIEnabled: true,
			APIPort:    18090,
		},
		Router: RouterConfig{
			DesktopTouchAckTimeoutMs: 200,
			MobileTouchAckTimeoutMs:  1000,
			TapSuppressionWindowMs:   100,
			TimeoutTickMs:            50,
			FlushTimeoutMs:           5000,
			SendBufferSize:           256,
		},
		Shortcuts: []Shortcut{
			{Keys: "Ctrl+Alt+F", Action: "flush"},
			{Keys: "Ctrl+Alt+R", Action: "reset"},
		},
	}
}

// Validate checks ranges that would otherwise misconfigure the router.
func (c *Config) Validate() error {
	if c.General.APIPort <= 0 || c.General.APIPort > 65535 {
		return fmt.Errorf("api_port %d: %w", c.General.APIPort, ErrInvalidConfig)
	}
	r := c.Router
	for name, v := range map[string]int{
		"desktop_touch_ack_timeout_ms": r.DesktopTouchAckTimeoutMs,
		"mobile_touch_ack_timeout_ms":  r.MobileTouchAckTimeoutMs,
		"tap_suppression_window_ms":    r.TapSuppressionWindowMs,
		"timeout_tick_ms":              r.TimeoutTickMs,
		"flush_timeout_ms":             r.FlushTimeoutMs,
		"send_buffer_size":             r.SendBufferSize,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d: %w", name, v, ErrInvalidConfig)
		}
	}
	for i, s := range c.Shortcuts {
		if s.Keys == "" || s.Action == "" {
			return fmt.Errorf("shortcut %d needs keys and action: %w", i, ErrInvalidConfig)
		}
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (r RouterConfig) DesktopTouchAckTimeout() time.Duration { return ms(r.DesktopTouchAckTimeoutMs) }
func (r RouterConfig) MobileTouchAckTimeout() time.Duration { return ms(r.MobileTouchAckTimeoutMs) }
func (r RouterConfig) TapSuppressionWindow() time.Duration { return ms(r.TapSuppressionWindowMs) }
func (r RouterConfig) TimeoutTick() time.Duration { return ms(r.TimeoutTickMs) }
func (r RouterConfig) FlushTimeout() time.Duration { return ms(r.FlushTimeoutMs) }

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the default path
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for path. Files ending in
// .toml are read and written as TOML, anything else as JSON.
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "inputrouter")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "inputrouter")
	default:
		dir := os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(dir, "inputrouter")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

func (m *Manager) isTOML() bool {
	return strings.EqualFold(filepath.Ext(m.configPath), ".toml")
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the
// current configuration.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if m.isTOML() {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var data []byte
	if m.isTOML() {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(m.config); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(m.config, "", "  ")
		if err != nil {
			return err
		}
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := *m.config
	cfg.Shortcuts = append([]Shortcut(nil), m.config.Shortcuts...)
	return &cfg
}

// Set updates the configuration
func (m *Manager) Set(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = config
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
