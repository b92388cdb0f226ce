package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/stripd/internal/input"
	"github.com/dokzlo13/stripd/internal/routine"
)

// Config represents the application configuration
type Config struct {
	Strip           StripConfig      `yaml:"strip"`
	Driver          DriverConfig     `yaml:"driver"`
	Fade            FadeConfig       `yaml:"fade"`
	Brightness      BrightnessConfig `yaml:"brightness"`
	Playlist        PlaylistConfig   `yaml:"playlist"`
	Inputs          InputsConfig     `yaml:"inputs"`
	HTTP            HTTPConfig       `yaml:"http"`
	Database        DatabaseConfig   `yaml:"database"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	Log             LogConfig        `yaml:"log"`
	Metrics         MetricsConfig    `yaml:"metrics"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// StripConfig describes the LED strip and the render loop
type StripConfig struct {
	Pixels      int     `yaml:"pixels"`
	FPS         int     `yaml:"fps"`
	Gamma       float64 `yaml:"gamma"`         // 1 (default) disables correction
	BlankOnExit *bool   `yaml:"blank_on_exit"` // default true
}

// DriverConfig selects where frames are written
type DriverConfig struct {
	Type    string `yaml:"type"` // null, opc, serial
	Address string `yaml:"address"`
	Channel uint8  `yaml:"channel"`
	RGBW    bool   `yaml:"rgbw"`
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
	Order   string `yaml:"order"`
}

// FadeConfig contains cross-fade settings
type FadeConfig struct {
	Duration *Duration `yaml:"duration"` // default 2s, 0 switches immediately
	Curve    string    `yaml:"curve"`    // linear, ease
}

// BrightnessConfig contains brightness settings
type BrightnessConfig struct {
	Initial *float64 `yaml:"initial"` // default 1
	Step    float64  `yaml:"step"`
}

// PlaylistConfig lists the routines in scroll order
type PlaylistConfig struct {
	Name     string               `yaml:"name"`
	Resume   bool                 `yaml:"resume"` // restore cursor, power and brightness on start
	StartOff bool                 `yaml:"start_off"`
	Routines []routine.Definition `yaml:"routines"`
}

// InputsConfig contains control event sources and their bindings
type InputsConfig struct {
	Hue            HueConfig      `yaml:"hue"`
	MQTT           MQTTConfig     `yaml:"mqtt"`
	Bindings       input.Bindings `yaml:"bindings"` // empty uses the dimmer switch defaults
	RotaryDebounce Duration       `yaml:"rotary_debounce"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Enabled bool     `yaml:"enabled"`
	Bridge  string   `yaml:"bridge"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for Hue API requests
	Mode    string   `yaml:"mode"`    // eventstream (default) or poll

	// Event stream reconnect settings
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between reconnects (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between reconnects (default: 2m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxReconnects   int      `yaml:"max_reconnects"`    // Max reconnect attempts, 0 = infinite (default: 0)

	// v1 sensor polling settings
	PollInterval Duration `yaml:"poll_interval"`
	PollRPS      float64  `yaml:"poll_rps"`
	Sensors      []string `yaml:"sensors"` // sensor names to watch, empty = all
}

// Hue input modes.
const (
	HueModeEventStream = "eventstream"
	HueModePoll        = "poll"
)

// MQTTConfig contains MQTT subscriber settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// HTTPConfig contains control/status server settings
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // default true
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// MetricsConfig contains render loop statistics settings
type MetricsConfig struct {
	Interval Duration `yaml:"interval"` // how often render stats are logged at debug level
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// GetHost returns the listen host with default
func (c *HTTPConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// GetPort returns the listen port with default
func (c *HTTPConfig) GetPort() int {
	if c.Port <= 0 {
		return 9090
	}
	return c.Port
}

// IsEnabled reports whether control events are recorded
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// GetBlankOnExit reports whether the strip is turned off on shutdown
func (c *StripConfig) GetBlankOnExit() bool {
	return c.BlankOnExit == nil || *c.BlankOnExit
}

// GetInitial returns the starting brightness with default
func (c *BrightnessConfig) GetInitial() float64 {
	if c.Initial == nil {
		return 1
	}
	return *c.Initial
}

// GetDuration returns the fade duration with default
func (c *FadeConfig) GetDuration() time.Duration {
	if c.Duration == nil {
		return 2 * time.Second
	}
	return c.Duration.Duration()
}

// GetShutdownTimeout returns the shutdown timeout
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML, expanding environment variables
// and filling in defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./stripd.sqlite"
	}

	// Strip defaults
	if cfg.Strip.Pixels == 0 {
		cfg.Strip.Pixels = 60
	}
	if cfg.Strip.FPS == 0 {
		cfg.Strip.FPS = 50
	}
	if cfg.Strip.Gamma == 0 {
		cfg.Strip.Gamma = 1
	}

	if cfg.Fade.Curve == "" {
		cfg.Fade.Curve = "linear"
	}
	if cfg.Brightness.Step == 0 {
		cfg.Brightness.Step = 0.1
	}

	// Hue defaults
	hue := &cfg.Inputs.Hue
	if hue.Mode == "" {
		hue.Mode = HueModeEventStream
	}
	if hue.Timeout == 0 {
		hue.Timeout = Duration(30 * time.Second)
	}
	if hue.MinRetryBackoff == 0 {
		hue.MinRetryBackoff = Duration(1 * time.Second)
	}
	if hue.MaxRetryBackoff == 0 {
		hue.MaxRetryBackoff = Duration(2 * time.Minute)
	}
	if hue.RetryMultiplier == 0 {
		hue.RetryMultiplier = 2.0
	}
	// MaxReconnects defaults to 0 (infinite), no need to set
	if hue.PollInterval == 0 {
		hue.PollInterval = Duration(250 * time.Millisecond)
	}
	if hue.PollRPS == 0 {
		hue.PollRPS = 5
	}

	if cfg.Inputs.RotaryDebounce == 0 {
		cfg.Inputs.RotaryDebounce = Duration(50 * time.Millisecond)
	}
	if len(cfg.Inputs.Bindings) == 0 {
		cfg.Inputs.Bindings = input.DefaultBindings()
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = Duration(time.Minute)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Strip.Pixels < 0 {
		return fmt.Errorf("strip.pixels must not be negative")
	}
	if c.Strip.FPS < 0 || c.Strip.FPS > 1000 {
		return fmt.Errorf("strip.fps must be between 1 and 1000")
	}
	if c.Fade.GetDuration() < 0 {
		return fmt.Errorf("fade.duration must not be negative")
	}
	if b := c.Brightness.GetInitial(); b < 0 || b > 1 {
		return fmt.Errorf("brightness.initial must be within [0,1]")
	}
	if c.Inputs.Hue.Enabled {
		if c.Inputs.Hue.Bridge == "" {
			return fmt.Errorf("inputs.hue.bridge is required")
		}
		if m := c.Inputs.Hue.Mode; m != HueModeEventStream && m != HueModePoll {
			return fmt.Errorf("inputs.hue.mode must be %q or %q", HueModeEventStream, HueModePoll)
		}
	}
	if c.Inputs.MQTT.Enabled && c.Inputs.MQTT.Broker == "" {
		return fmt.Errorf("inputs.mqtt.broker is required")
	}
	if err := c.Inputs.Bindings.Compile(); err != nil {
		return fmt.Errorf("inputs.bindings: %w", err)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
