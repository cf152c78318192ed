// Package config loads and validates startup configuration.
//
// Sources, later wins: built-in defaults, a YAML file, then SUBSYNC_*
// environment variables (a .env file is honored when present). Device
// host, username and password are required; a missing one is a startup
// fatal, not a per-request error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPort           = 8728
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 10 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultSweepInterval  = 5 * time.Minute
	DefaultGraceDays      = 5
	DefaultSweepWorkers   = 4
	DefaultHTTPListen     = ":8080"
	DefaultLogLevel       = "info"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Device configures the control-device connection.
type Device struct {
	Host           string   `yaml:"host" validate:"required"`
	Port           int      `yaml:"port" validate:"gte=1,lte=65535"`
	Username       string   `yaml:"username" validate:"required"`
	Password       string   `yaml:"password" validate:"required"`
	ConnectTimeout Duration `yaml:"connectTimeout"`
	CommandTimeout Duration `yaml:"commandTimeout"`
	IdleTimeout    Duration `yaml:"idleTimeout"`
}

// Address returns host:port.
func (d Device) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Sweep configures the reconciliation loop.
type Sweep struct {
	Interval        Duration `yaml:"interval"`
	GracePeriodDays int      `yaml:"gracePeriodDays" validate:"gte=0"`
	Workers         int      `yaml:"workers" validate:"gte=1"`
}

// HTTP configures the operator surface.
type HTTP struct {
	Listen string `yaml:"listen" validate:"required"`
}

// Config is the full daemon configuration.
type Config struct {
	Device   Device `yaml:"device"`
	Sweep    Sweep  `yaml:"sweep"`
	HTTP     HTTP   `yaml:"http"`
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration, which still lacks the
// required device fields.
func Default() *Config {
	return &Config{
		Device: Device{
			Port:           DefaultPort,
			ConnectTimeout: Duration(DefaultConnectTimeout),
			CommandTimeout: Duration(DefaultCommandTimeout),
			IdleTimeout:    Duration(DefaultIdleTimeout),
		},
		Sweep: Sweep{
			Interval:        Duration(DefaultSweepInterval),
			GracePeriodDays: DefaultGraceDays,
			Workers:         DefaultSweepWorkers,
		},
		HTTP:     HTTP{Listen: DefaultHTTPListen},
		LogLevel: DefaultLogLevel,
	}
}

// Load builds the configuration from defaults, the optional YAML file
// at path (empty path skips the file), and environment overrides, then
// validates it.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit config errors are not.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays SUBSYNC_* environment variables.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("SUBSYNC_DEVICE_HOST", &cfg.Device.Host)
	setString("SUBSYNC_DEVICE_USERNAME", &cfg.Device.Username)
	setString("SUBSYNC_DEVICE_PASSWORD", &cfg.Device.Password)
	setString("SUBSYNC_HTTP_LISTEN", &cfg.HTTP.Listen)
	setString("SUBSYNC_LOG_LEVEL", &cfg.LogLevel)

	if v, ok := os.LookupEnv("SUBSYNC_DEVICE_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBSYNC_DEVICE_PORT: %w", err)
		}
		cfg.Device.Port = n
	}
	if v, ok := os.LookupEnv("SUBSYNC_GRACE_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBSYNC_GRACE_DAYS: %w", err)
		}
		cfg.Sweep.GracePeriodDays = n
	}
	if v, ok := os.LookupEnv("SUBSYNC_SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SUBSYNC_SWEEP_INTERVAL: %w", err)
		}
		cfg.Sweep.Interval = Duration(d)
	}
	return nil
}
