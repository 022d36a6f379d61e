package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DASHBOARD_DEVICE_BASE_URL.
const EnvPrefix = "DASHBOARD"

// Config holds all configuration for the dashboard and the device simulator.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Poll      PollConfig      `mapstructure:"poll" yaml:"poll"`
	Relay     RelayConfig     `mapstructure:"relay" yaml:"relay"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	Console   ConsoleConfig   `mapstructure:"console" yaml:"console"`
	Sim       SimConfig       `mapstructure:"sim" yaml:"sim"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port" yaml:"port"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type DeviceConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PollConfig struct {
	TelemetryInterval time.Duration `mapstructure:"telemetry_interval" yaml:"telemetry_interval"`
	LogsInterval      time.Duration `mapstructure:"logs_interval" yaml:"logs_interval"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	Always            bool          `mapstructure:"always" yaml:"always"`
}

type RelayConfig struct {
	AutoShutoffEnabled   bool          `mapstructure:"auto_shutoff_enabled" yaml:"auto_shutoff_enabled"`
	AutoShutoffThreshold int           `mapstructure:"auto_shutoff_threshold" yaml:"auto_shutoff_threshold"`
	FullThreshold        int           `mapstructure:"full_threshold" yaml:"full_threshold"`
	MaxPending           int           `mapstructure:"max_pending" yaml:"max_pending"`
	CommandTimeout       time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `mapstructure:"qos" yaml:"qos"`
}

type ConsoleConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Prompt  string `mapstructure:"prompt" yaml:"prompt"`
}

type SimConfig struct {
	Port           string        `mapstructure:"port" yaml:"port"`
	Tick           time.Duration `mapstructure:"tick" yaml:"tick"`
	InitialPercent float64       `mapstructure:"initial_percent" yaml:"initial_percent"`
	Connected      bool          `mapstructure:"connected" yaml:"connected"`
	Mode           string        `mapstructure:"mode" yaml:"mode"`
	AutoEnabled    bool          `mapstructure:"auto_enabled" yaml:"auto_enabled"`
	LowThreshold   int           `mapstructure:"low_threshold" yaml:"low_threshold"`
	FullThreshold  int           `mapstructure:"full_threshold" yaml:"full_threshold"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("device.base_url", "http://127.0.0.1:5000/api")
	v.SetDefault("device.timeout", 5*time.Second)

	v.SetDefault("poll.telemetry_interval", 2*time.Second)
	v.SetDefault("poll.logs_interval", 5*time.Second)
	v.SetDefault("poll.max_backoff", 30*time.Second)
	v.SetDefault("poll.always", false)

	v.SetDefault("relay.auto_shutoff_enabled", true)
	v.SetDefault("relay.auto_shutoff_threshold", 20)
	v.SetDefault("relay.full_threshold", 80)
	v.SetDefault("relay.max_pending", 16)
	v.SetDefault("relay.command_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.client_id", "battery-dashboard")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "battery_dashboard")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("console.enabled", false)
	v.SetDefault("console.prompt", "dashboard> ")

	v.SetDefault("sim.port", "5000")
	v.SetDefault("sim.tick", time.Second)
	v.SetDefault("sim.initial_percent", 65.0)
	v.SetDefault("sim.connected", false)
	v.SetDefault("sim.mode", "MANUAL")
	v.SetDefault("sim.auto_enabled", true)
	v.SetDefault("sim.low_threshold", 20)
	v.SetDefault("sim.full_threshold", 80)
}

// Load reads an optional .env file, then the YAML config at path (or
// configs/config.yml when path is empty), then DASHBOARD_* environment
// overrides. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.Device.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("device.base_url %q is not an absolute URL", c.Device.BaseURL))
	}
	for name, d := range map[string]time.Duration{
		"device.timeout":          c.Device.Timeout,
		"poll.telemetry_interval": c.Poll.TelemetryInterval,
		"poll.logs_interval":      c.Poll.LogsInterval,
		"poll.max_backoff":        c.Poll.MaxBackoff,
		"relay.command_timeout":   c.Relay.CommandTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Relay.AutoShutoffThreshold < 0 || c.Relay.AutoShutoffThreshold > 100 {
		errs = append(errs, fmt.Errorf("relay.auto_shutoff_threshold must be between 0 and 100"))
	}
	if c.Relay.FullThreshold < 1 || c.Relay.FullThreshold > 100 {
		errs = append(errs, fmt.Errorf("relay.full_threshold must be between 1 and 100"))
	}
	if c.Relay.MaxPending < 1 {
		errs = append(errs, fmt.Errorf("relay.max_pending must be at least 1"))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2"))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "******"
	}
	return yaml.Marshal(out)
}
