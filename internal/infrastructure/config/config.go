package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Facegate Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// GatewayConfig contains the device websocket gateway settings.
type GatewayConfig struct {
	// Path is the URL path terminals connect to.
	Path string `yaml:"path"`

	// MaxMessageSize caps inbound frame size in bytes. Record batches from
	// terminals can be large (embedded snapshots), hence the high default.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// WriteTimeout bounds a single frame write in seconds. A stalled terminal
	// must not stall the dispatcher loop beyond this.
	WriteTimeout int `yaml:"write_timeout"`

	// OnlineWindow is how long after the last heartbeat a device still counts
	// as online, in seconds.
	OnlineWindow int `yaml:"online_window"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SchedulerConfig contains the periodic engine settings.
// Intervals and windows are in seconds.
type SchedulerConfig struct {
	// ExpandInterval is how often active schedules are expanded into jobs.
	ExpandInterval int `yaml:"expand_interval"`

	// DispatchInterval is how often pending jobs are pushed to devices.
	DispatchInterval int `yaml:"dispatch_interval"`

	// RequeueInterval is how often failed jobs are considered for retry.
	RequeueInterval int `yaml:"requeue_interval"`

	// DispatchBatch is the maximum number of pending jobs per dispatch tick.
	DispatchBatch int `yaml:"dispatch_batch"`

	// MaxRetries is the delivery attempt budget before a job dead-letters.
	MaxRetries int `yaml:"max_retries"`

	// RequeueAfter is how long a failed job must sit before it is retried.
	RequeueAfter int `yaml:"requeue_after"`

	// CronDedupWindow suppresses duplicate jobs for a recurring schedule
	// within the same due minute. Kept slightly under one minute so several
	// expander ticks inside that minute cannot re-fire the schedule.
	CronDedupWindow int `yaml:"cron_dedup_window"`
}

// MQTTConfig contains event fanout broker settings.
type MQTTConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	TopicBase string           `yaml:"topic_base"`
	Reconnect MQTTRetryConfig  `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTRetryConfig contains MQTT reconnection settings.
type MQTTRetryConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FACEGATE_SECTION_KEY
// For example: FACEGATE_DATABASE_PATH, FACEGATE_API_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. The scheduler values match
// the cadence tested against the terminal fleet: expand every 10s, dispatch
// every 5s, requeue every 30s, three delivery attempts.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/facegate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Gateway: GatewayConfig{
			Path:           "/ws",
			MaxMessageSize: 32 << 20,
			WriteTimeout:   10,
			OnlineWindow:   120,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Scheduler: SchedulerConfig{
			ExpandInterval:   10,
			DispatchInterval: 5,
			RequeueInterval:  30,
			DispatchBatch:    50,
			MaxRetries:       3,
			RequeueAfter:     30,
			CronDedupWindow:  55,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "facegate-core",
			},
			QoS:       1,
			TopicBase: "facegate",
			Reconnect: MQTTRetryConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FACEGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("FACEGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FACEGATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("FACEGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FACEGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FACEGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FACEGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.Gateway.Path, "/") {
		errs = append(errs, "gateway.path must start with /")
	}
	if c.Gateway.OnlineWindow < 1 {
		errs = append(errs, "gateway.online_window must be positive")
	}

	if c.Scheduler.ExpandInterval < 1 || c.Scheduler.DispatchInterval < 1 || c.Scheduler.RequeueInterval < 1 {
		errs = append(errs, "scheduler intervals must be positive")
	}
	if c.Scheduler.DispatchBatch < 1 {
		errs = append(errs, "scheduler.dispatch_batch must be positive")
	}
	if c.Scheduler.MaxRetries < 1 {
		errs = append(errs, "scheduler.max_retries must be positive")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ExpandEvery returns the schedule expander tick period.
func (c *SchedulerConfig) ExpandEvery() time.Duration {
	return time.Duration(c.ExpandInterval) * time.Second
}

// DispatchEvery returns the job dispatcher tick period.
func (c *SchedulerConfig) DispatchEvery() time.Duration {
	return time.Duration(c.DispatchInterval) * time.Second
}

// RequeueEvery returns the failure requeuer tick period.
func (c *SchedulerConfig) RequeueEvery() time.Duration {
	return time.Duration(c.RequeueInterval) * time.Second
}

// RequeueThreshold returns how long a failed job rests before retry.
func (c *SchedulerConfig) RequeueThreshold() time.Duration {
	return time.Duration(c.RequeueAfter) * time.Second
}

// DedupWindow returns the recurring-schedule dedup window.
func (c *SchedulerConfig) DedupWindow() time.Duration {
	return time.Duration(c.CronDedupWindow) * time.Second
}

// OnlineWindowDuration returns the device online grace window.
func (c *GatewayConfig) OnlineWindowDuration() time.Duration {
	return time.Duration(c.OnlineWindow) * time.Second
}

// WriteTimeoutDuration returns the per-frame write deadline.
func (c *GatewayConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}
