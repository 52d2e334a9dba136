package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the values the sensor deployment ships with.
const (
	DefaultBroker       = "localhost"
	DefaultBrokerPort   = 1883
	DefaultTopic        = "env/room01/reading"
	DefaultDBPath       = "data/environment.db"
	DefaultServerHost   = "localhost"
	DefaultServerPort   = 8000
	DefaultServerURL    = "http://localhost:8000"
	DefaultOpsPort      = 9090
	DefaultTempMax      = 30.0
	DefaultHumidityMin  = 40.0
	DefaultRetention    = 30
	DefaultSweepEvery   = time.Hour
	DefaultLogLevel     = "info"
	DefaultInfluxBucket = "readings"
	DefaultMeasurement  = "room_environment"
)

// MQTTConfig addresses the broker the controller subscribes to.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// ServerConfig holds the web process listen address and the base URL the
// controller uses to reach the alert intake endpoint.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// IntakeURL is the full alert notification endpoint.
func (s ServerConfig) IntakeURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/api/alerts/notify"
}

// ThresholdConfig holds the alert thresholds, read-only after startup.
type ThresholdConfig struct {
	TempMax     float64 `yaml:"temp_max"`
	HumidityMin float64 `yaml:"humidity_min"`
}

// RetentionConfig controls the periodic purge of old rows.
type RetentionConfig struct {
	Days       int           `yaml:"days"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

// InfluxConfig configures the optional time-series mirror of readings.
// The mirror is disabled when URL is empty.
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

func (i InfluxConfig) Enabled() bool { return i.URL != "" }

// Config is the process-wide configuration, shared by both binaries.
type Config struct {
	MQTT       MQTTConfig      `yaml:"mqtt"`
	DBPath     string          `yaml:"db_path"`
	Server     ServerConfig    `yaml:"server"`
	OpsPort    int             `yaml:"ops_port"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Retention  RetentionConfig `yaml:"retention"`
	Influx     InfluxConfig    `yaml:"influx"`
	LogLevel   string          `yaml:"log_level"`
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order. The result is validated once here;
// nothing downstream reads the environment again.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: DefaultBroker,
			Port:   DefaultBrokerPort,
			Topic:  DefaultTopic,
		},
		DBPath: DefaultDBPath,
		Server: ServerConfig{
			Host:    DefaultServerHost,
			Port:    DefaultServerPort,
			BaseURL: DefaultServerURL,
		},
		OpsPort: DefaultOpsPort,
		Thresholds: ThresholdConfig{
			TempMax:     DefaultTempMax,
			HumidityMin: DefaultHumidityMin,
		},
		Retention: RetentionConfig{
			Days:       DefaultRetention,
			SweepEvery: DefaultSweepEvery,
		},
		Influx: InfluxConfig{
			Bucket:      DefaultInfluxBucket,
			Measurement: DefaultMeasurement,
		},
		LogLevel: DefaultLogLevel,
	}
}

func applyEnv(cfg *Config) {
	cfg.MQTT.Broker = getenv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Port = getenvInt("MQTT_PORT", cfg.MQTT.Port)
	cfg.MQTT.User = getenv("MQTT_USER", cfg.MQTT.User)
	cfg.MQTT.Password = getenv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.ClientID = getenv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Topic = getenv("MQTT_TOPIC", cfg.MQTT.Topic)

	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)

	cfg.Server.Host = getenv("WEB_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getenvInt("WEB_SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getenv("WEB_SERVER_URL", cfg.Server.BaseURL)
	cfg.OpsPort = getenvInt("OPS_PORT", cfg.OpsPort)

	cfg.Thresholds.TempMax = getenvFloat("TEMP_THRESHOLD", cfg.Thresholds.TempMax)
	cfg.Thresholds.HumidityMin = getenvFloat("HUMIDITY_THRESHOLD", cfg.Thresholds.HumidityMin)

	cfg.Retention.Days = getenvInt("RETENTION_DAYS", cfg.Retention.Days)
	if v := strings.TrimSpace(os.Getenv("RETENTION_SWEEP_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.SweepEvery = d
		}
	}

	cfg.Influx.URL = getenv("INFLUX_URL", cfg.Influx.URL)
	cfg.Influx.Token = getenv("INFLUX_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = getenv("INFLUX_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = getenv("INFLUX_BUCKET", cfg.Influx.Bucket)
	cfg.Influx.Measurement = getenv("INFLUX_MEASUREMENT", cfg.Influx.Measurement)

	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
}

func validate(cfg *Config) error {
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must not be empty")
	}
	if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port %d is out of range [1, 65535]", cfg.MQTT.Port)
	}
	if cfg.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic must not be empty")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Retention.Days < 1 {
		return fmt.Errorf("retention.days must be at least 1, got %d", cfg.Retention.Days)
	}
	if cfg.Retention.SweepEvery <= 0 {
		return fmt.Errorf("retention.sweep_every must be positive")
	}
	if cfg.Influx.Enabled() && (cfg.Influx.Org == "" || cfg.Influx.Bucket == "") {
		return fmt.Errorf("influx mirror enabled but org/bucket missing")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			return f
		}
	}
	return def
}
