package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Session   SessionConfig   `yaml:"session"`
	Spotlight SpotlightConfig `yaml:"spotlight"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// DatabaseConfig is optional; an empty host disables session persistence.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type NATSConfig struct {
	URL          string `yaml:"url"`
	// ConsumerName is the durable name of the detection consumer.
	ConsumerName string `yaml:"consumer_name"`
}

func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// MinIOConfig is optional; an empty endpoint disables track archives.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

type SessionConfig struct {
	AutoSelect       *bool         `yaml:"auto_select"`
	ArchiveRetention time.Duration `yaml:"archive_retention"`
	RetentionPeriod  time.Duration `yaml:"retention_interval"`
}

// AutoSelectDefault reports whether new sessions pick the most prominent
// player until told otherwise.
func (s SessionConfig) AutoSelectDefault() bool {
	return s.AutoSelect == nil || *s.AutoSelect
}

// SpotlightConfig describes the highlight handed to the painter.
type SpotlightConfig struct {
	Effect    string  `yaml:"effect"`
	Radius    float64 `yaml:"radius"`
	Feather   float64 `yaml:"feather"`
	Intensity float64 `yaml:"intensity"`
}

const (
	EffectCircle   = "circle"
	EffectBeam     = "beam"
	EffectGradient = "gradient"
)

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// Defaults are set before decoding, so an explicit zero in the file is kept.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server or the renderer cannot use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Enabled() && c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max_conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.NATS.Enabled() && c.NATS.ConsumerName == "" {
		return fmt.Errorf("nats consumer_name is required")
	}
	if c.MinIO.Enabled() && c.MinIO.Bucket == "" {
		return fmt.Errorf("minio bucket is required")
	}
	if c.Session.ArchiveRetention <= 0 {
		return fmt.Errorf("session archive_retention must be positive, got %v", c.Session.ArchiveRetention)
	}
	if c.Session.RetentionPeriod <= 0 {
		return fmt.Errorf("session retention_interval must be positive, got %v", c.Session.RetentionPeriod)
	}

	switch c.Spotlight.Effect {
	case EffectCircle, EffectBeam, EffectGradient:
	default:
		return fmt.Errorf("invalid spotlight effect %q", c.Spotlight.Effect)
	}
	if c.Spotlight.Radius < 50 || c.Spotlight.Radius > 500 {
		return fmt.Errorf("spotlight radius %v out of range [50, 500]", c.Spotlight.Radius)
	}
	if c.Spotlight.Feather < 0 || c.Spotlight.Feather > 200 {
		return fmt.Errorf("spotlight feather %v out of range [0, 200]", c.Spotlight.Feather)
	}
	if c.Spotlight.Intensity < 0 || c.Spotlight.Intensity > 1 {
		return fmt.Errorf("spotlight intensity %v out of range [0, 1]", c.Spotlight.Intensity)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Port: 5432, MaxConns: 10},
		NATS:     NATSConfig{ConsumerName: "spotlight-tracker"},
		MinIO:    MinIOConfig{Bucket: "spotlight"},
		Session: SessionConfig{
			ArchiveRetention: 7 * 24 * time.Hour,
			RetentionPeriod:  time.Hour,
		},
		Spotlight: SpotlightConfig{
			Effect:    EffectCircle,
			Radius:    150,
			Feather:   50,
			Intensity: 0.7,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPOT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPOT_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("SPOT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SPOT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SPOT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SPOT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SPOT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SPOT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SPOT_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("SPOT_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("SPOT_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("SPOT_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("SPOT_AUTO_SELECT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.AutoSelect = &b
		}
	}
	if v := os.Getenv("SPOT_SPOTLIGHT_EFFECT"); v != "" {
		cfg.Spotlight.Effect = v
	}
	if v := os.Getenv("SPOT_SPOTLIGHT_RADIUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Spotlight.Radius = f
		}
	}
	if v := os.Getenv("SPOT_SPOTLIGHT_FEATHER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Spotlight.Feather = f
		}
	}
	if v := os.Getenv("SPOT_SPOTLIGHT_INTENSITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Spotlight.Intensity = f
		}
	}
	if v := os.Getenv("SPOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
