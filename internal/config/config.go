// Package config loads the service configuration from defaults, an optional
// YAML file, and TABLESERVE_-prefixed environment variables, in that order of
// precedence (later sources override earlier ones).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before merging, e.g.
// TABLESERVE_DATABASE_HOST overrides database.host.
const EnvPrefix = "TABLESERVE_"

type Config struct {
	Server   Server   `koanf:"server"`
	Database Database `koanf:"database"`
	RabbitMQ RabbitMQ `koanf:"rabbitmq"`
	Logging  Logging  `koanf:"logging"`
	Staff    Staff    `koanf:"staff"`
}

type Server struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN builds the postgres connection string for pgxpool.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RabbitMQ struct {
	// Enabled controls whether lifecycle events are also published to the
	// fanout exchange. The in-process WebSocket hub works either way.
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	VHost    string `koanf:"vhost"`
	Exchange string `koanf:"exchange"`
}

func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Staff struct {
	// Tokens maps a bearer token to the restaurant id its holder manages.
	// Stands in for the external auth system in development and tests.
	Tokens map[string]string `koanf:"tokens"`
}

func defaults() Config {
	return Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "tableserve",
			SSLMode: "disable",
		},
		RabbitMQ: RabbitMQ{
			Enabled:  false,
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Exchange: "order_events",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration. path may be empty or point to a missing file, in
// which case defaults plus environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.Exchange == "" {
		return fmt.Errorf("rabbitmq.exchange is required when rabbitmq is enabled")
	}
	return nil
}
