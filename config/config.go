// Package config layers configuration from defaults, an optional YAML file,
// and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the server.
type Config struct {
	Host             string        `yaml:"host"`
	Port             string        `yaml:"port"`
	DataDir          string        `yaml:"data_dir"`
	Backend          string        `yaml:"backend"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	SecretKey        string        `yaml:"secret_key"`
	TokenValidity    time.Duration `yaml:"token_validity"`
	ItineraryScript  string        `yaml:"itinerary_script"`
	ItineraryTimeout time.Duration `yaml:"itinerary_timeout"`
}

// Default returns the development defaults. The secret key must be
// overridden outside of local development.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             "8080",
		DataDir:          "./data",
		Backend:          "json",
		AllowedOrigins:   []string{"*"},
		SecretKey:        "dev-secret",
		TokenValidity:    24 * time.Hour,
		ItineraryTimeout: 30 * time.Second,
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped if
// path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Host, "HOST")
	setString(&c.Port, "PORT")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.Backend, "STORE_BACKEND")
	setString(&c.SecretKey, "SECRET_KEY")
	setString(&c.ItineraryScript, "ITINERARY_SCRIPT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	setDuration(&c.TokenValidity, "TOKEN_VALIDITY")
	setDuration(&c.ItineraryTimeout, "ITINERARY_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Addr returns the host:port to listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
