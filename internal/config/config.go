// Package config loads the archive core's configuration from flags,
// environment variables (ARCHIVECORE_ prefix), a config file, and
// built-in defaults, in that order of precedence, following the
// teacher CLI's flag > env > file > defaults convention.
package config

import "time"

// Config is the closed option set from spec §6.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Sessions struct {
		DurationHours        int `mapstructure:"duration_hours"`
		CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
	} `mapstructure:"sessions"`

	RateLimit struct {
		Login  string `mapstructure:"login"`  // e.g. "5/minute"
		Global string `mapstructure:"global"` // e.g. "200/day"
	} `mapstructure:"rate_limit"`

	Storage struct {
		Backend             string `mapstructure:"backend"` // local|s3
		LocalPath           string `mapstructure:"local_path"`
		Bucket              string `mapstructure:"bucket"`
		Endpoint            string `mapstructure:"endpoint"`
		AccessKey           string `mapstructure:"access_key"`
		SecretKey           string `mapstructure:"secret_key"`
		Region              string `mapstructure:"region"`
		VersioningEnabled   bool   `mapstructure:"versioning_enabled"`
		MaxVersionsPerObject int   `mapstructure:"max_versions_per_object"`
	} `mapstructure:"storage"`

	DB struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		Name           string `mapstructure:"name"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		MinConnections int    `mapstructure:"min_connections"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"db"`

	Hooks struct {
		Async     bool `mapstructure:"async"`
		QueueSize int  `mapstructure:"queue_size"`
	} `mapstructure:"hooks"`

	Audit struct {
		RetentionDays int `mapstructure:"retention_days"`
	} `mapstructure:"audit"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`

	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`

	Encryption struct {
		Enabled bool   `mapstructure:"enabled"`
		KeyFile string `mapstructure:"key_file"`
	} `mapstructure:"encryption"`
}

// SessionDuration returns the configured session TTL as a duration.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Sessions.DurationHours) * time.Hour
}

// Default returns a Config populated with the spec §6 defaults.
func Default() *Config {
	c := &Config{}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Sessions.DurationHours = 24
	c.Sessions.CleanupIntervalHours = 1
	c.RateLimit.Login = "5/minute"
	c.RateLimit.Global = "200/day"
	c.Storage.Backend = "local"
	c.Storage.LocalPath = "./data/storage"
	c.Storage.VersioningEnabled = true
	c.Storage.MaxVersionsPerObject = 10
	c.DB.Host = "localhost"
	c.DB.Port = 5432
	c.DB.Name = "archivecore"
	c.DB.MinConnections = 2
	c.DB.MaxConnections = 100
	c.Hooks.Async = true
	c.Hooks.QueueSize = 1000
	c.Audit.RetentionDays = 365
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	c.Redis.URL = "redis://localhost:6379/0"
	c.Encryption.Enabled = false
	c.Encryption.KeyFile = "./data/.encryption_key"
	return c
}
