package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, mirroring the teacher
// CLI's namespacing convention.
const EnvPrefix = "ARCHIVECORE"

// Load builds a Config from flags bound to fs, environment variables,
// and an optional config file, applying defaults for anything unset.
// Precedence: flags > env > file > defaults, per the teacher CLI's
// documented resolution order (cli/root.go).
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	} else {
		v.SetConfigName("archivecore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		_ = v.ReadInConfig()
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	applyDefaults(v)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults seeds viper with the same defaults Default() returns,
// so explicit file/env/flag values override them field by field
// rather than Unmarshal clobbering an untouched struct.
func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("sessions.duration_hours", d.Sessions.DurationHours)
	v.SetDefault("sessions.cleanup_interval_hours", d.Sessions.CleanupIntervalHours)
	v.SetDefault("rate_limit.login", d.RateLimit.Login)
	v.SetDefault("rate_limit.global", d.RateLimit.Global)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.local_path", d.Storage.LocalPath)
	v.SetDefault("storage.versioning_enabled", d.Storage.VersioningEnabled)
	v.SetDefault("storage.max_versions_per_object", d.Storage.MaxVersionsPerObject)
	v.SetDefault("db.host", d.DB.Host)
	v.SetDefault("db.port", d.DB.Port)
	v.SetDefault("db.name", d.DB.Name)
	v.SetDefault("db.min_connections", d.DB.MinConnections)
	v.SetDefault("db.max_connections", d.DB.MaxConnections)
	v.SetDefault("hooks.async", d.Hooks.Async)
	v.SetDefault("hooks.queue_size", d.Hooks.QueueSize)
	v.SetDefault("audit.retention_days", d.Audit.RetentionDays)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("encryption.enabled", d.Encryption.Enabled)
	v.SetDefault("encryption.key_file", d.Encryption.KeyFile)
}
