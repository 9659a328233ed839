// Package config loads the gateway's configuration: server bind address,
// the backend driver selection, the optional S3 mirror, and logging.
// Adapted from the teacher's internal/config/config.go -- same viper-based
// Load() fallback chain and mapstructure-tagged sub-configs, trimmed to the
// concerns this gateway actually has (no database, SSH, or OPA layer).
package config

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EmbeddedFS can be set to ship a default config.yaml inside the binary.
var EmbeddedFS embed.FS

// Config is the complete gateway configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP host binding's listen configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// BackendConfig selects and configures the driver.Driver implementation.
type BackendConfig struct {
	// Type is "local" (subprocess driver over OriginDir) or "http"
	// (upstream proxy driver over UpstreamOrigin).
	Type string `mapstructure:"type"`

	// OriginDir is the directory bare repositories live under, for Type=local.
	OriginDir string `mapstructure:"origin_dir"`

	// UpstreamOrigin is the base URL of the upstream Smart HTTP server,
	// for Type=http.
	UpstreamOrigin string `mapstructure:"upstream_origin"`

	// EnabledUploadPack/EnabledReceivePack override driver.Local's
	// fallback default when `git config --bool daemon.<cmd>` is unset.
	EnabledUploadPack  bool `mapstructure:"enabled_upload_pack"`
	EnabledReceivePack bool `mapstructure:"enabled_receive_pack"`
}

// IsHTTP reports whether the backend is the upstream-proxy driver.
func (b *BackendConfig) IsHTTP() bool {
	return strings.ToLower(b.Type) == "http"
}

// IsLocal reports whether the backend is the local subprocess driver.
func (b *BackendConfig) IsLocal() bool {
	return strings.ToLower(b.Type) == "local" || b.Type == ""
}

// MirrorConfig configures the optional post-receive S3 mirror.
type MirrorConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	Prefix       string `mapstructure:"prefix"`
	TimeoutSecs  int    `mapstructure:"timeout_seconds"`
}

// Timeout returns TimeoutSecs as a time.Duration, zero meaning unbounded.
func (m *MirrorConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSecs) * time.Second
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json, console
}

// Load reads configuration from file and environment variables. It tries,
// in order:
//  1. An explicit file path (if provided and exists on disk).
//  2. The embedded filesystem (if EmbeddedFS was set).
//  3. Common filesystem locations (./config.yaml, ./configs/config.yaml,
//     /etc/githttpgw/config.yaml).
//  4. Environment variables, always applied as overrides regardless of
//     whether a file was found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("GITHTTPGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configLoaded := false

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			configLoaded = true
		}
	}

	if !configLoaded {
		if embeddedConfig, err := tryLoadEmbeddedConfig(configPath); err == nil {
			if err := v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
				return nil, fmt.Errorf("failed to read embedded config: %w", err)
			}
			configLoaded = true
		}
	}

	if !configLoaded {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/githttpgw")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadWithEmbedded loads configuration with an embedded filesystem set.
func LoadWithEmbedded(configPath string, embeddedFS embed.FS) (*Config, error) {
	EmbeddedFS = embeddedFS
	return Load(configPath)
}

func tryLoadEmbeddedConfig(configPath string) ([]byte, error) {
	entries, err := fs.ReadDir(EmbeddedFS, ".")
	if err != nil || len(entries) == 0 {
		return nil, fmt.Errorf("no embedded config available")
	}

	if configPath != "" {
		pathsToTry := []string{
			configPath,
			strings.TrimPrefix(configPath, "configs/"),
			strings.TrimPrefix(configPath, "./configs/"),
			strings.TrimPrefix(configPath, "./"),
		}
		for _, path := range pathsToTry {
			if data, err := fs.ReadFile(EmbeddedFS, path); err == nil {
				return data, nil
			}
		}
	}

	for _, name := range []string{"config.yaml", "config.yml"} {
		if data, err := fs.ReadFile(EmbeddedFS, name); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("config file not found in embedded filesystem")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("backend.type", "local")
	v.SetDefault("backend.origin_dir", "./data/repos")
	v.SetDefault("backend.enabled_upload_pack", true)
	v.SetDefault("backend.enabled_receive_pack", true)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.use_path_style", false)
	v.SetDefault("mirror.timeout_seconds", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.format", "json")
}

// overrideFromEnv handles environment overrides too sensitive to round-trip
// through viper's automatic-env key replacement (credentials).
func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		v.Set("mirror.access_key", key)
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		v.Set("mirror.secret_key", secret)
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Backend.IsLocal() {
		if c.Backend.OriginDir == "" {
			return fmt.Errorf("backend.origin_dir is required for the local backend")
		}
	} else if c.Backend.IsHTTP() {
		if c.Backend.UpstreamOrigin == "" {
			return fmt.Errorf("backend.upstream_origin is required for the http backend")
		}
	} else {
		return fmt.Errorf("invalid backend type: %s", c.Backend.Type)
	}

	if c.Mirror.Enabled {
		if c.Mirror.Bucket == "" {
			return fmt.Errorf("mirror.bucket is required when the mirror is enabled")
		}
		if c.Mirror.Region == "" {
			return fmt.Errorf("mirror.region is required when the mirror is enabled")
		}
	}

	return nil
}

// ServerAddress returns the HTTP server's listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Mode == "debug" || c.Server.Mode == "development"
}
