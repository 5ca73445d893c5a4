// Package config loads application configuration from defaults, an
// optional YAML file, and CAMPUSYNC_-prefixed environment variables,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the application.
type Config struct {
	// DBPath is the SQLite file backing the local cache.
	DBPath string `mapstructure:"db_path"`

	// RedisAddr is the remote document store address. Empty disables
	// the remote store (offline-only operation).
	RedisAddr string `mapstructure:"redis_addr"`

	// ProbeURL is the endpoint the reachability check probes.
	ProbeURL string `mapstructure:"probe_url"`

	// ProbeTimeout bounds the reachability probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// ImportsDir is the drop directory the daemon watches for roster
	// JSON files.
	ImportsDir string `mapstructure:"imports_dir"`

	// TimetablePath is the optional YAML subject timetable. Empty
	// falls back to the built-in catalog.
	TimetablePath string `mapstructure:"timetable_path"`

	// RosterShards lists the remote roster collections, one per batch
	// year.
	RosterShards []string `mapstructure:"roster_shards"`

	// BlobEndpoint and BlobAPIKey configure the image upload service.
	// Empty endpoint disables uploads.
	BlobEndpoint string `mapstructure:"blob_endpoint"`
	BlobAPIKey   string `mapstructure:"blob_api_key"`

	// Owner and Role identify the signed-in account.
	Owner string `mapstructure:"owner"`
	Role  string `mapstructure:"role"`

	// SyncInterval is the daemon's opportunistic sync period.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// DashboardPort is the status dashboard's listen port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is the rotating log destination. Empty logs to stderr
	// only.
	LogFile string `mapstructure:"log_file"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".campusync"
	}
	return filepath.Join(home, ".campusync")
}

// Load reads configuration. path names an explicit config file; when
// empty, $HOME/.campusync/config.yaml is used if it exists.
func Load(path string) (*Config, error) {
	v := viper.New()

	dataDir := defaultDataDir()
	v.SetDefault("db_path", filepath.Join(dataDir, "cache.db"))
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("probe_url", "https://clients3.google.com/generate_204")
	v.SetDefault("probe_timeout", 5*time.Second)
	v.SetDefault("imports_dir", filepath.Join(dataDir, "imports"))
	v.SetDefault("timetable_path", "")
	v.SetDefault("roster_shards", []string{"students"})
	v.SetDefault("blob_endpoint", "")
	v.SetDefault("blob_api_key", "")
	v.SetDefault("owner", "")
	v.SetDefault("role", "student")
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("CAMPUSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; anything else is not
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				if !os.IsNotExist(err) {
					return nil, fmt.Errorf("failed to read config: %w", err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
