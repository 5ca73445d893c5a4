package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected default redis addr %q", cfg.RedisAddr)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("unexpected default sync interval %v", cfg.SyncInterval)
	}
	if cfg.Role != "student" {
		t.Errorf("unexpected default role %q", cfg.Role)
	}
	if cfg.DBPath == "" {
		t.Error("db path default should not be empty")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `owner: staff-1
role: staff
redis_addr: redis.campus.local:6379
sync_interval: 2m
roster_shards:
  - students_2025
  - students_2026
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Owner != "staff-1" || cfg.Role != "staff" {
		t.Errorf("unexpected identity: %s/%s", cfg.Owner, cfg.Role)
	}
	if cfg.RedisAddr != "redis.campus.local:6379" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("unexpected sync interval %v", cfg.SyncInterval)
	}
	if len(cfg.RosterShards) != 2 {
		t.Errorf("unexpected shards %v", cfg.RosterShards)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CAMPUSYNC_REDIS_ADDR", "env.redis:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RedisAddr != "env.redis:6379" {
		t.Errorf("env override ignored, got %q", cfg.RedisAddr)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected explicit missing config file to fail")
	}
}
