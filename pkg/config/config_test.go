package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Download.Threads != 8 {
		t.Errorf("Expected default threads to be 8, got %d", cfg.Download.Threads)
	}
	if cfg.Download.MaxRetries != 3 {
		t.Errorf("Expected default max retries to be 3, got %d", cfg.Download.MaxRetries)
	}
	if cfg.Douyin.RequestTimeout != 12*time.Second {
		t.Errorf("Expected request timeout 12s, got %v", cfg.Douyin.RequestTimeout)
	}
	if cfg.Douyin.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.Douyin.PageSize)
	}
	if cfg.Output.ResumeMode != ResumeFilesystem {
		t.Errorf("Expected filesystem resume mode, got %s", cfg.Output.ResumeMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOUYINDL_COOKIE", "sessionid=abc")
	t.Setenv("DOUYINDL_OUTPUT_DIR", "/tmp/douyin")
	t.Setenv("DOUYINDL_THREADS", "4")
	t.Setenv("DOUYINDL_RESUME_MODE", "both")
	t.Setenv("DOUYINDL_NOTIFICATIONS_ENABLED", "false")
	t.Setenv("DOUYINDL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if cfg.Douyin.Cookie != "sessionid=abc" {
		t.Errorf("Expected cookie from env, got %q", cfg.Douyin.Cookie)
	}
	if cfg.Output.BaseDirectory != "/tmp/douyin" {
		t.Errorf("Expected output dir /tmp/douyin, got %s", cfg.Output.BaseDirectory)
	}
	if cfg.Download.Threads != 4 {
		t.Errorf("Expected 4 threads, got %d", cfg.Download.Threads)
	}
	if cfg.Output.ResumeMode != ResumeBoth {
		t.Errorf("Expected resume mode both, got %s", cfg.Output.ResumeMode)
	}
	if cfg.Notifications.Enabled {
		t.Error("Expected notifications to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("DOUYINDL_THREADS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	if err == nil || !strings.Contains(err.Error(), "DOUYINDL_THREADS") {
		t.Fatalf("Expected error naming DOUYINDL_THREADS, got %v", err)
	}
	if cfg.Download.Threads != 8 {
		t.Errorf("Threads should keep the default on parse failure, got %d", cfg.Download.Threads)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero threads", func(c *Config) { c.Download.Threads = 0 }, "Download.Threads"},
		{"unknown resume mode", func(c *Config) { c.Output.ResumeMode = "sqlite" }, "Output.ResumeMode"},
		{"empty output", func(c *Config) { c.Output.BaseDirectory = "" }, "Output.BaseDirectory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "Logging.Level"},
		{"bad export format", func(c *Config) { c.Export.Format = "csv" }, "Export.Format"},
		{"zero timeout", func(c *Config) { c.Download.Timeout = 0 }, "Download.Timeout"},
		{"saved user without url", func(c *Config) {
			c.Users = []SavedUser{{Name: "a", URL: "not a url"}}
		}, "Users[0].URL"},
		{"duplicate saved users", func(c *Config) {
			c.Users = []SavedUser{
				{Name: "a", URL: "https://www.douyin.com/user/x"},
				{Name: "A", URL: "https://www.douyin.com/user/y"},
			}
		}, "duplicate saved user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":        "/data",
		"threads":       16,
		"no-mix-folder": true,
		"no-date":       true,
		"export":        true,
		"log-level":     "warn",
		"cookie":        "",
	})

	if cfg.Output.BaseDirectory != "/data" {
		t.Errorf("Expected output /data, got %s", cfg.Output.BaseDirectory)
	}
	if cfg.Download.Threads != 16 {
		t.Errorf("Expected 16 threads, got %d", cfg.Download.Threads)
	}
	if cfg.Output.UseCollectionFolder || cfg.Output.IncludeDate {
		t.Error("Expected collection folder and date prefix to be disabled")
	}
	if !cfg.Export.Enabled {
		t.Error("Expected export to be enabled")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Douyin.Cookie = "ttwid=1"
	cfg.Download.Threads = 12
	cfg.Douyin.PageDelay = 250 * time.Millisecond
	cfg.AddUser(SavedUser{Name: "cat", URL: "https://www.douyin.com/user/MS4wLjABAAAAcat"})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Douyin.Cookie != "ttwid=1" {
		t.Errorf("Expected cookie to round trip, got %q", loaded.Douyin.Cookie)
	}
	if loaded.Download.Threads != 12 {
		t.Errorf("Expected 12 threads, got %d", loaded.Download.Threads)
	}
	if loaded.Douyin.PageDelay != 250*time.Millisecond {
		t.Errorf("Expected page delay 250ms, got %v", loaded.Douyin.PageDelay)
	}
	if u, ok := loaded.FindUser("CAT"); !ok || u.URL == "" {
		t.Errorf("Expected saved user to round trip, got %+v", loaded.Users)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "download:\n  threads: 2\noutput:\n  base_directory: /from/file\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOUYINDL_THREADS", "5")

	cfg, err := Load(path, map[string]interface{}{"output": "/from/flag"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Download.Threads != 5 {
		t.Errorf("Env should override file: got %d threads", cfg.Download.Threads)
	}
	if cfg.Output.BaseDirectory != "/from/flag" {
		t.Errorf("Flag should override file: got %s", cfg.Output.BaseDirectory)
	}
	if cfg.Douyin.PageSize != 50 {
		t.Errorf("Unset values should keep defaults, got page size %d", cfg.Douyin.PageSize)
	}
}

func TestUsersAddRemove(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddUser(SavedUser{Name: "a", URL: "https://www.douyin.com/user/1"})
	cfg.AddUser(SavedUser{Name: "a", URL: "https://www.douyin.com/user/2"})

	if len(cfg.Users) != 1 || cfg.Users[0].URL != "https://www.douyin.com/user/2" {
		t.Fatalf("AddUser should replace by name: %+v", cfg.Users)
	}
	if !cfg.RemoveUser("A") {
		t.Error("RemoveUser should match case-insensitively")
	}
	if cfg.RemoveUser("a") {
		t.Error("Removing a missing user should report false")
	}
}
