package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is used for config, state and credential locations
const AppName = "douyindl"

const envPrefix = "DOUYINDL_"

// Resume modes understood by the download filter
const (
	ResumeFilesystem = "filesystem"
	ResumeLog        = "log"
	ResumeBoth       = "both"
)

// DefaultUserAgent is sent with every API and media request
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.6261.95 Safari/537.36"

// Config holds all configuration options for the downloader
type Config struct {
	Douyin        DouyinConfig       `yaml:"douyin" json:"douyin"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Download      DownloadConfig     `yaml:"download" json:"download"`
	Export        ExportConfig       `yaml:"export" json:"export"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
	UI            UIConfig           `yaml:"ui" json:"ui"`

	// Saved profiles, managed by `douyindl users`
	Users []SavedUser `yaml:"users,omitempty" json:"users,omitempty" validate:"dive"`
}

// DouyinConfig holds web API settings
type DouyinConfig struct {
	Cookie         string        `yaml:"cookie,omitempty" json:"-"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent" validate:"required"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	PageDelay      time.Duration `yaml:"page_delay" json:"page_delay" validate:"gte=0"`
	PageSize       int           `yaml:"page_size" json:"page_size" validate:"min=1,max=100"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory       string `yaml:"base_directory" json:"base_directory" validate:"required"`
	UseCollectionFolder bool   `yaml:"use_collection_folder" json:"use_collection_folder"`
	IncludeDate         bool   `yaml:"include_date" json:"include_date"`
	ResumeMode          string `yaml:"resume_mode" json:"resume_mode" validate:"oneof=filesystem log both"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Threads           int           `yaml:"threads" json:"threads" validate:"min=1,max=64"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries" validate:"min=0,max=10"`
	AutoRetryRounds   int           `yaml:"auto_retry_rounds" json:"auto_retry_rounds" validate:"min=0,max=10"`
	FallbackURL       bool          `yaml:"fallback_url" json:"fallback_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" validate:"min=0"`
}

// ExportConfig controls the post metadata export written after a fetch
type ExportConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Format  string `yaml:"format" json:"format" validate:"oneof=xlsx json"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type" validate:"oneof=terminal desktop none"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal disabled off"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=console json"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// UIConfig holds interactive presentation settings
type UIConfig struct {
	TUI bool `yaml:"tui" json:"tui"`
}

// SavedUser is a profile remembered between runs
type SavedUser struct {
	Name      string    `yaml:"name" json:"name" validate:"required"`
	URL       string    `yaml:"url" json:"url" validate:"required,url"`
	SecUserID string    `yaml:"sec_user_id,omitempty" json:"sec_user_id,omitempty"`
	Nickname  string    `yaml:"nickname,omitempty" json:"nickname,omitempty"`
	AddedAt   time.Time `yaml:"added_at" json:"added_at"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Douyin: DouyinConfig{
			UserAgent:      DefaultUserAgent,
			RequestTimeout: 12 * time.Second,
			PageDelay:      100 * time.Millisecond,
			PageSize:       50,
		},
		Output: OutputConfig{
			BaseDirectory:       "./downloads",
			UseCollectionFolder: true,
			IncludeDate:         true,
			ResumeMode:          ResumeFilesystem,
		},
		Download: DownloadConfig{
			Threads:         8,
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			AutoRetryRounds: 3,
			FallbackURL:     true,
		},
		Export: ExportConfig{
			Format: "xlsx",
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from DOUYINDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = b
	}

	str("COOKIE", &c.Douyin.Cookie)
	str("USER_AGENT", &c.Douyin.UserAgent)
	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	str("RESUME_MODE", &c.Output.ResumeMode)
	num("THREADS", &c.Download.Threads)
	num("MAX_RETRIES", &c.Download.MaxRetries)
	num("REQUESTS_PER_MINUTE", &c.Download.RequestsPerMinute)
	flag("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	flag("EXPORT", &c.Export.Enabled)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".douyindl.yaml",
		".douyindl.yml",
		filepath.Join(xdg.ConfigHome, AppName, "config.yaml"),
		filepath.Join(xdg.ConfigHome, AppName, "config.yml"),
	}
	if home != "" {
		locations = append(locations, filepath.Join(home, ".douyindl.yaml"))
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultPath returns the XDG location where `config init` writes the file
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// ResolvePath returns the config file Load would read, falling back to DefaultPath
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if found := findConfigFile(); found != "" {
		return found
	}
	return DefaultPath()
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q constraint (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value()))
		}
	}

	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		key := strings.ToLower(u.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate saved user %q", u.Name))
		}
		seen[key] = true
	}

	if c.Export.Enabled && c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("export requires an output directory"))
	}

	return errors.Join(errs...)
}

// fieldPath strips the root type from a validator namespace
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold the session cookie
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindUser returns the saved user with the given name (case-insensitive)
func (c *Config) FindUser(name string) (*SavedUser, bool) {
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Name, name) {
			return &c.Users[i], true
		}
	}
	return nil, false
}

// AddUser stores u, replacing an existing entry with the same name
func (c *Config) AddUser(u SavedUser) {
	if existing, ok := c.FindUser(u.Name); ok {
		*existing = u
		return
	}
	c.Users = append(c.Users, u)
}

// RemoveUser deletes the saved user with the given name
func (c *Config) RemoveUser(name string) bool {
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Name, name) {
			c.Users = append(c.Users[:i], c.Users[i+1:]...)
			return true
		}
	}
	return false
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys absent from the map leave the current value untouched.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["threads"].(int); ok && v > 0 {
		c.Download.Threads = v
	}
	if v, ok := flags["no-mix-folder"].(bool); ok && v {
		c.Output.UseCollectionFolder = false
	}
	if v, ok := flags["no-date"].(bool); ok && v {
		c.Output.IncludeDate = false
	}
	if v, ok := flags["resume-mode"].(string); ok && v != "" {
		c.Output.ResumeMode = v
	}
	if v, ok := flags["export"].(bool); ok && v {
		c.Export.Enabled = true
	}
	if v, ok := flags["tui"].(bool); ok && v {
		c.UI.TUI = true
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Douyin.Cookie = v
	}
	if v, ok := flags["rate"].(int); ok && v > 0 {
		c.Download.RequestsPerMinute = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".douyindl.env"))
	}

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
