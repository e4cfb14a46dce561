package pipeline

import (
	"fmt"
	"strings"
	"time"

	"douyindl/internal/downloader"
	"douyindl/pkg/config"
	"douyindl/pkg/douyin"
	"douyindl/pkg/export"
	"douyindl/pkg/media"
	"douyindl/pkg/ratelimit"
	"douyindl/pkg/retry"
	"douyindl/pkg/storage"
)

// Options is the immutable description of one batch
type Options struct {
	// Input is a profile URL, short link or share text
	Input string
	// SecUserID skips resolution when set
	SecUserID string

	BaseDir             string
	UseCollectionFolder bool
	IncludeDate         bool
	ResumeMode          storage.Mode
	// Only restricts downloads to one kind: "", "video" or "image"
	Only string

	// ListOnly builds the task list without downloading
	ListOnly bool
	// RetryFailed downloads the tasks recorded in the checkpoint instead of
	// listing the profile
	RetryFailed bool

	Export       bool
	ExportFormat string

	AutoRetryRounds int
	Location        *time.Location
	Engine          downloader.Config
}

// Only values
const (
	OnlyAll   = ""
	OnlyVideo = "video"
	OnlyImage = "image"
)

// ParseOnly normalizes a kind filter
func ParseOnly(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return OnlyAll, nil
	case "video", "videos":
		return OnlyVideo, nil
	case "image", "images", "note", "notes":
		return OnlyImage, nil
	default:
		return "", fmt.Errorf("unknown kind %q (want video or image)", s)
	}
}

// DefaultOptions returns options matching config.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig builds batch options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	engine := downloader.DefaultConfig()
	engine.Workers = cfg.Download.Threads
	engine.Timeout = cfg.Download.Timeout
	engine.MaxRetries = cfg.Download.MaxRetries
	engine.UserAgent = cfg.Douyin.UserAgent
	engine.UseFallbackURL = cfg.Download.FallbackURL
	engine.Backoff = retry.DownloadBackoff()
	engine.Limiter = ratelimit.PerMinute(cfg.Download.RequestsPerMinute)

	format := cfg.Export.Format
	if format == "" {
		format = export.FormatXLSX
	}

	return Options{
		BaseDir:             cfg.Output.BaseDirectory,
		UseCollectionFolder: cfg.Output.UseCollectionFolder,
		IncludeDate:         cfg.Output.IncludeDate,
		ResumeMode:          storage.ParseMode(cfg.Output.ResumeMode),
		Export:              cfg.Export.Enabled,
		ExportFormat:        format,
		AutoRetryRounds:     cfg.Download.AutoRetryRounds,
		Location:            time.Local,
		Engine:              engine,
	}
}

// ClientConfig builds the web API client settings from the configuration
func ClientConfig(cfg *config.Config) douyin.ClientConfig {
	endpoints := douyin.DefaultEndpoints()
	if cfg.Douyin.PageSize > 0 {
		endpoints.PageSize = cfg.Douyin.PageSize
	}
	return douyin.ClientConfig{
		Cookie:    cfg.Douyin.Cookie,
		UserAgent: cfg.Douyin.UserAgent,
		Timeout:   cfg.Douyin.RequestTimeout,
		PageDelay: cfg.Douyin.PageDelay,
		Endpoints: endpoints,
	}
}

// selectKinds applies the Only filter to a task set
func selectKinds(set media.TaskSet, only string) media.TaskSet {
	switch only {
	case OnlyVideo:
		return set.Filter(true, false)
	case OnlyImage:
		return set.Filter(false, true)
	default:
		return set
	}
}
