package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"douyindl/pkg/auth"
	"douyindl/pkg/config"
	"douyindl/pkg/douyin"
	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/pipeline"
	"douyindl/pkg/ui"
)

// loadConfig loads the configuration and applies the flags the user set
// explicitly on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	set := cmd.Flags()
	for _, name := range []string{"output", "resume-mode", "cookie"} {
		if f := set.Lookup(name); f != nil && f.Changed {
			flags[name] = f.Value.String()
		}
	}
	for _, name := range []string{"threads", "rate"} {
		if set.Changed(name) {
			if v, err := set.GetInt(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range []string{"no-mix-folder", "no-date", "export", "tui"} {
		if set.Changed(name) {
			if v, err := set.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}

	return config.Load(configFile, flags)
}

// initLogging starts the global logger. Without --verbose or an explicit level
// the console only shows warnings so the progress line stays readable; the
// TUI owns the screen, so console logging is off there unless a file is set.
func initLogging(cfg *config.Config, fullscreen bool) logger.Logger {
	if logLevel == "" && cfg.Logging.File == "" {
		switch {
		case fullscreen:
			cfg.Logging.Level = "disabled"
		case !verbose:
			cfg.Logging.Level = "warn"
		}
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintWarning("Failed to initialize logger", err.Error())
	}
	return logger.GetLogger().WithField("version", version)
}

// applyCredentials fills in the cookie from the credential store. An explicit
// account must exist; otherwise a missing cookie is not an error because
// public profiles often list without one.
func applyCredentials(cfg *config.Config, accountName string, log logger.Logger) error {
	if accountName == "" && cfg.Douyin.Cookie != "" {
		log.Debug("Using cookie from configuration")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		if accountName != "" {
			return err
		}
		log.WithError(err).Warn("Credential store unavailable")
		return nil
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeAuth, "account not found, see 'douyindl auth list'", err)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			log.Info("No stored cookie, listing anonymously")
			return nil
		}
		if err != nil {
			log.WithError(err).Warn("Failed to read stored credentials")
			return nil
		}
	}

	cfg.Douyin.Cookie = account.Cookie
	if account.UserAgent != "" {
		cfg.Douyin.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Name).Info("Using stored credentials")
	return nil
}

// newRunner wires the web client and resolver for cfg
func newRunner(cfg *config.Config, log logger.Logger) *pipeline.Runner {
	client := douyin.NewClient(pipeline.ClientConfig(cfg), log)
	resolver := douyin.NewResolver(nil, cfg.Douyin.UserAgent, log)
	return pipeline.New(client, resolver, log)
}

// target is a download target given on the command line, either a saved
// user name or anything the resolver understands
type target struct {
	Input     string
	SecUserID string
	Saved     *config.SavedUser
}

func resolveTarget(cfg *config.Config, arg string) target {
	if saved, ok := cfg.FindUser(arg); ok {
		return target{Input: saved.URL, SecUserID: saved.SecUserID, Saved: saved}
	}
	return target{Input: arg}
}

// updateConfigFile applies fn to the configuration file alone, without the
// environment or flag overrides of the running command, and saves it when fn
// reports a change
func updateConfigFile(fn func(cfg *config.Config) bool) (string, error) {
	path := config.ResolvePath(configFile)
	cfg := config.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if err := cfg.LoadFromFile(path); err != nil {
			return path, err
		}
	}

	if !fn(cfg) {
		return path, nil
	}
	if err := cfg.Validate(); err != nil {
		return path, err
	}
	return path, cfg.Save(path)
}

// explain adds a hint to batch level errors
func explain(err error) error {
	switch {
	case errs.IsType(err, errs.ErrorTypeAuth):
		ui.PrintWarning("Douyin rejected the request", "store a browser cookie with 'douyindl auth login'")
	case errs.IsType(err, errs.ErrorTypeResolution):
		ui.PrintWarning("Could not find a profile", "pass a profile URL, a v.douyin.com short link or the share text")
	}
	return err
}

// batchNotifier forwards end-of-batch notifications the configuration asks for
type batchNotifier struct {
	notifier   *ui.Notifier
	onComplete bool
	onError    bool
}

func newBatchNotifier(cfg *config.Config, quietConsole bool) pipeline.Notifier {
	if !notifications || !cfg.Notifications.Enabled {
		return nil
	}
	w := ui.Output
	if quietConsole {
		w = io.Discard
	}
	return &batchNotifier{
		notifier:   ui.NewNotifier(cfg.Notifications.NotificationType, w),
		onComplete: cfg.Notifications.OnComplete,
		onError:    cfg.Notifications.OnError,
	}
}

func (b *batchNotifier) SendSuccess(title, message string) {
	if b.onComplete {
		b.notifier.SendSuccess(title, message)
	}
}

func (b *batchNotifier) SendError(title, message string) {
	if b.onError {
		b.notifier.SendError(title, message)
	}
}
