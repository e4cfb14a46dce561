package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"douyindl/pkg/config"
	"douyindl/pkg/logger"
	"douyindl/pkg/media"
	"douyindl/pkg/naming"
	"douyindl/pkg/pipeline"
	"douyindl/pkg/ui"
	"douyindl/pkg/ui/tui"
)

var (
	// Download command flags
	outputDir    string
	threads      int
	noMixFolder  bool
	noDate       bool
	useTUI       bool
	listOnly     bool
	onlyKind     string
	exportPosts  bool
	retryFailed  bool
	accountName  string
	resumeMode   string
	cookieHeader string
	rateLimit    int
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <profile-url | short-link | share-text | saved-user>",
	Short: "Download every post of a Douyin user",
	Long: `Download all videos, image notes and live photos of a Douyin user.

Files are written to <output>/<nickname>/. Posts that belong to a collection
(mix) go to a subfolder named after it, and images go to an images/ folder.
Files that are already present are skipped, so an interrupted run can simply
be started again.

Failed downloads are retried automatically. Whatever still fails is remembered
and can be retried later with --retry-failed without listing the profile again.`,
	Example: `  # Download a profile
  douyindl download https://www.douyin.com/user/MS4wLjABAAAA...

  # Paste the share text from the app
  douyindl download "7.43 复制打开抖音，看看【某某的作品】 https://v.douyin.com/iRNBho6u/"

  # Only videos, 16 parallel downloads, flat folders
  douyindl download <url> --only video --threads 16 --no-mix-folder

  # Show what would be downloaded
  douyindl download <url> --list

  # Retry what failed last time
  douyindl download <url> --retry-failed

  # Use a saved user
  douyindl users add alice https://www.douyin.com/user/MS4wLjABAAAA...
  douyindl download alice`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
	// Also add these flags to root command so `douyindl <url>` works
	addDownloadFlags(rootCmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "base download directory (default ./downloads)")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "number of parallel downloads (default 8)")
	cmd.Flags().BoolVar(&noMixFolder, "no-mix-folder", false, "do not put collection posts in their own folder")
	cmd.Flags().BoolVar(&noDate, "no-date", false, "do not prefix file names with the post date")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	cmd.Flags().BoolVarP(&listOnly, "list", "l", false, "list the media that would be downloaded and exit")
	cmd.Flags().StringVar(&onlyKind, "only", "", "download only one kind: video or image")
	cmd.Flags().BoolVar(&exportPosts, "export", false, "also export post metadata to <nickname>/export/")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "retry the downloads that failed in the last run")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	cmd.Flags().StringVar(&resumeMode, "resume-mode", "", "how finished files are detected: filesystem, log or both")
	cmd.Flags().StringVar(&cookieHeader, "cookie", "", "Cookie header to send instead of the stored account")
	cmd.Flags().IntVar(&rateLimit, "rate", 0, "maximum media requests per minute (0 = unlimited)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	only, err := pipeline.ParseOnly(onlyKind)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fullscreen := cfg.UI.TUI && !listOnly
	log := initLogging(cfg, fullscreen)
	if err := applyCredentials(cfg, accountName, log); err != nil {
		return err
	}

	// share text may arrive split over several arguments
	tgt := resolveTarget(cfg, strings.TrimSpace(strings.Join(args, " ")))

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Input = tgt.Input
	opts.SecUserID = tgt.SecUserID
	opts.Only = only
	opts.ListOnly = listOnly
	opts.RetryFailed = retryFailed

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg, log)
	runner.SetNotifier(newBatchNotifier(cfg, fullscreen))

	log.WithField("input", opts.Input).Info("Starting download batch")

	var res *pipeline.Result
	if fullscreen {
		res, err = runWithTUI(ctx, runner, opts, label(tgt))
	} else {
		if !listOnly {
			ui.PrintInfo("Target", tgt.Input)
		}
		runner.SetReporter(ui.NewProgressDisplay(ui.Output, label(tgt), verbose))
		res, err = runner.Run(ctx, opts)
	}
	if err != nil {
		log.WithError(err).Error("Download batch failed")
		return explain(err)
	}

	if tgt.Saved != nil {
		refreshSavedUser(tgt.Saved.Name, res, log)
	}
	if res.ExportPath != "" {
		ui.PrintInfo("Exported", res.ExportPath)
	}
	if listOnly {
		printTaskList(res)
		return nil
	}

	if n := res.Stats.FailedCount(); n > 0 {
		return fmt.Errorf("%d downloads failed", n)
	}
	return nil
}

// runWithTUI runs the batch behind the full screen view and prints the
// console summary once the view has closed
func runWithTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, name string) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(name, cancel)
	runner.SetReporter(terminal)
	terminal.Start()

	res, err := runner.Run(ctx, opts)
	if err != nil {
		// the view only closes itself after a finished batch
		terminal.Stop()
	}
	if tuiErr := terminal.Wait(); tuiErr != nil {
		logger.GetLogger().WithError(tuiErr).Error("TUI failed")
	}

	if err == nil {
		nickname := name
		if res.Profile != nil && res.Profile.Nickname != "" {
			nickname = res.Profile.Nickname
		}
		ui.NewProgressDisplay(ui.Output, nickname, false).Finish(res.Stats)
	}
	return res, err
}

func label(t target) string {
	if t.Saved != nil {
		if t.Saved.Nickname != "" {
			return t.Saved.Nickname
		}
		return t.Saved.Name
	}
	return ""
}

// refreshSavedUser stores the resolved id and current nickname of a saved user
func refreshSavedUser(name string, res *pipeline.Result, log logger.Logger) {
	if res.Profile == nil {
		return
	}
	_, err := updateConfigFile(func(cfg *config.Config) bool {
		u, ok := cfg.FindUser(name)
		if !ok {
			return false
		}
		if u.SecUserID == res.SecUserID && u.Nickname == res.Profile.Nickname {
			return false
		}
		u.SecUserID = res.SecUserID
		u.Nickname = res.Profile.Nickname
		return true
	})
	if err != nil {
		log.WithError(err).Warn("Failed to update saved user")
	}
}

func printTaskList(res *pipeline.Result) {
	set := res.Tasks
	ui.PrintHighlight(fmt.Sprintf("%d media in %d posts", set.Len(), set.Summary.Posts))
	fmt.Fprintf(ui.Output, "  videos %d, albums %d, images %d, live photos %d\n\n",
		set.Summary.Videos, set.Summary.Albums, set.Summary.Images, set.Summary.LivePhotos)

	for _, t := range set.All() {
		kind := ui.Cyan(string(t.Kind))
		if t.Kind != media.KindVideo {
			kind = ui.Magenta(string(t.Kind))
		}
		fmt.Fprintf(ui.Output, "%-6s %s\n", kind, naming.ExpectedPath(t))
		if verbose {
			fmt.Fprintf(ui.Output, "       %s\n", ui.Dim(t.URL))
		}
	}

	if res.UserFolder != "" {
		fmt.Fprintln(ui.Output)
		ui.PrintInfo("Folder", res.UserFolder)
	}
}
