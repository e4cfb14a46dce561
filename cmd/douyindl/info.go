package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"douyindl/pkg/checkpoint"
	"douyindl/pkg/douyin"
	"douyindl/pkg/naming"
	"douyindl/pkg/pipeline"
	"douyindl/pkg/storage"
	"douyindl/pkg/ui"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <profile-url | short-link | share-text | saved-user>",
	Short: "Show a profile and its local download state",
	Long: `Probe a Douyin profile and print its statistics together with what is
already downloaded: the user folder, the number of files in the success log and
any failed downloads waiting for --retry-failed.

This is also a quick way to check that the stored cookie still works.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := initLogging(cfg, false)
	if err := applyCredentials(cfg, accountName, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tgt := resolveTarget(cfg, strings.TrimSpace(strings.Join(args, " ")))
	secUserID := tgt.SecUserID
	if secUserID == "" {
		resolver := douyin.NewResolver(nil, cfg.Douyin.UserAgent, log)
		if secUserID, err = resolver.Resolve(ctx, tgt.Input); err != nil {
			return explain(err)
		}
	}

	client := douyin.NewClient(pipeline.ClientConfig(cfg), log)
	profile, err := client.FetchProfile(ctx, secUserID)
	if err != nil {
		return explain(err)
	}

	ui.PrintHighlight(profile.Nickname)
	ui.PrintInfo("Profile", douyin.UserURL(profile.SecUID))
	if profile.UID != "" {
		ui.PrintInfo("UID", profile.UID)
	}
	if profile.Signature != "" {
		ui.PrintInfo("Bio", profile.Signature)
	}
	ui.PrintInfo("Posts", strconv.Itoa(profile.AwemeCount))
	ui.PrintInfo("Followers", formatCount(profile.FollowerCount))
	ui.PrintInfo("Following", formatCount(profile.FollowingCount))
	ui.PrintInfo("Likes", formatCount(profile.TotalFavorited))

	folder := naming.UserFolder(cfg.Output.BaseDirectory, profile.Nickname)
	fmt.Fprintln(ui.Output)
	ui.PrintInfo("Folder", folder)

	index, err := storage.Load(storage.LogPath(folder))
	if err != nil {
		log.WithError(err).Warn("Failed to read success log")
	} else {
		ui.PrintInfo("Downloaded", fmt.Sprintf("%d files", index.Len()))
	}

	if cpm, err := checkpoint.NewManager(profile.SecUID); err == nil {
		if cp, err := cpm.Load(); err == nil && cp != nil && len(cp.Failed) > 0 {
			ui.PrintWarning(fmt.Sprintf("%d failed downloads from %s, run with --retry-failed",
				len(cp.Failed), cp.UpdatedAt.Format("2006-01-02 15:04")))
		}
	}
	return nil
}

// formatCount renders large counters the way the app does (1.2w = 12,000)
func formatCount(n int64) string {
	switch {
	case n >= 100_000_000:
		return fmt.Sprintf("%.1fyi", float64(n)/100_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fw", float64(n)/10_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
