package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"douyindl/pkg/pipeline"
	"douyindl/pkg/ui"
)

var exportFormat string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <profile-url | short-link | share-text | saved-user>",
	Short: "Export the metadata of every post without downloading",
	Long: `List a profile and write one row per post to
<output>/<nickname>/export/<nickname>.xlsx (or .json with --format json).

Columns: type, published, caption, collection, likes, comments, favorites,
shares, recommends, duration and post link.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "export format: xlsx or json (default from config)")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base download directory (default ./downloads)")
	exportCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := initLogging(cfg, false)
	if err := applyCredentials(cfg, accountName, log); err != nil {
		return err
	}

	tgt := resolveTarget(cfg, strings.TrimSpace(strings.Join(args, " ")))

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Input = tgt.Input
	opts.SecUserID = tgt.SecUserID
	opts.ListOnly = true
	opts.Export = false
	if exportFormat != "" {
		opts.ExportFormat = exportFormat
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := newRunner(cfg, log)
	runner.SetReporter(ui.NewProgressDisplay(ui.Output, label(tgt), verbose))

	res, err := runner.Run(ctx, opts)
	if err != nil {
		return explain(err)
	}
	if tgt.Saved != nil {
		refreshSavedUser(tgt.Saved.Name, res, log)
	}

	path, err := runner.Export(res, opts)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Exported %d posts to %s", len(res.Posts), path))
	return nil
}
