package ui

import (
	"douyindl/internal/downloader"
	"douyindl/pkg/douyin"
)

// Display is implemented by the console progress line and the TUI. The
// pipeline reports stages and pages to it and the download engine reports
// progress, log batches and outcomes.
type Display interface {
	downloader.Sink
	downloader.OutcomeObserver
	OnStage(msg string)
	OnProfile(p *douyin.Profile)
	OnPage(info douyin.PageInfo)
	Finish(stats downloader.Stats)
}
