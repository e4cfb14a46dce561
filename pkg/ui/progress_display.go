package ui

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"douyindl/internal/downloader"
	"douyindl/pkg/douyin"
)

// ProgressDisplay provides a clean, minimal progress display on one
// terminal line
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	nickname string
	total    int
	done     int
	current  string
	failed   int
	bytes    int64
	start    time.Time
	tracker  *StatusTracker
	verbose  bool
	now      func() time.Time
}

// NewProgressDisplay creates a progress display writing to w. In verbose mode
// every outcome gets its own line instead of the in-place bar.
func NewProgressDisplay(w io.Writer, nickname string, verbose bool) *ProgressDisplay {
	if w == nil {
		w = Output
	}
	return &ProgressDisplay{
		out:      w,
		nickname: nickname,
		start:    time.Now(),
		tracker:  NewStatusTracker(0),
		verbose:  verbose,
		now:      time.Now,
	}
}

// OnProfile updates the label once the profile probe resolved it
func (p *ProgressDisplay) OnProfile(profile *douyin.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if profile.Nickname != "" {
		p.nickname = profile.Nickname
	}
	p.tracker.Declared = profile.AwemeCount
	fmt.Fprintf(p.out, "%s: %s (%d posts)\n", Cyan("User"), Yellow(p.nickname), profile.AwemeCount)
}

// OnStage prints a pipeline stage on its own line
func (p *ProgressDisplay) OnStage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s %s\n", Magenta("→"), msg)
}

// OnPage updates the listing line
func (p *ProgressDisplay) OnPage(info douyin.PageInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Observe(info)
	p.clearLine()
	fmt.Fprint(p.out, p.tracker.Line())
}

// OnProgress redraws the download bar
func (p *ProgressDisplay) OnProgress(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done == 1 || total != p.total {
		p.start = p.now()
	}
	p.done = done
	p.total = total
	if !p.verbose {
		p.printProgress()
	}
}

// OnLog prints engine log lines in verbose mode
func (p *ProgressDisplay) OnLog(lines []string) {
	if !p.verbose {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, line := range lines {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), line)
	}
}

// OnOutcome tallies a finished task
func (p *ProgressDisplay) OnOutcome(o downloader.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch o.Kind {
	case downloader.OutcomeSuccess:
		p.bytes += o.Bytes
		p.current = path.Base(o.Path)
	case downloader.OutcomeFailure:
		p.failed++
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s: %v\n", Red("✗"), o.Task.Description, o.Err)
		}
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	barWidth := 20
	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.nickname),
		bar,
		p.done,
		p.total,
		formatBytes(p.bytes),
		p.calculateETA(),
	)

	if p.current != "" {
		line += fmt.Sprintf(" • %s", truncate(p.current, 40))
	}

	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	p.clearLine()
	fmt.Fprint(p.out, line)
}

func (p *ProgressDisplay) clearLine() {
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 120))
}

// Finish prints the batch summary
func (p *ProgressDisplay) Finish(stats downloader.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n\n%s Downloaded %d files from %s\n",
		Green("✓"),
		stats.Downloaded(),
		p.nickname,
	)

	fmt.Fprintf(p.out, "  %s videos %d, images %d, skipped %d\n",
		Dim("•"), stats.Videos, stats.Images, stats.Skipped)

	fmt.Fprintf(p.out, "  %s %s in %s\n",
		Dim("•"),
		formatBytes(stats.Bytes),
		formatDuration(stats.Elapsed),
	)

	if stats.Stopped > 0 {
		fmt.Fprintf(p.out, "  %s %d tasks stopped\n", Yellow("•"), stats.Stopped)
	}

	if n := stats.FailedCount(); n > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed (%d videos, %d images); run with --retry-failed to try again\n",
			Red("•"),
			n,
			len(stats.FailedVideos),
			len(stats.FailedImages),
		)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.done == 0 {
		return "calculating..."
	}

	elapsed := p.now().Sub(p.start)
	rate := float64(p.done) / elapsed.Seconds()
	if rate <= 0 || elapsed <= 0 {
		return "calculating..."
	}

	remaining := p.total - p.done
	eta := time.Duration(float64(remaining)/rate) * time.Second

	return formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
