package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderLogo())

	// Main content area with two columns
	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ",
		rightColumn,
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// The render helpers below run under the read lock taken by View.

func (m *Model) renderLogo() string {
	logo := `
╔════════════════════════════════════════════════════╗
║  ██████╗  ██████╗ ██╗   ██╗██╗   ██╗██╗███╗   ██╗  ║
║  ██╔══██╗██╔═══██╗██║   ██║╚██╗ ██╔╝██║████╗  ██║  ║
║  ██║  ██║██║   ██║██║   ██║ ╚████╔╝ ██║██╔██╗ ██║  ║
║  ██║  ██║██║   ██║██║   ██║  ╚██╔╝  ██║██║╚██╗██║  ║
║  ██████╔╝╚██████╔╝╚██████╔╝   ██║   ██║██║ ╚████║  ║
║  ╚═════╝  ╚═════╝  ╚═════╝    ╚═╝   ╚═╝╚═╝  ╚═══╝  ║
║            PROFILE MEDIA DOWNLOADER                ║
╚════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderProgressPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRecentPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" PROFILE ")

	elapsed := time.Since(m.sessionStartTime)
	var speed float64
	if s := elapsed.Seconds(); s > 0 {
		speed = float64(m.bytes) / s
	}

	stage := m.stage
	if !m.finished {
		stage = m.spinner.View() + " " + stage
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("User:"), statsValueStyle.Render(m.nickname)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Stage:"), statsValueStyle.Render(stage)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Listed:"), statsValueStyle.Render(fmt.Sprintf("%d posts in %d pages", m.posts, m.pages))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Downloaded:"), successStyle.Render(fmt.Sprintf("%d files", m.succeeded))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(m.bytes))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Average Speed:"), speedStyle.Render(FormatSpeed(speed))),
	}

	if m.failed > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("✗ %d failed", m.failed)))
	}
	if m.stopped > 0 {
		stats = append(stats, warningStyle.Render(fmt.Sprintf("■ %d stopped", m.stopped)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderProgressPanel(width int) string {
	title := titleStyle.Render(" BATCH ")

	ratio := m.ratio()
	bar := m.progress
	bar.Width = width - 8
	if bar.Width < 10 {
		bar.Width = 10
	}

	content := []string{
		GetProgressBarStyle(ratio*100).Render(fmt.Sprintf("%d/%d (%.0f%%)", m.done, m.total, ratio*100)),
		bar.ViewAs(ratio),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(m.eta()))),
	}

	if m.summary != nil {
		content = append(content, "", successStyle.Render(fmt.Sprintf(
			"videos %d, images %d, skipped %d",
			m.summary.Videos, m.summary.Images, m.summary.Skipped,
		)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENT ")

	if len(m.recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing finished yet")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	maxName := width - 20
	if maxName < 10 {
		maxName = 10
	}

	var items []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		it := m.recent[i]
		name := truncate(it.Name, maxName)
		switch it.State {
		case ItemCompleted:
			items = append(items, queueItemCompletedStyle.Render("✓ "+name+" "+FormatBytes(it.Bytes)))
		case ItemFailed:
			items = append(items, errorStyle.PaddingLeft(2).Render(fmt.Sprintf("✗ %s (%d attempts)", name, it.Attempts)))
		default:
			items = append(items, queueItemStyle.Render("■ "+name))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOGS ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	if maxMsgLen < 10 {
		maxMsgLen = 10
	}

	var logs []string
	for i := start; i < len(m.logMessages); i++ {
		log := m.logMessages[i]
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, maxMsgLen))

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop downloads and quit
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Downloaded
    ` + warningStyle.Render("Orange") + `   - Stopped
    ` + errorStyle.Render("Red") + `      - Failed after retries
`

	return panelStyle.Width(m.width).Render(help)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
