package tui

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"douyindl/internal/downloader"
	"douyindl/pkg/douyin"
)

// ItemState represents the result of a finished task
type ItemState int

const (
	ItemCompleted ItemState = iota
	ItemFailed
	ItemStopped
)

// Item is a finished task shown in the recent panel
type Item struct {
	ID       string
	Name     string
	Kind     string
	State    ItemState
	Bytes    int64
	Attempts int
	Error    error
	At       time.Time
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// Listing state
	nickname string
	stage    string
	pages    int
	posts    int

	// Batch state
	done      int
	total     int
	succeeded int
	failed    int
	stopped   int
	bytes     int64
	recent    []*Item
	maxRecent int
	summary   *downloader.Stats

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	finished       bool
	logMessages    []LogMessage
	maxLogMessages int
	onQuit         func()

	// Mutex for thread safety
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model. onQuit is called when the user quits
// before the batch has finished.
func NewModel(nickname string, onQuit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:          s,
		progress:         p,
		nickname:         nickname,
		stage:            "Starting",
		maxRecent:        8,
		sessionStartTime: time.Now(),
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
		onQuit:           onQuit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetStage records the current pipeline stage
func (m *Model) SetStage(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stage = stage
}

// SetNickname updates the profile label
func (m *Model) SetNickname(nickname string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nickname = nickname
}

// ObservePage records a fetched listing page
func (m *Model) ObservePage(info douyin.PageInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = info.Page
	m.posts = info.Total
}

// SetProgress records batch progress. A new total starts a new round.
func (m *Model) SetProgress(done, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if total != m.total || done < m.done {
		m.sessionStartTime = time.Now()
	}
	m.done = done
	m.total = total
}

// RecordOutcome adds a finished task to the counters and the recent panel
func (m *Model) RecordOutcome(o downloader.Outcome) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &Item{
		ID:       uuid.NewString(),
		Name:     o.Task.Description + o.Task.Ext,
		Kind:     string(o.Task.Kind),
		Bytes:    o.Bytes,
		Attempts: o.Attempts,
		Error:    o.Err,
		At:       time.Now(),
	}
	switch o.Kind {
	case downloader.OutcomeSuccess:
		item.State = ItemCompleted
		item.Name = path.Base(o.Path)
		m.succeeded++
		m.bytes += o.Bytes
	case downloader.OutcomeFailure:
		item.State = ItemFailed
		m.failed++
	default:
		item.State = ItemStopped
		m.stopped++
	}

	m.recent = append(m.recent, item)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
	return item
}

// Finish stores the final batch stats
func (m *Model) Finish(stats downloader.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.summary = &stats
	m.finished = true
	m.stage = "Finished"
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLog(level, message)
}

func (m *Model) addLog(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Recent returns a copy of the recent items, oldest first
func (m *Model) Recent() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, len(m.recent))
	for i, it := range m.recent {
		out[i] = *it
	}
	return out
}

// Counts returns succeeded, failed and stopped tallies
func (m *Model) Counts() (succeeded, failed, stopped int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.succeeded, m.failed, m.stopped
}

// ratio is the batch completion fraction. Caller holds the lock.
func (m *Model) ratio() float64 {
	if m.total == 0 {
		return 0
	}
	r := float64(m.done) / float64(m.total)
	if r > 1 {
		r = 1
	}
	return r
}

// eta estimates the time left in the round. Caller holds the lock.
func (m *Model) eta() time.Duration {
	if m.done == 0 || m.done >= m.total {
		return 0
	}
	perTask := time.Since(m.sessionStartTime) / time.Duration(m.done)
	return perTask * time.Duration(m.total-m.done)
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
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

// FormatSpeed formats speed in bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", FormatBytes(int64(bytesPerSecond)))
}
