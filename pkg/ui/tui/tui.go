package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"douyindl/internal/downloader"
	"douyindl/pkg/douyin"
)

// TUI represents the terminal user interface for one download batch
type TUI struct {
	program *tea.Program
	model   *Model
	done    chan struct{}
	err     error
}

// NewTUI creates a new TUI instance. onQuit is called if the user quits
// while the batch is still running, typically a context cancel func.
func NewTUI(nickname string, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(nickname, onQuit)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background
func (t *TUI) Start() {
	go func() {
		defer close(t.done)
		_, t.err = t.program.Run()
	}()
}

// Wait blocks until the program exits
func (t *TUI) Wait() error {
	<-t.done
	return t.err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Model exposes the underlying model
func (t *TUI) Model() *Model {
	return t.model
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// OnStage reports a pipeline stage
func (t *TUI) OnStage(msg string) {
	t.Send(StageMsg{Stage: msg})
}

// OnProfile reports the resolved profile
func (t *TUI) OnProfile(p *douyin.Profile) {
	t.Send(ProfileMsg{Nickname: p.Nickname, Posts: p.AwemeCount})
}

// OnPage reports a fetched listing page
func (t *TUI) OnPage(info douyin.PageInfo) {
	t.Send(PageMsg{Info: douyin.PageInfo{Page: info.Page, Count: info.Count, Total: info.Total}})
}

// OnProgress reports batch progress
func (t *TUI) OnProgress(done, total int) {
	t.Send(ProgressMsg{Done: done, Total: total})
}

// OnLog forwards a batch of engine log lines
func (t *TUI) OnLog(lines []string) {
	cp := make([]string, len(lines))
	copy(cp, lines)
	t.Send(LogLinesMsg{Lines: cp})
}

// OnOutcome reports a finished task
func (t *TUI) OnOutcome(o downloader.Outcome) {
	t.Send(OutcomeMsg{Outcome: o})
}

// Finish reports the final stats; the program exits shortly after
func (t *TUI) Finish(stats downloader.Stats) {
	t.Send(FinishedMsg{Stats: stats})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
