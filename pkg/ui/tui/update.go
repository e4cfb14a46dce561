package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"douyindl/internal/downloader"
	"douyindl/pkg/douyin"
)

// Message types for the TUI

// StageMsg is sent when the pipeline enters a new stage
type StageMsg struct {
	Stage string
}

// ProfileMsg is sent once the profile probe succeeded
type ProfileMsg struct {
	Nickname string
	Posts    int
}

// PageMsg is sent after each listing page
type PageMsg struct {
	Info douyin.PageInfo
}

// ProgressMsg is sent to update batch progress
type ProgressMsg struct {
	Done  int
	Total int
}

// OutcomeMsg is sent when a task finishes
type OutcomeMsg struct {
	Outcome downloader.Outcome
}

// LogLinesMsg carries a batch of engine log lines
type LogLinesMsg struct {
	Lines []string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// FinishedMsg is sent once the batch and its retry rounds are over
type FinishedMsg struct {
	Stats downloader.Stats
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

type quitMsg struct{}

// quitDelay keeps the final screen visible before the program exits
const quitDelay = 2 * time.Second

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.mu.Lock()
		m.spinner, cmd = m.spinner.Update(msg)
		m.mu.Unlock()
		return m, cmd

	case TickMsg:
		// Regular UI update tick
		return m, tickCmd()

	case StageMsg:
		m.SetStage(msg.Stage)
		m.AddLogMessage("INFO", msg.Stage)
		return m, nil

	case ProfileMsg:
		m.SetNickname(msg.Nickname)
		m.AddLogMessage("INFO", fmt.Sprintf("Profile %s declares %d posts", msg.Nickname, msg.Posts))
		return m, nil

	case PageMsg:
		m.ObservePage(msg.Info)
		return m, nil

	case ProgressMsg:
		m.SetProgress(msg.Done, msg.Total)
		return m, nil

	case OutcomeMsg:
		item := m.RecordOutcome(msg.Outcome)
		if item.State == ItemFailed {
			m.AddLogMessage("ERROR", fmt.Sprintf("Failed: %s - %v", item.Name, item.Error))
		}
		return m, nil

	case LogLinesMsg:
		m.mu.Lock()
		for _, line := range msg.Lines {
			m.addLog("LOG", line)
		}
		m.mu.Unlock()
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case FinishedMsg:
		m.Finish(msg.Stats)
		level, text := "SUCCESS", fmt.Sprintf("Done: %d succeeded, %d failed", msg.Stats.Success, msg.Stats.FailedCount())
		if msg.Stats.FailedCount() > 0 {
			level = "WARN"
		}
		m.AddLogMessage(level, text)
		return m, tea.Tick(quitDelay, func(time.Time) tea.Msg { return quitMsg{} })

	case quitMsg:
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.mu.RLock()
		finished := m.finished
		m.mu.RUnlock()
		if !finished && m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		// Clear logs
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
