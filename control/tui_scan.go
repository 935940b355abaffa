package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const maxErrorsInTUI = 20

// scanMsg is a message from the scanner or log tee.
type scanMsg struct {
	Percent int
	Message string
	Current int
	Total   int
	Done    bool
	Err     error
	Outcome *scanOutcome
	LogErr  string
}

// scanModel is the Bubble Tea model for the scan TUI.
type scanModel struct {
	percent    int
	message    string
	current    int
	total      int
	errors     []string
	done       bool
	cancelling bool
	err        error
	outcome    *scanOutcome
	logPath    string
	ch         chan scanMsg
	cancel     context.CancelFunc
	width      int
	height     int
}

func newScanModel(logPath string, ch chan scanMsg, cancel context.CancelFunc) *scanModel {
	return &scanModel{
		message: "Discovering audio files",
		errors:  make([]string, 0, maxErrorsInTUI),
		logPath: logPath,
		ch:      ch,
		cancel:  cancel,
	}
}

func (m *scanModel) Init() tea.Cmd {
	return m.waitForMsg()
}

func (m *scanModel) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.ch
	}
}

func (m *scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.waitForMsg()
	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" {
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancel()
				m.cancelling = true
			}
		}
		return m, m.waitForMsg()
	case scanMsg:
		if msg.LogErr != "" {
			m.errors = append(m.errors, msg.LogErr)
			if len(m.errors) > maxErrorsInTUI {
				m.errors = m.errors[len(m.errors)-maxErrorsInTUI:]
			}
			return m, m.waitForMsg()
		}
		if msg.Done {
			m.done = true
			m.err = msg.Err
			m.outcome = msg.Outcome
			return m, tea.Quit
		}
		m.percent = msg.Percent
		m.message = msg.Message
		m.current = msg.Current
		m.total = msg.Total
		return m, m.waitForMsg()
	default:
		return m, m.waitForMsg()
	}
}

func (m *scanModel) View() string {
	var b strings.Builder
	b.WriteString("  djmo scan\n\n")
	if m.total > 0 {
		b.WriteString(fmt.Sprintf("  Progress: %d%% (%d/%d)\n", m.percent, m.current, m.total))
	} else {
		b.WriteString(fmt.Sprintf("  Progress: %d%%\n", m.percent))
	}
	if m.message != "" {
		b.WriteString("  " + truncate(m.message, 60) + "\n")
	}
	b.WriteString("  Log file: " + m.logPath + "\n")
	if len(m.errors) > 0 {
		b.WriteString("\n  Recent errors / warnings:\n")
		start := 0
		if len(m.errors) > 10 {
			start = len(m.errors) - 10
		}
		for i := start; i < len(m.errors); i++ {
			b.WriteString("    • " + truncate(m.errors[i], 70) + "\n")
		}
	}
	if m.done {
		if m.cancelling {
			b.WriteString("\n  Stopping...\n")
		}
		if m.err != nil {
			b.WriteString("\n  Error: " + m.err.Error() + "\n")
		} else if m.outcome != nil {
			b.WriteString(fmt.Sprintf("\n  Scan complete: %d tracks written\n", m.outcome.Written))
		}
	}
	b.WriteString("\n  q: quit  (Ctrl+C: stop)\n")
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// RunScanTUI runs the TUI for scan. The caller must run the scanner in a
// goroutine and send a scanMsg with Done set when finished. cancel is called
// when the user presses q or Ctrl+C mid-run; may be nil. Log errors can be
// sent to logErrCh (optional). Returns the outcome and error from the model.
func RunScanTUI(logPath string, scanCh chan scanMsg, logErrCh <-chan string, cancel context.CancelFunc) (*scanOutcome, error) {
	model := newScanModel(logPath, scanCh, cancel)
	if logErrCh != nil {
		go func() {
			for s := range logErrCh {
				scanCh <- scanMsg{LogErr: s}
			}
		}()
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	sm, ok := finalModel.(*scanModel)
	if !ok {
		return nil, nil
	}
	return sm.outcome, sm.err
}
