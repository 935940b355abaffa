package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ethiapath/djmusicorganizer/library"
)

// migrateMsg is a message from the migration service or log tee.
type migrateMsg struct {
	Percent int
	Message string
	Current int
	Total   int
	Done    bool
	Result  *library.MigrationResult
	Err     error
	LogErr  string
}

// migrateModel is the Bubble Tea model for the migrate TUI.
type migrateModel struct {
	percent    int
	message    string
	current    int
	total      int
	errors     []string
	done       bool
	cancelling bool
	err        error
	result     *library.MigrationResult
	logPath    string
	ch         chan migrateMsg
	cancel     context.CancelFunc
	width      int
	height     int
}

func newMigrateModel(logPath string, ch chan migrateMsg, cancel context.CancelFunc) *migrateModel {
	return &migrateModel{
		message: "Reading source library",
		errors:  make([]string, 0, maxErrorsInTUI),
		logPath: logPath,
		ch:      ch,
		cancel:  cancel,
	}
}

func (m *migrateModel) Init() tea.Cmd {
	return m.waitForMsg()
}

func (m *migrateModel) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.ch
	}
}

func (m *migrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	case migrateMsg:
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
			m.result = msg.Result
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

func (m *migrateModel) View() string {
	var b strings.Builder
	b.WriteString("  djmo migrate\n\n")
	if m.total > 0 {
		b.WriteString(fmt.Sprintf("  Progress: %d%% (%d/%d tracks)\n", m.percent, m.current, m.total))
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
		} else if m.result != nil {
			b.WriteString(fmt.Sprintf("\n  Migration complete: %d written, %d skipped\n",
				m.result.TracksWritten, m.result.TracksSkipped))
		}
	}
	b.WriteString("\n  q: quit  (Ctrl+C: stop)\n")
	return b.String()
}

// RunMigrateTUI runs the TUI for migrate. The caller must run the service in
// a goroutine and send a migrateMsg with Done, Result and Err set when
// finished. cancel is called when the user presses q or Ctrl+C mid-run; may
// be nil. Log errors can be sent to logErrCh (optional). Returns the result
// and error from the model.
func RunMigrateTUI(logPath string, progressCh chan migrateMsg, logErrCh <-chan string, cancel context.CancelFunc) (*library.MigrationResult, error) {
	model := newMigrateModel(logPath, progressCh, cancel)
	if logErrCh != nil {
		go func() {
			for s := range logErrCh {
				progressCh <- migrateMsg{LogErr: s}
			}
		}()
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	mm, ok := finalModel.(*migrateModel)
	if !ok {
		return nil, nil
	}
	return mm.result, mm.err
}
