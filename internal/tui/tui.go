// Package tui provides a Bubble Tea terminal user interface for ckandump.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ckandump/internal/app"
	"ckandump/internal/config"
	cprogress "ckandump/internal/progress"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateCrawling
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   cprogress.Level
}

// eventBuffer collects tracker events from crawl goroutines until the
// UI drains them on its next tick.
type eventBuffer struct {
	mu     sync.Mutex
	events []cprogress.Event
}

func (b *eventBuffer) add(event cprogress.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *eventBuffer) drain() []cprogress.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	cfg       config.Config
	logs      []LogEntry
	groups    []string
	err       error

	// Crawl context
	ctx    context.Context
	cancel context.CancelFunc

	// Pipeline reference
	pipeline *app.Pipeline
	buffer   *eventBuffer

	// Crawl progress
	snapshot cprogress.Snapshot

	// Options
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model over a validated configuration.
func NewModel(cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "group ids, comma-separated (blank: whole catalog)"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		cfg:       cfg,
		logs:      make([]LogEntry, 0),
		verbose:   cfg.Verbose,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// CrawlStartedMsg is sent once the pipeline is built and the crawl
	// is running.
	CrawlStartedMsg struct {
		Pipeline *app.Pipeline
		Err      error
	}

	// CrawlDoneMsg is sent when the crawl completes.
	CrawlDoneMsg struct {
		Snapshot cprogress.Snapshot
		Branches int
		Err      error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateCrawling {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput {
				m.state = StateCrawling
				m.groups = splitGroups(m.textInput.Value())
				return m, tea.Batch(m.startCrawl(), m.spinner.Tick, m.tickProgress())
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.groups = nil
				m.err = nil
				m.snapshot = cprogress.Snapshot{}
				m.pipeline = nil
				m.buffer = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case CrawlStartedMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.pipeline = msg.Pipeline
			cmds = append(cmds, m.runCrawl())
		}

	case CrawlDoneMsg:
		m.snapshot = msg.Snapshot
		m.drainEvents()
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else if msg.Branches > 0 {
			m.state = StateError
			m.err = fmt.Errorf("%d branches failed", msg.Branches)
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.pipeline != nil && m.state == StateCrawling {
			m.snapshot = m.pipeline.Tracker.Snapshot()
			m.drainEvents()

			progressCmd := m.progress.SetPercent(m.percent())
			cmds = append(cmds, progressCmd, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// drainEvents moves buffered tracker events into the rolling log.
func (m *Model) drainEvents() {
	if m.buffer == nil {
		return
	}
	for _, event := range m.buffer.drain() {
		if event.Level == cprogress.LevelVerbose && !m.verbose {
			continue
		}
		m.logs = append(m.logs, LogEntry{Message: event.Message, Level: event.Level})
	}
	// Keep only last 10 logs
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
}

func (m Model) percent() float64 {
	if m.snapshot.TotalBytes > 0 {
		return float64(m.snapshot.Bytes) / float64(m.snapshot.TotalBytes)
	}
	return 0
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startCrawl builds the pipeline for this run.
func (m *Model) startCrawl() tea.Cmd {
	buffer := &eventBuffer{}
	m.buffer = buffer

	cfg := m.cfg
	cfg.Verbose = m.verbose

	return func() tea.Msg {
		pipeline, err := app.New(cfg, quietLogger(cfg), buffer.add)
		if err != nil {
			return CrawlStartedMsg{Err: err}
		}
		return CrawlStartedMsg{Pipeline: pipeline}
	}
}

// quietLogger keeps slog output away from the terminal the TUI owns:
// JSON to the configured log file, or discarded entirely.
func quietLogger(cfg config.Config) *slog.Logger {
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
}

// runCrawl runs the dump in the background and reports the outcome.
func (m *Model) runCrawl() tea.Cmd {
	pipeline := m.pipeline
	groups := m.groups
	ctx := m.ctx

	return func() tea.Msg {
		var err error
		if len(groups) == 0 {
			err = pipeline.Orchestrator.DumpAll(ctx)
		} else {
			err = pipeline.Orchestrator.DumpGroups(ctx, groups)
		}

		msg := CrawlDoneMsg{
			Snapshot: pipeline.Tracker.Snapshot(),
			Branches: len(pipeline.Orchestrator.Report().Errors()),
			Err:      err,
		}
		pipeline.Close()
		return msg
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("CKAN Dump"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download datasets from a CKAN catalog"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateCrawling:
		b.WriteString(m.viewCrawling())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter group ids:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Catalog: %s", m.cfg.Address)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output:  %s", m.cfg.OutputDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewCrawling() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if len(m.groups) > 0 {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Dumping %s...", strings.Join(m.groups, ", "))))
	} else {
		b.WriteString(subtitleStyle.Render("Dumping the whole catalog..."))
	}
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Packages: %d | Files: %d downloaded, %d skipped, %d failed | %.2f MB",
		m.snapshot.Packages,
		m.snapshot.Downloaded,
		m.snapshot.Skipped,
		m.snapshot.Failed,
		float64(m.snapshot.Bytes)/1024/1024,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	box := boxStyle.Render(fmt.Sprintf(
		"Dump complete\n\n"+
			"Packages: %d\n"+
			"Downloaded: %d\n"+
			"Skipped: %d\n"+
			"Failed: %d\n"+
			"Size: %.2f MB",
		m.snapshot.Packages,
		m.snapshot.Downloaded,
		m.snapshot.Skipped,
		m.snapshot.Failed,
		float64(m.snapshot.Bytes)/1024/1024,
	))
	b.WriteString(box)

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case cprogress.LevelError:
			style = errorStyle
			prefix = "✗"
		case cprogress.LevelWarning:
			style = warningStyle
			prefix = "!"
		case cprogress.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case cprogress.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • v: verbose • esc: quit"
	case StateCrawling:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new dump • q: quit"
	}
	return ""
}

func splitGroups(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Run starts the TUI application.
func Run(cfg config.Config) error {
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
