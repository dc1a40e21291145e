package playground

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && isatty.IsTerminal(f.Fd())
}

// TUIFormatter implements Formatter with an animated terminal UI.
type TUIFormatter struct {
	w       io.Writer
	program *tea.Program
	model   *tuiModel
	exited  chan struct{}

	mu       sync.Mutex
	finished bool
}

// NewTUIFormatter creates a TUI formatter writing to w.
func NewTUIFormatter(w io.Writer) *TUIFormatter {
	model := newTUIModel()

	opts := []tea.ProgramOption{
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
		tea.WithAltScreen(),
	}

	if !IsTerminal(w) {
		opts = append(opts, tea.WithInput(nil))
	}

	return &TUIFormatter{
		w:       w,
		program: tea.NewProgram(model, opts...),
		model:   model,
		exited:  make(chan struct{}),
	}
}

// OnInterrupt registers f to be called when the user presses Ctrl-C in
// the TUI. The terminal is in raw mode while the TUI runs, so Ctrl-C
// arrives as a key press instead of SIGINT. Call it before Start.
func (t *TUIFormatter) OnInterrupt(f func()) {
	t.model.onInterrupt = f
}

// Start begins the TUI event loop. Call this before the run starts.
func (t *TUIFormatter) Start() error {
	go func() {
		defer close(t.exited)

		_, _ = t.program.Run()
	}()

	return nil
}

// Format sends an event to the TUI.
func (t *TUIFormatter) Format(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return nil
	}

	t.program.Send(runEventMsg(event))

	return nil
}

// Summary stops the TUI and prints the final static output.
func (t *TUIFormatter) Summary(*Transcript) error {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()

	t.program.Send(doneMsg{})
	t.program.Quit()
	<-t.exited

	_, err := fmt.Fprintln(t.w, t.model.FinalView())

	return err
}

// TUIHandler wraps TUIFormatter to implement Handler.
type TUIHandler struct {
	*TUIFormatter

	stderr io.Writer
}

// NewTUIHandler creates a handler that renders to w.
func NewTUIHandler(w, stderr io.Writer) *TUIHandler {
	return &TUIHandler{TUIFormatter: NewTUIFormatter(w), stderr: stderr}
}

// Event sends an event to the TUI.
func (h *TUIHandler) Event(_ context.Context, event Event) error {
	return h.Format(event)
}

// Err writes to stderr.
func (h *TUIHandler) Err(text string) error {
	_, err := h.stderr.Write([]byte(text + "\n"))

	return err
}

// -----------------------------------------------------------------------------
// Bubbletea Model
// -----------------------------------------------------------------------------

type tuiModel struct {
	styles  *Styles
	spinner spinner.Model

	width  int
	height int

	source string
	runID  string
	output []string
	status Action
	result *Result
	err    error

	startTime time.Time
	endTime   time.Time
	isDone    bool

	onInterrupt func()
}

// Messages
type (
	tickMsg     time.Time
	runEventMsg Event
	doneMsg     struct{}
)

func newTUIModel() *tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerFrames(),
		FPS:    time.Second / 10,
	}
	s.Style = DefaultStyles().Running

	return &tuiModel{
		styles:    DefaultStyles(),
		spinner:   s,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *tuiModel) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.onInterrupt != nil && !m.isDone {
			m.onInterrupt()
		}

	case tickMsg:
		if !m.isDone {
			cmds = append(cmds, m.tick())
		}

	case spinner.TickMsg:
		if !m.isDone {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case runEventMsg:
		m.handleEvent(Event(msg))

	case doneMsg:
		m.isDone = true
		if m.endTime.IsZero() {
			m.endTime = time.Now()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *tuiModel) handleEvent(event Event) {
	switch event.Action {
	case ActionStarted:
		m.source = event.Source
		m.runID = event.RunID
		m.startTime = event.Time
	case ActionOutput:
		m.output = append(m.output, event.Output)
	case ActionFinished, ActionCancelled, ActionFailed:
		m.status = event.Action
		m.result = event.Result
		m.err = event.Error
		m.endTime = event.Time
	}
}

// clearEOL is the ANSI escape sequence to clear from cursor to end of line.
const clearEOL = "\033[K"

func (m *tuiModel) View() string {
	lines := []string{m.renderHeader(), m.renderSource(), ""}

	visible := max(m.height-len(lines)-2, 3)
	output := m.output

	if len(output) > visible {
		hidden := len(output) - visible
		lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("  … %d earlier lines", hidden)))
		output = output[hidden:]
	}

	lines = append(lines, m.renderOutput(output)...)

	for i := range lines {
		lines[i] += clearEOL
	}

	return strings.Join(lines, "\n") + "\n"
}

// FinalView renders the complete output for printing after the TUI exits.
func (m *tuiModel) FinalView() string {
	lines := []string{m.renderHeader(), m.renderSource()}

	if len(m.output) > 0 {
		lines = append(lines, "")
		lines = append(lines, m.renderOutput(m.output)...)
	}

	if m.result != nil {
		lines = append(lines, "", m.styles.Result.Render(m.result.String()))
	}

	if m.err != nil {
		lines = append(lines, "", m.styles.Fail.Render(m.err.Error()))
	}

	return strings.Join(lines, "\n")
}

func (m *tuiModel) renderHeader() string {
	logo := m.styles.Bold.Render("mongols")
	subtitle := m.styles.Dim.Render(" run")

	var status string

	switch m.status {
	case ActionFinished:
		status = m.styles.Pass.Render(m.styles.SymbolPass + " done")
	case ActionFailed:
		status = m.styles.Fail.Render(m.styles.SymbolFail + " failed")
	case ActionCancelled:
		status = m.styles.Warn.Render(m.styles.SymbolCancel + " cancelled")
	default:
		status = m.spinner.View() + " " + m.styles.Running.Render("running")
	}

	elapsed := time.Since(m.startTime)
	if !m.endTime.IsZero() {
		elapsed = m.endTime.Sub(m.startTime)
	}

	return fmt.Sprintf("%s%s  %s  %s", logo, subtitle, status,
		m.styles.Dim.Render(fmt.Sprintf("[%s]", formatDuration(elapsed))))
}

func (m *tuiModel) renderSource() string {
	return m.styles.Path.Render(sourceName(m.source))
}

func (m *tuiModel) renderOutput(output []string) []string {
	lines := make([]string, 0, len(output))
	bar := m.styles.Dim.Render(m.styles.SymbolOutput + " ")

	for _, line := range output {
		lines = append(lines, bar+m.styles.Output.Render(line))
	}

	return lines
}
