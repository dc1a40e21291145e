package playground

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	colorFaint  = lipgloss.AdaptiveColor{Light: "#AFB8C1", Dark: "#484F58"}
)

// Styles holds the lipgloss styles used by the run TUI and the check
// command.
type Styles struct {
	Bold    lipgloss.Style
	Dim     lipgloss.Style
	Muted   lipgloss.Style
	Path    lipgloss.Style
	Running lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Info    lipgloss.Style
	Output  lipgloss.Style
	Result  lipgloss.Style

	SymbolPass   string
	SymbolFail   string
	SymbolCancel string
	SymbolOutput string
}

// DefaultStyles returns the default styles.
func DefaultStyles() *Styles {
	return &Styles{
		Bold:    lipgloss.NewStyle().Bold(true),
		Dim:     lipgloss.NewStyle().Foreground(colorFaint),
		Muted:   lipgloss.NewStyle().Foreground(colorGray),
		Path:    lipgloss.NewStyle().Foreground(colorGray).Underline(true),
		Running: lipgloss.NewStyle().Foreground(colorCyan),
		Pass:    lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		Fail:    lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		Warn:    lipgloss.NewStyle().Foreground(colorYellow),
		Info:    lipgloss.NewStyle().Foreground(colorCyan),
		Output:  lipgloss.NewStyle(),
		Result: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderLeft(true).
			BorderForeground(colorFaint).
			PaddingLeft(1),

		SymbolPass:   "✓",
		SymbolFail:   "✗",
		SymbolCancel: "⊘",
		SymbolOutput: "│",
	}
}

// SpinnerFrames returns the spinner animation frames.
func SpinnerFrames() []string {
	return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
}
