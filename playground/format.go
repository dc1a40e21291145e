package playground

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/encoding/json"
)

// Formatter renders run events and the final transcript.
type Formatter interface {
	Format(event Event) error
	Summary(t *Transcript) error
}

// FormatHandler is a Handler that delegates to a Formatter.
type FormatHandler struct {
	formatter Formatter
	stderr    io.Writer
}

// NewFormatHandler creates a handler that formats events.
func NewFormatHandler(f Formatter, stderr io.Writer) *FormatHandler {
	return &FormatHandler{formatter: f, stderr: stderr}
}

// Event formats the event.
func (h *FormatHandler) Event(_ context.Context, event Event) error {
	return h.formatter.Format(event)
}

// Err writes to stderr.
func (h *FormatHandler) Err(text string) error {
	_, err := h.stderr.Write([]byte(text + "\n"))

	return err
}

// Summary renders the final summary.
func (h *FormatHandler) Summary(t *Transcript) error {
	return h.formatter.Summary(t)
}

// -----------------------------------------------------------------------------
// Text Formatter
// -----------------------------------------------------------------------------

// TextFormatter prints console output as it arrives, then the result.
type TextFormatter struct {
	w io.Writer
}

// NewTextFormatter creates a text formatter.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{w: w}
}

// Format prints each event as it occurs.
func (f *TextFormatter) Format(event Event) error {
	switch event.Action {
	case ActionStarted:
		_, _ = fmt.Fprintf(f.w, "=== RUN   %s\n", sourceName(event.Source))
	case ActionOutput:
		_, _ = fmt.Fprintln(f.w, event.Output)
	case ActionFinished:
		if event.Result != nil {
			_, _ = fmt.Fprintln(f.w, event.Result.String())
		}

		_, _ = fmt.Fprintf(f.w, "--- DONE: %s (%s)\n", sourceName(event.Source), formatDuration(event.Elapsed))
	case ActionCancelled:
		_, _ = fmt.Fprintf(f.w, "--- CANCELLED: %s (%s)\n", sourceName(event.Source), formatDuration(event.Elapsed))
	case ActionFailed:
		_, _ = fmt.Fprintf(f.w, "--- FAIL: %s (%s)\n", sourceName(event.Source), formatDuration(event.Elapsed))
		_, _ = fmt.Fprintf(f.w, "    %v\n", event.Error)
	}

	return nil
}

// Summary is a no-op; Format already printed the outcome.
func (f *TextFormatter) Summary(*Transcript) error {
	return nil
}

// -----------------------------------------------------------------------------
// JSON Formatter
// -----------------------------------------------------------------------------

// JSONFormatter outputs newline-delimited JSON events.
type JSONFormatter struct {
	enc *json.Encoder
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w)}
}

type jsonEvent struct {
	Time    string  `json:"time"`
	Action  string  `json:"action"`
	Run     string  `json:"run"`
	Source  string  `json:"source,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`
	Output  string  `json:"output,omitempty"`
	Result  *Result `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Format outputs a JSON event.
func (j *JSONFormatter) Format(event Event) error {
	je := jsonEvent{
		Time:   event.Time.Format(time.RFC3339Nano),
		Action: string(event.Action),
		Run:    event.RunID,
		Source: event.Source,
		Output: event.Output,
		Result: event.Result,
	}

	if event.Action.IsTerminal() {
		je.Elapsed = event.Elapsed.Seconds()
	}

	if event.Error != nil {
		je.Error = event.Error.Error()
	}

	return j.enc.Encode(je)
}

type jsonSummary struct {
	Action  string  `json:"action"`
	Run     string  `json:"run"`
	Status  string  `json:"status"`
	Output  int     `json:"output"`
	Elapsed float64 `json:"elapsed"`
	Ok      bool    `json:"ok"`
}

// Summary outputs the final JSON summary.
func (j *JSONFormatter) Summary(t *Transcript) error {
	return j.enc.Encode(jsonSummary{
		Action:  "summary",
		Run:     t.RunID,
		Status:  string(t.Status),
		Output:  len(t.Output),
		Elapsed: t.Elapsed().Seconds(),
		Ok:      t.Ok(),
	})
}

// NewFormatter creates a formatter by name: "json" or "text".
func NewFormatter(name string, w io.Writer) Formatter {
	if name == "json" {
		return NewJSONFormatter(w)
	}

	return NewTextFormatter(w)
}

func sourceName(source string) string {
	if source == "" {
		return "playground"
	}

	return source
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
