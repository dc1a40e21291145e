package playground

import (
	"context"
	"sync"
	"time"
)

// Handler receives run events during execution.
type Handler interface {
	// Event is called for each run event as it occurs.
	Event(ctx context.Context, event Event) error

	// Err is called for worker stderr lines and other non-run output.
	Err(text string) error
}

// Summarizer is implemented by handlers that render a final summary once
// the run is over.
type Summarizer interface {
	Summary(t *Transcript) error
}

// MultiHandler fans out events to multiple handlers.
type MultiHandler struct {
	handlers []Handler
}

// NewMultiHandler creates a handler that dispatches to multiple handlers.
// Nil handlers are skipped.
func NewMultiHandler(handlers ...Handler) *MultiHandler {
	m := &MultiHandler{}

	for _, h := range handlers {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}

	return m
}

// Event dispatches to all handlers, stopping on first error.
func (m *MultiHandler) Event(ctx context.Context, event Event) error {
	for _, h := range m.handlers {
		err := h.Event(ctx, event)
		if err != nil {
			return err
		}
	}

	return nil
}

// Err dispatches to all handlers.
func (m *MultiHandler) Err(text string) error {
	for _, h := range m.handlers {
		err := h.Err(text)
		if err != nil {
			return err
		}
	}

	return nil
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	OnEvent func(ctx context.Context, event Event) error
	OnErr   func(text string) error
}

// Event calls OnEvent.
func (f HandlerFuncs) Event(ctx context.Context, event Event) error {
	if f.OnEvent == nil {
		return nil
	}

	return f.OnEvent(ctx, event)
}

// Err calls OnErr.
func (f HandlerFuncs) Err(text string) error {
	if f.OnErr == nil {
		return nil
	}

	return f.OnErr(text)
}

// Transcript accumulates the events of one run.
type Transcript struct {
	mu sync.RWMutex

	RunID     string
	Source    string
	StartTime time.Time
	EndTime   time.Time

	Status Action
	Output []string
	Stderr []string
	Result *Result
	Error  error
}

// NewTranscript creates an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{StartTime: time.Now()}
}

// Event records the event.
func (t *Transcript) Event(_ context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Action {
	case ActionStarted:
		t.RunID = event.RunID
		t.Source = event.Source
		t.StartTime = event.Time
	case ActionOutput:
		t.Output = append(t.Output, event.Output)
	case ActionFinished, ActionCancelled, ActionFailed:
		t.Status = event.Action
		t.EndTime = event.Time
		t.Result = event.Result
		t.Error = event.Error
	}

	return nil
}

// Err records a stderr line.
func (t *Transcript) Err(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Stderr = append(t.Stderr, text)

	return nil
}

// Elapsed returns the run time so far.
func (t *Transcript) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}

	return t.EndTime.Sub(t.StartTime)
}

// Ok returns true if the run finished without failing. Cancelled runs are
// not failures.
func (t *Transcript) Ok() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.Status != ActionFailed
}
