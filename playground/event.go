// Package playground runs playground scripts in a separate worker process.
//
// The Bridge (parent side) spawns a fresh worker for every run and talks
// JSON-RPC 2.0 to it over the child's stdio. The Worker (child side)
// evaluates through an Evaluator and streams console output back while
// the run is in flight. Run lifecycle events fan out through Handler.
package playground

import "time"

// Action represents the type of run event.
type Action string

// Action constants for run events.
const (
	ActionStarted   Action = "started"
	ActionOutput    Action = "output"
	ActionFinished  Action = "finished"
	ActionCancelled Action = "cancelled"
	ActionFailed    Action = "failed"
)

// IsTerminal returns true if this action ends a run.
func (a Action) IsTerminal() bool {
	return a == ActionFinished || a == ActionCancelled || a == ActionFailed
}

// Event represents a single run event emitted during execution.
type Event struct {
	Time    time.Time     // When the event occurred
	Action  Action        // What happened
	RunID   string        // Unique per Evaluate call
	Source  string        // Playground name or path, may be empty
	Elapsed time.Duration // Time taken (for terminal events)
	Output  string        // Console fragment (for ActionOutput)
	Result  *Result       // Evaluated value (for ActionFinished)
	Error   error         // Failure (for ActionFailed)
}
