package playground

import "errors"

// Sentinel errors for the playground package.
var (
	// ErrWorkerExited is returned when the worker process goes away before
	// replying.
	ErrWorkerExited = errors.New("playground: worker exited")

	// ErrTimeout is returned when a run exceeds its configured timeout.
	ErrTimeout = errors.New("playground: run timed out")

	// ErrNoConnection is returned when a run has no connection string.
	ErrNoConnection = errors.New("playground: no connection")

	// ErrEmptyCode is returned when there is nothing to evaluate.
	ErrEmptyCode = errors.New("playground: no code to evaluate")
)
