package mongols

import "errors"

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .mongols.yaml is found.
	ErrConfigNotFound = errors.New("mongols: no .mongols.yaml found")

	// ErrUnknownDataSource is returned when an unregistered data source is requested.
	ErrUnknownDataSource = errors.New("mongols: unknown data source")

	// ErrNotConnected is returned by top-level entry points that need an
	// active connection when there is none.
	ErrNotConnected = errors.New("mongols: not connected")
)
