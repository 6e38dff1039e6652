package shopsync

import "errors"

var (
	// ErrRemoteFetch wraps a failed remote-state lookup. Fatal for the diff
	// attempt; the import status stays unchanged so the stage can be retried.
	ErrRemoteFetch = errors.New("remote state fetch failed")

	// ErrTimeout is returned when the stage deadline elapses before the stage
	// committed its output. No partial state is persisted.
	ErrTimeout = errors.New("sync deadline exceeded")

	// ErrImportNotReady is returned when a stage is triggered out of order.
	ErrImportNotReady = errors.New("import is not in a status that allows this stage")
)
