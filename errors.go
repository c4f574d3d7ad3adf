package statbridge

import (
	"errors"

	"github.com/matt-riley/statbridge/payload"
)

// Sentinel errors returned (possibly wrapped) by bridge operations. Callers
// classify failures with [errors.Is].
var (
	// ErrNotInitialized is returned by every evaluation and logging
	// operation invoked before a successful Initialize, and by Shutdown
	// when the bridge is already stopped.
	ErrNotInitialized = errors.New("not initialized")

	// ErrAlreadyInitialized is returned by Initialize and
	// InitializeWithOptions while the bridge is running.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrInvalidUserInput indicates a user document that is not a JSON
	// object or carries a field of the wrong type.
	ErrInvalidUserInput = errors.New("invalid user input")

	// ErrEngineEvaluation wraps any error or panic raised by the engine
	// during a gate, config, experiment, layer or log call.
	ErrEngineEvaluation = errors.New("engine evaluation failed")

	// ErrEncoding indicates the caller-side user serialization failed.
	ErrEncoding = errors.New("encoding failed")

	// ErrDecodeSchema is the strict payload decode failure; it aliases
	// [payload.ErrSchemaMismatch] so callers can match either.
	ErrDecodeSchema = payload.ErrSchemaMismatch
)
