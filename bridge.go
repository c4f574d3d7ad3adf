package statbridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matt-riley/statbridge/outcome"
	"github.com/matt-riley/statbridge/payload"
)

// Bridge is the single synchronous call surface to an evaluation engine. It
// guards the engine behind an initialized/uninitialized lifecycle, converts
// every engine-side error or panic into a failed [outcome.Outcome], and never
// lets a panic escape to the caller.
//
// A Bridge is safe for concurrent use. Initialize and Shutdown are mutually
// exclusive with each other; evaluation calls observe the lifecycle through
// an atomic flag and run concurrently without further locking. The bridge
// adds no cancellation of its own: the ctx handed to an operation is passed
// through to the engine.
type Bridge struct {
	engine Engine

	// lifecycle serializes Initialize and Shutdown; initialized is the
	// flag every evaluation call reads.
	lifecycle   sync.Mutex
	initialized atomic.Bool
}

// New returns an uninitialized bridge over the given engine.
func New(engine Engine) *Bridge {
	return &Bridge{engine: engine}
}

// IsInitialized reports whether the bridge is between a successful
// Initialize and a Shutdown. It never fails.
func (b *Bridge) IsInitialized() bool {
	return b.initialized.Load()
}

// Initialize starts the engine with default options. It fails with
// [ErrAlreadyInitialized] when called on a running bridge. Initialize may be
// slow: the engine is free to block on a first ruleset fetch.
func (b *Bridge) Initialize(ctx context.Context, sdkKey string) outcome.Outcome[outcome.Unit] {
	return b.InitializeWithOptions(ctx, sdkKey, Options{})
}

// InitializeWithOptions starts the engine with the given options, passed
// through verbatim (an empty APIBase selects the engine default). On engine
// failure the bridge stays uninitialized.
func (b *Bridge) InitializeWithOptions(ctx context.Context, sdkKey string, opts Options) outcome.Outcome[outcome.Unit] {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.initialized.Load() {
		return outcome.Failure[outcome.Unit](ErrAlreadyInitialized)
	}
	if err := opts.Validate(); err != nil {
		return outcome.Failure[outcome.Unit](fmt.Errorf("invalid options: %w", err))
	}
	_, err := protect(func() (outcome.Unit, error) {
		return outcome.Unit{}, b.engine.Initialize(ctx, sdkKey, opts)
	})
	if err != nil {
		return outcome.Failure[outcome.Unit](fmt.Errorf("initialize engine: %w", err))
	}
	b.initialized.Store(true)
	return outcome.OK()
}

// Shutdown flushes and stops the engine. It fails with [ErrNotInitialized]
// on a bridge that is not running. Shutdown does not wait for in-flight
// evaluation calls; they fail softly once the flag clears.
func (b *Bridge) Shutdown(ctx context.Context) outcome.Outcome[outcome.Unit] {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if !b.initialized.Load() {
		return outcome.Failure[outcome.Unit](ErrNotInitialized)
	}
	b.initialized.Store(false)
	_, err := protect(func() (outcome.Unit, error) {
		return outcome.Unit{}, b.engine.Shutdown(ctx)
	})
	if err != nil {
		return outcome.Failure[outcome.Unit](fmt.Errorf("shutdown engine: %w", err))
	}
	return outcome.OK()
}

// CheckGate evaluates a boolean gate for the user. The engine emits an
// exposure record as a side effect; the bridge neither suppresses nor
// deduplicates it.
func (b *Bridge) CheckGate(ctx context.Context, user UserContext, name string) outcome.Outcome[bool] {
	return evaluate(b, func() (bool, error) {
		return b.engine.CheckGate(ctx, user, name)
	})
}

// GetConfig fetches a dynamic config payload for the user.
func (b *Bridge) GetConfig(ctx context.Context, user UserContext, name string) outcome.Outcome[payload.Payload] {
	return evaluate(b, func() (payload.Payload, error) {
		return b.engine.GetConfig(ctx, user, name)
	})
}

// GetExperiment fetches an experiment payload for the user.
func (b *Bridge) GetExperiment(ctx context.Context, user UserContext, name string) outcome.Outcome[payload.Payload] {
	return evaluate(b, func() (payload.Payload, error) {
		return b.engine.GetExperiment(ctx, user, name)
	})
}

// GetLayer fetches a layer payload for the user.
func (b *Bridge) GetLayer(ctx context.Context, user UserContext, name string) outcome.Outcome[payload.Payload] {
	return evaluate(b, func() (payload.Payload, error) {
		return b.engine.GetLayer(ctx, user, name)
	})
}

// LogEvent records a custom event for the user.
func (b *Bridge) LogEvent(ctx context.Context, user UserContext, name string) outcome.Outcome[outcome.Unit] {
	return evaluate(b, func() (outcome.Unit, error) {
		return outcome.Unit{}, b.engine.LogEvent(ctx, user, name)
	})
}

// evaluate runs an engine call behind the lifecycle flag. An uninitialized
// bridge fails without touching the engine; engine errors and panics surface
// as failures wrapping [ErrEngineEvaluation].
func evaluate[T any](b *Bridge, call func() (T, error)) outcome.Outcome[T] {
	if !b.initialized.Load() {
		return outcome.Failure[T](ErrNotInitialized)
	}
	value, err := protect(call)
	if err != nil {
		return outcome.Failure[T](fmt.Errorf("%w: %v", ErrEngineEvaluation, err))
	}
	return outcome.Success(value)
}

// protect converts a panic from the engine into an ordinary error so nothing
// crosses the bridge boundary unchecked.
func protect[T any](call func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return call()
}
