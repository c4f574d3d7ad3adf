// Package statbridge is a typed client bridge between application code and a
// remote feature-flag / dynamic-configuration evaluation engine.
//
// The bridge owns three concerns: normalizing partial user descriptions into
// a schema-stable [UserContext] before they cross into the engine, converting
// every engine-side failure mode into the uniform [outcome.Outcome] result
// model, and exposing typed accessors over dynamically shaped evaluation
// payloads (see the payload package).
//
// The engine itself (rule matching, network sync, event batching) sits
// behind the [Engine] interface. The engine sub-package provides a reference
// implementation that evaluates rulesets locally and syncs them in the
// background:
//
//	eng := engine.New()
//	bridge := statbridge.New(eng)
//	if res := bridge.Initialize(ctx, sdkKey); !res.OK() {
//		// handle res.Err()
//	}
//	enabled := bridge.GateOrDefault(ctx, userJSON, "new_checkout")
package statbridge

import (
	"context"

	"github.com/matt-riley/statbridge/payload"
)

// Engine is the synchronous call surface of an evaluation engine. All
// methods are invoked by value; the bridge never retains a UserContext after
// the call returns.
//
// Implementations may block in Initialize (e.g. on a first ruleset fetch) but
// are expected to serve evaluation calls from an in-memory ruleset without
// network I/O. Implementations own whatever internal synchronization
// concurrent evaluation requires.
type Engine interface {
	// Initialize starts the engine with the given SDK key. Background
	// sync and event delivery begin as a side effect owned by the engine.
	Initialize(ctx context.Context, sdkKey string, opts Options) error

	// Shutdown flushes buffered events and stops background work. The
	// engine may be initialized again afterwards.
	Shutdown(ctx context.Context) error

	CheckGate(ctx context.Context, user UserContext, name string) (bool, error)
	GetConfig(ctx context.Context, user UserContext, name string) (payload.Payload, error)
	GetExperiment(ctx context.Context, user UserContext, name string) (payload.Payload, error)
	GetLayer(ctx context.Context, user UserContext, name string) (payload.Payload, error)

	// LogEvent records a custom event. Fire and forget: delivery is
	// best effort and batched by the engine.
	LogEvent(ctx context.Context, user UserContext, name string) error
}
