package statbridge

import (
	"context"
	"fmt"

	"github.com/matt-riley/statbridge/outcome"
	"github.com/matt-riley/statbridge/payload"
)

// The convenience surface accepts a raw user document (a partial JSON
// object, or nil for the default user), normalizes it, and offers three call
// shapes per evaluation kind:
//
//   - error-returning, for callers that propagate failures;
//   - OrDefault, which swallows the failure and returns the zero value,
//     for call sites that cannot propagate errors;
//   - Resolved, which keeps the safe default while preserving the failure
//     reason for diagnostics.

// Gate checks a boolean gate for the given user document.
func (b *Bridge) Gate(ctx context.Context, userJSON []byte, name string) (bool, error) {
	user, err := NormalizeUser(userJSON)
	if err != nil {
		return false, err
	}
	return b.CheckGate(ctx, user, name).Value()
}

// GateOrDefault is Gate with the failure swallowed; it returns false when
// the gate cannot be evaluated.
func (b *Bridge) GateOrDefault(ctx context.Context, userJSON []byte, name string) bool {
	value, _ := b.Gate(ctx, userJSON, name)
	return value
}

// GateResolved is Gate with a default-safe result that records whether the
// engine resolved the value and why it did not.
func (b *Bridge) GateResolved(ctx context.Context, userJSON []byte, name string) outcome.Resolved[bool] {
	user, err := NormalizeUser(userJSON)
	if err != nil {
		return outcome.Failure[bool](err).ToResolved(false)
	}
	return b.CheckGate(ctx, user, name).ToResolved(false)
}

// Config fetches a dynamic config for the given user document.
func (b *Bridge) Config(ctx context.Context, userJSON []byte, name string) (payload.Payload, error) {
	return b.fetch(ctx, userJSON, name, b.GetConfig)
}

// ConfigOrDefault is Config with the failure swallowed; it returns an empty
// payload when the config cannot be fetched.
func (b *Bridge) ConfigOrDefault(ctx context.Context, userJSON []byte, name string) payload.Payload {
	p, err := b.Config(ctx, userJSON, name)
	if err != nil {
		return payload.Empty()
	}
	return p
}

// ConfigResolved is Config with a default-safe result.
func (b *Bridge) ConfigResolved(ctx context.Context, userJSON []byte, name string) outcome.Resolved[payload.Payload] {
	return b.fetchResolved(ctx, userJSON, name, b.GetConfig)
}

// Experiment fetches an experiment for the given user document.
func (b *Bridge) Experiment(ctx context.Context, userJSON []byte, name string) (payload.Payload, error) {
	return b.fetch(ctx, userJSON, name, b.GetExperiment)
}

// ExperimentOrDefault is Experiment with the failure swallowed.
func (b *Bridge) ExperimentOrDefault(ctx context.Context, userJSON []byte, name string) payload.Payload {
	p, err := b.Experiment(ctx, userJSON, name)
	if err != nil {
		return payload.Empty()
	}
	return p
}

// ExperimentResolved is Experiment with a default-safe result.
func (b *Bridge) ExperimentResolved(ctx context.Context, userJSON []byte, name string) outcome.Resolved[payload.Payload] {
	return b.fetchResolved(ctx, userJSON, name, b.GetExperiment)
}

// Layer fetches a layer for the given user document.
func (b *Bridge) Layer(ctx context.Context, userJSON []byte, name string) (payload.Payload, error) {
	return b.fetch(ctx, userJSON, name, b.GetLayer)
}

// LayerOrDefault is Layer with the failure swallowed.
func (b *Bridge) LayerOrDefault(ctx context.Context, userJSON []byte, name string) payload.Payload {
	p, err := b.Layer(ctx, userJSON, name)
	if err != nil {
		return payload.Empty()
	}
	return p
}

// LayerResolved is Layer with a default-safe result.
func (b *Bridge) LayerResolved(ctx context.Context, userJSON []byte, name string) outcome.Resolved[payload.Payload] {
	return b.fetchResolved(ctx, userJSON, name, b.GetLayer)
}

// Event records a custom event for the given user document.
func (b *Bridge) Event(ctx context.Context, userJSON []byte, name string) error {
	user, err := NormalizeUser(userJSON)
	if err != nil {
		return err
	}
	return b.LogEvent(ctx, user, name).Err()
}

// TryEvent is Event with the failure swallowed. There is no resolved variant
// for events: there is no value to report.
func (b *Bridge) TryEvent(ctx context.Context, userJSON []byte, name string) {
	_ = b.Event(ctx, userJSON, name)
}

type fetchOp func(context.Context, UserContext, string) outcome.Outcome[payload.Payload]

func (b *Bridge) fetch(ctx context.Context, userJSON []byte, name string, op fetchOp) (payload.Payload, error) {
	user, err := NormalizeUser(userJSON)
	if err != nil {
		return payload.Empty(), err
	}
	p, err := op(ctx, user, name).Value()
	if err != nil {
		return payload.Empty(), fmt.Errorf("fetch %q: %w", name, err)
	}
	return p, nil
}

func (b *Bridge) fetchResolved(ctx context.Context, userJSON []byte, name string, op fetchOp) outcome.Resolved[payload.Payload] {
	user, err := NormalizeUser(userJSON)
	if err != nil {
		return outcome.Failure[payload.Payload](err).ToResolved(payload.Empty())
	}
	return op(ctx, user, name).ToResolved(payload.Empty())
}
