package statbridge

import (
	"errors"
	"time"
)

// Options configures the engine at initialization time. The zero value is
// valid: every zero field means "use the engine default". Options are passed
// to the engine verbatim and are immutable after Initialize.
type Options struct {
	// APIBase overrides the engine's evaluation service endpoint. Empty
	// means the engine default, not an empty endpoint.
	APIBase string

	// LocalMode disables network sync and event delivery; the engine
	// evaluates only against bootstrapped rulesets.
	LocalMode bool

	// RulesetSyncInterval is the background ruleset refresh period.
	RulesetSyncInterval time.Duration

	// LoggingInterval is the event buffer flush period.
	LoggingInterval time.Duration

	// LoggingMaxBufferedEvents caps the event buffer; further events are
	// dropped until the next flush.
	LoggingMaxBufferedEvents int
}

// Validate rejects options no engine could honor. Zero values pass: they
// select engine defaults.
func (o Options) Validate() error {
	if o.RulesetSyncInterval < 0 {
		return errors.New("ruleset sync interval must not be negative")
	}
	if o.LoggingInterval < 0 {
		return errors.New("logging interval must not be negative")
	}
	if o.LoggingMaxBufferedEvents < 0 {
		return errors.New("logging max buffered events must not be negative")
	}
	return nil
}
