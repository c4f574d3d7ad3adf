package engine

import (
	"sync"
	"time"

	"github.com/matt-riley/statbridge"
)

// event kinds recorded by the engine. Exposures are emitted as a side effect
// of every gate and config evaluation.
const (
	eventKindCustom         = "custom"
	eventKindGateExposure   = "gate_exposure"
	eventKindConfigExposure = "config_exposure"
)

type event struct {
	ID       string                 `json:"id"`
	Kind     string                 `json:"kind"`
	Name     string                 `json:"name"`
	User     statbridge.UserContext `json:"user"`
	Time     time.Time              `json:"time"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

// eventBuffer accumulates events between flushes up to a hard cap. Events
// past the cap are dropped, never blocked on.
type eventBuffer struct {
	mu     sync.Mutex
	events []event
	max    int
}

func newEventBuffer(max int) *eventBuffer {
	return &eventBuffer{max: max}
}

// add appends an event and reports whether it was accepted.
func (b *eventBuffer) add(ev event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.max {
		return false
	}
	b.events = append(b.events, ev)
	return true
}

// drain removes and returns all buffered events.
func (b *eventBuffer) drain() []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.events
	b.events = nil
	return batch
}

func (b *eventBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// scrubUser strips private attributes before an event leaves the process.
func scrubUser(user statbridge.UserContext) statbridge.UserContext {
	user.PrivateAttributes = map[string]any{}
	return user
}
