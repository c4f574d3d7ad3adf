// Package engine is a reference implementation of the statbridge evaluation
// engine. It syncs rulesets from a remote configuration service (or a local
// bootstrap file), evaluates gates, configs, experiments and layers against
// an in-memory ruleset, and batches exposure and custom events for periodic
// delivery.
//
// Evaluation calls never perform network I/O: they read the ruleset last
// published by the background sync loop. Initialize may block on the first
// ruleset fetch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matt-riley/statbridge"
	"github.com/matt-riley/statbridge/internal/logging"
	"github.com/matt-riley/statbridge/payload"
)

const (
	defaultSyncInterval      = 10 * time.Second
	defaultLoggingInterval   = time.Minute
	defaultMaxBufferedEvents = 500
	finalFlushTimeout        = 5 * time.Second
)

var errNotRunning = errors.New("engine not running")

// Engine implements [statbridge.Engine] with local rule evaluation over a
// background-synced ruleset.
type Engine struct {
	log           *slog.Logger
	metrics       *metricsSet
	httpClient    *http.Client
	bootstrapPath string

	// mu guards the ruleset; evaluation calls take the read side only.
	mu      sync.RWMutex
	ruleset Ruleset

	// run is the current epoch's state, nil while stopped. Evaluation
	// calls load it once and work off the snapshot, so they never race a
	// concurrent Shutdown or re-Initialize.
	run atomic.Pointer[runState]

	// runMu serializes Initialize and Shutdown.
	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// runState is one Initialize-to-Shutdown epoch. It is immutable once
// published; the buffers it points to carry their own locks.
type runState struct {
	opts      statbridge.Options
	events    *eventBuffer
	transport *transport
	sessionID string
}

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to [slog.Default] tagged
// with a component attribute.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithHTTPClient overrides the HTTP client used for ruleset downloads and
// event delivery.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithBootstrapFile points the engine at a local ruleset JSON file. In local
// mode the file is loaded at Initialize and reloaded live whenever it
// changes on disk.
func WithBootstrapFile(path string) Option {
	return func(e *Engine) { e.bootstrapPath = path }
}

// New constructs a stopped engine. Call Initialize (normally through
// statbridge.Bridge) to start it.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:     logging.ForComponent(nil, "statbridge.engine"),
		metrics: newMetrics(),
		ruleset: emptyRuleset(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize starts the engine. In local mode it loads the bootstrap file
// (when configured) and starts no network activity; otherwise it performs a
// blocking first ruleset fetch and then starts the sync and flush loops.
func (e *Engine) Initialize(ctx context.Context, sdkKey string, opts statbridge.Options) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.run.Load() != nil {
		return errors.New("engine already running")
	}
	if sdkKey == "" && !opts.LocalMode {
		return errors.New("sdk key required")
	}
	applyDefaults(&opts)

	st := &runState{
		opts:      opts,
		events:    newEventBuffer(opts.LoggingMaxBufferedEvents),
		sessionID: uuid.NewString(),
	}

	runCtx, cancel := context.WithCancel(context.Background())

	if opts.LocalMode {
		rs := emptyRuleset()
		if e.bootstrapPath != "" {
			loaded, err := loadRulesetFile(e.bootstrapPath)
			if err != nil {
				cancel()
				return fmt.Errorf("load bootstrap ruleset: %w", err)
			}
			rs = loaded
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.watchBootstrap(runCtx, e.bootstrapPath)
			}()
		}
		e.setRuleset(rs)
		e.cancel = cancel
		e.run.Store(st)
		e.log.Info("engine initialized", "mode", "local", "bootstrap", e.bootstrapPath)
		return nil
	}

	st.transport = newTransport(opts.APIBase, sdkKey, e.httpClient, e.log)
	rs, err := st.transport.fetchRuleset(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("initial ruleset fetch: %w", err)
	}
	e.setRuleset(rs)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.runSync(runCtx, st)
	}()
	go func() {
		defer e.wg.Done()
		e.runFlush(runCtx, st)
	}()

	e.cancel = cancel
	e.run.Store(st)
	e.log.Info("engine initialized", "ruleset_version", rs.Version,
		"sync_interval", opts.RulesetSyncInterval, "logging_interval", opts.LoggingInterval)
	return nil
}

// Shutdown stops background work and flushes any remaining events. The
// engine can be initialized again afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	st := e.run.Load()
	if st == nil {
		return errNotRunning
	}

	// Retire the epoch first: evaluation calls that have not yet loaded
	// it fail softly while background work drains.
	e.run.Store(nil)
	e.cancel()
	e.wg.Wait()

	if !st.opts.LocalMode {
		flushCtx, cancel := context.WithTimeout(ctx, finalFlushTimeout)
		defer cancel()
		e.flushEvents(flushCtx, st)
	}

	e.log.Info("engine shut down")
	return nil
}

// CheckGate resolves a gate and emits a gate exposure. An unknown gate
// resolves false.
func (e *Engine) CheckGate(ctx context.Context, user statbridge.UserContext, name string) (bool, error) {
	st := e.run.Load()
	if st == nil {
		return false, errNotRunning
	}
	value, ruleID := false, ""
	if gate, ok := e.currentRuleset().Gates[name]; ok {
		value, ruleID = evalGate(gate, user)
	}
	e.metrics.evaluationsTotal.WithLabelValues("gate").Inc()
	e.recordEvent(st, event{
		Kind: eventKindGateExposure,
		Name: name,
		User: scrubUser(user),
		Metadata: map[string]string{
			"value":  strconv.FormatBool(value),
			"ruleId": ruleID,
		},
	})
	return value, nil
}

// GetConfig resolves a dynamic config and emits a config exposure. An
// unknown config resolves to an empty payload carrying the requested name.
func (e *Engine) GetConfig(ctx context.Context, user statbridge.UserContext, name string) (payload.Payload, error) {
	return e.resolveConfig(user, name, "config", func(rs Ruleset) (Config, bool) {
		c, ok := rs.Configs[name]
		return c, ok
	})
}

// GetExperiment resolves an experiment. Experiments share the config
// namespace; their rules carry the engine-assigned group values.
func (e *Engine) GetExperiment(ctx context.Context, user statbridge.UserContext, name string) (payload.Payload, error) {
	return e.resolveConfig(user, name, "experiment", func(rs Ruleset) (Config, bool) {
		c, ok := rs.Configs[name]
		return c, ok
	})
}

// GetLayer resolves a layer.
func (e *Engine) GetLayer(ctx context.Context, user statbridge.UserContext, name string) (payload.Payload, error) {
	return e.resolveConfig(user, name, "layer", func(rs Ruleset) (Config, bool) {
		c, ok := rs.Layers[name]
		return c, ok
	})
}

// LogEvent buffers a custom event for the next flush.
func (e *Engine) LogEvent(ctx context.Context, user statbridge.UserContext, name string) error {
	st := e.run.Load()
	if st == nil {
		return errNotRunning
	}
	e.recordEvent(st, event{
		Kind: eventKindCustom,
		Name: name,
		User: scrubUser(user),
	})
	return nil
}

func (e *Engine) resolveConfig(user statbridge.UserContext, name, kind string, lookup func(Ruleset) (Config, bool)) (payload.Payload, error) {
	st := e.run.Load()
	if st == nil {
		return payload.Empty(), errNotRunning
	}
	result := payload.Payload{Name: name, Values: map[string]any{}}
	if cfg, ok := lookup(e.currentRuleset()); ok {
		result = evalConfig(cfg, user)
	}
	e.metrics.evaluationsTotal.WithLabelValues(kind).Inc()
	e.recordEvent(st, event{
		Kind: eventKindConfigExposure,
		Name: name,
		User: scrubUser(user),
		Metadata: map[string]string{
			"kind":   kind,
			"ruleId": result.RuleID,
		},
	})
	return result, nil
}

// recordEvent buffers an event unless logging is disabled. Full buffers drop
// the event and account for it.
func (e *Engine) recordEvent(st *runState, ev event) {
	if st.opts.LocalMode {
		return
	}
	ev.ID = uuid.NewString()
	ev.Time = time.Now().UTC()
	if !st.events.add(ev) {
		e.metrics.eventsDroppedTotal.Inc()
		return
	}
	e.metrics.bufferedEvents.Set(float64(st.events.size()))
}

func (e *Engine) runSync(ctx context.Context, st *runState) {
	ticker := time.NewTicker(st.opts.RulesetSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs, err := st.transport.fetchRuleset(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.metrics.syncsTotal.WithLabelValues("error").Inc()
				e.log.Warn("ruleset sync failed", "error", err)
				continue
			}
			e.metrics.syncsTotal.WithLabelValues("ok").Inc()
			e.setRuleset(rs)
		}
	}
}

func (e *Engine) runFlush(ctx context.Context, st *runState) {
	ticker := time.NewTicker(st.opts.LoggingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flushEvents(ctx, st)
		}
	}
}

// flushEvents drains the buffer and delivers the batch. A failed delivery
// drops the batch; exposure data is best effort.
func (e *Engine) flushEvents(ctx context.Context, st *runState) {
	batch := st.events.drain()
	e.metrics.bufferedEvents.Set(0)
	if len(batch) == 0 {
		return
	}
	if err := st.transport.sendEvents(ctx, st.sessionID, batch); err != nil {
		e.metrics.eventsDroppedTotal.Add(float64(len(batch)))
		e.log.Warn("event flush failed", "count", len(batch), "error", err)
		return
	}
	e.metrics.eventsFlushedTotal.Add(float64(len(batch)))
}

func (e *Engine) setRuleset(rs Ruleset) {
	e.mu.Lock()
	e.ruleset = rs
	e.mu.Unlock()
	e.metrics.rulesetVersion.Set(float64(rs.Version))
}

func (e *Engine) currentRuleset() Ruleset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ruleset
}

func applyDefaults(opts *statbridge.Options) {
	if opts.RulesetSyncInterval == 0 {
		opts.RulesetSyncInterval = defaultSyncInterval
	}
	if opts.LoggingInterval == 0 {
		opts.LoggingInterval = defaultLoggingInterval
	}
	if opts.LoggingMaxBufferedEvents == 0 {
		opts.LoggingMaxBufferedEvents = defaultMaxBufferedEvents
	}
}
