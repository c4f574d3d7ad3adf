package statbridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matt-riley/statbridge/payload"
)

// stubEngine counts calls and returns canned results so gateway behavior can
// be tested without a real engine.
type stubEngine struct {
	mu          sync.Mutex
	initCalls   int
	evalCalls   int
	initErr     error
	gateValue   bool
	gateErr     error
	panicOnEval bool
	lastOptions Options
	events      []string
}

func (s *stubEngine) Initialize(ctx context.Context, sdkKey string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	s.lastOptions = opts
	return s.initErr
}

func (s *stubEngine) Shutdown(ctx context.Context) error { return nil }

func (s *stubEngine) CheckGate(ctx context.Context, user UserContext, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evalCalls++
	if s.panicOnEval {
		panic("engine exploded")
	}
	return s.gateValue, s.gateErr
}

func (s *stubEngine) GetConfig(ctx context.Context, user UserContext, name string) (payload.Payload, error) {
	return payload.Payload{Name: name, Values: map[string]any{"tier": "gold"}, RuleID: "r1"}, nil
}

func (s *stubEngine) GetExperiment(ctx context.Context, user UserContext, name string) (payload.Payload, error) {
	return s.GetConfig(ctx, user, name)
}

func (s *stubEngine) GetLayer(ctx context.Context, user UserContext, name string) (payload.Payload, error) {
	return s.GetConfig(ctx, user, name)
}

func (s *stubEngine) LogEvent(ctx context.Context, user UserContext, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	return nil
}

func initialized(t *testing.T, eng Engine) *Bridge {
	t.Helper()
	b := New(eng)
	if res := b.Initialize(context.Background(), "secret-key"); !res.OK() {
		t.Fatalf("Initialize failed: %v", res.Err())
	}
	return b
}

func TestBridgeLifecycle(t *testing.T) {
	ctx := context.Background()
	eng := &stubEngine{}
	b := New(eng)

	if b.IsInitialized() {
		t.Fatal("fresh bridge reports initialized")
	}

	if res := b.Initialize(ctx, "key"); !res.OK() {
		t.Fatalf("Initialize: %v", res.Err())
	}
	if !b.IsInitialized() {
		t.Fatal("bridge not initialized after Initialize")
	}

	// Second initialize must fail without reaching the engine again.
	if res := b.Initialize(ctx, "key"); !errors.Is(res.Err(), ErrAlreadyInitialized) {
		t.Fatalf("second Initialize err = %v, want ErrAlreadyInitialized", res.Err())
	}
	if eng.initCalls != 1 {
		t.Fatalf("engine initialized %d times", eng.initCalls)
	}

	if res := b.Shutdown(ctx); !res.OK() {
		t.Fatalf("Shutdown: %v", res.Err())
	}
	if b.IsInitialized() {
		t.Fatal("bridge initialized after Shutdown")
	}
	if res := b.Shutdown(ctx); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("second Shutdown err = %v, want ErrNotInitialized", res.Err())
	}

	// Re-initialization after shutdown is permitted.
	if res := b.Initialize(ctx, "key"); !res.OK() {
		t.Fatalf("re-Initialize: %v", res.Err())
	}
}

func TestBridgeEngineInitFailureStaysUninitialized(t *testing.T) {
	eng := &stubEngine{initErr: errors.New("network down")}
	b := New(eng)
	if res := b.Initialize(context.Background(), "key"); res.OK() {
		t.Fatal("Initialize succeeded despite engine failure")
	}
	if b.IsInitialized() {
		t.Fatal("bridge initialized despite engine failure")
	}
}

func TestBridgeOptionsPassedVerbatim(t *testing.T) {
	eng := &stubEngine{}
	b := New(eng)
	opts := Options{APIBase: "", LocalMode: true, LoggingMaxBufferedEvents: 10}
	if res := b.InitializeWithOptions(context.Background(), "key", opts); !res.OK() {
		t.Fatalf("InitializeWithOptions: %v", res.Err())
	}
	if eng.lastOptions != opts {
		t.Fatalf("engine saw options %+v, want %+v", eng.lastOptions, opts)
	}
}

func TestBridgeRejectsInvalidOptions(t *testing.T) {
	b := New(&stubEngine{})
	res := b.InitializeWithOptions(context.Background(), "key", Options{LoggingMaxBufferedEvents: -1})
	if res.OK() {
		t.Fatal("invalid options accepted")
	}
}

func TestUninitializedOperationsFailWithoutEngineCall(t *testing.T) {
	ctx := context.Background()
	eng := &stubEngine{}
	b := New(eng)
	user := DefaultUser()

	if res := b.CheckGate(ctx, user, "g"); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("CheckGate err = %v", res.Err())
	}
	if res := b.GetConfig(ctx, user, "c"); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("GetConfig err = %v", res.Err())
	}
	if res := b.GetExperiment(ctx, user, "e"); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("GetExperiment err = %v", res.Err())
	}
	if res := b.GetLayer(ctx, user, "l"); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("GetLayer err = %v", res.Err())
	}
	if res := b.LogEvent(ctx, user, "ev"); !errors.Is(res.Err(), ErrNotInitialized) {
		t.Fatalf("LogEvent err = %v", res.Err())
	}
	if eng.evalCalls != 0 || len(eng.events) != 0 {
		t.Fatal("engine was reached while uninitialized")
	}
}

func TestEngineErrorsBecomeFailures(t *testing.T) {
	eng := &stubEngine{gateErr: errors.New("rule table corrupt")}
	b := initialized(t, eng)

	res := b.CheckGate(context.Background(), DefaultUser(), "g")
	if res.OK() {
		t.Fatal("engine error surfaced as success")
	}
	if !errors.Is(res.Err(), ErrEngineEvaluation) {
		t.Fatalf("err = %v, want ErrEngineEvaluation", res.Err())
	}
}

func TestEnginePanicIsContained(t *testing.T) {
	eng := &stubEngine{panicOnEval: true}
	b := initialized(t, eng)

	res := b.CheckGate(context.Background(), DefaultUser(), "g")
	if res.OK() {
		t.Fatal("panic surfaced as success")
	}
	if !errors.Is(res.Err(), ErrEngineEvaluation) {
		t.Fatalf("err = %v, want ErrEngineEvaluation", res.Err())
	}
}

func TestConvenienceGateShapes(t *testing.T) {
	ctx := context.Background()
	userJSON := []byte(`{"id":"u1"}`)

	t.Run("error-returning surfaces failures", func(t *testing.T) {
		b := New(&stubEngine{}) // uninitialized
		if _, err := b.Gate(ctx, userJSON, "g"); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("Gate err = %v", err)
		}
	})

	t.Run("invalid user fails before the engine", func(t *testing.T) {
		eng := &stubEngine{}
		b := initialized(t, eng)
		if _, err := b.Gate(ctx, []byte(`[]`), "g"); !errors.Is(err, ErrInvalidUserInput) {
			t.Fatalf("Gate err = %v", err)
		}
		if eng.evalCalls != 0 {
			t.Fatal("engine reached with invalid user")
		}
	})

	t.Run("or-default swallows", func(t *testing.T) {
		b := New(&stubEngine{gateValue: true}) // uninitialized: must fall back
		if b.GateOrDefault(ctx, userJSON, "g") {
			t.Fatal("GateOrDefault returned true on failure")
		}
		b = initialized(t, &stubEngine{gateValue: true})
		if !b.GateOrDefault(ctx, userJSON, "g") {
			t.Fatal("GateOrDefault lost the engine value")
		}
	})

	t.Run("resolved keeps the reason", func(t *testing.T) {
		b := New(&stubEngine{})
		r := b.GateResolved(ctx, userJSON, "g")
		if r.Resolved || r.Value {
			t.Fatalf("resolved = %+v", r)
		}
		if !errors.Is(r.Err, ErrNotInitialized) {
			t.Fatalf("resolved err = %v", r.Err)
		}
	})
}

func TestConvenienceConfigShapes(t *testing.T) {
	ctx := context.Background()
	userJSON := []byte(`{"id":"u1"}`)
	b := initialized(t, &stubEngine{})

	p, err := b.Config(ctx, userJSON, "pricing")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if p.String("tier", "") != "gold" {
		t.Fatalf("payload = %+v", p)
	}

	if got := b.ExperimentOrDefault(ctx, userJSON, "exp"); got.String("tier", "") != "gold" {
		t.Fatalf("ExperimentOrDefault = %+v", got)
	}

	r := b.LayerResolved(ctx, userJSON, "layer")
	if !r.Resolved || r.Err != nil {
		t.Fatalf("LayerResolved = %+v", r)
	}

	// Failure path: default payloads are empty but usable.
	stopped := New(&stubEngine{})
	got := stopped.ConfigOrDefault(ctx, userJSON, "pricing")
	if got.Values == nil || len(got.Values) != 0 {
		t.Fatalf("ConfigOrDefault on failure = %+v", got)
	}
	rr := stopped.ConfigResolved(ctx, userJSON, "pricing")
	if rr.Resolved || rr.Value.Values == nil {
		t.Fatalf("ConfigResolved on failure = %+v", rr)
	}
}

func TestConvenienceEvents(t *testing.T) {
	ctx := context.Background()
	eng := &stubEngine{}
	b := initialized(t, eng)

	if err := b.Event(ctx, []byte(`{"id":"u1"}`), "purchase"); err != nil {
		t.Fatalf("Event: %v", err)
	}
	b.TryEvent(ctx, []byte(`{"id":"u1"}`), "view")
	if len(eng.events) != 2 {
		t.Fatalf("events = %v", eng.events)
	}

	// TryEvent swallows everything, including bad input.
	b.TryEvent(ctx, []byte(`not json`), "ignored")
	if len(eng.events) != 2 {
		t.Fatalf("TryEvent reached engine with bad input: %v", eng.events)
	}
}

func TestConcurrentEvaluationDuringLifecycle(t *testing.T) {
	ctx := context.Background()
	b := initialized(t, &stubEngine{gateValue: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := b.CheckGate(ctx, DefaultUser(), "g")
				if res.OK() {
					continue
				}
				// After shutdown the only acceptable failure is the
				// lifecycle one.
				if !errors.Is(res.Err(), ErrNotInitialized) {
					t.Errorf("unexpected failure: %v", res.Err())
					return
				}
			}
		}()
	}
	b.Shutdown(ctx)
	wg.Wait()
}
