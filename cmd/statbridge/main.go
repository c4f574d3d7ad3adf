// Command statbridge is a smoke-test CLI for the statbridge SDK. It
// initializes the reference engine, evaluates a gate or fetches a config for
// a user document, prints the result as JSON, and shuts down.
//
// Usage:
//
//	statbridge -gate new_checkout -user '{"id":"u1","country":"SE"}'
//	statbridge -config pricing -user @user.json -api http://localhost:8080
//	statbridge -gate beta -bootstrap rulesets.json
//
// The SDK key is read from STATBRIDGE_SDK_KEY; -bootstrap switches to local
// mode and needs no key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matt-riley/statbridge"
	"github.com/matt-riley/statbridge/engine"
	"github.com/matt-riley/statbridge/internal/logging"
)

const initializeTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "statbridge:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		gateName   = flag.String("gate", "", "gate to check")
		configName = flag.String("config", "", "config to fetch")
		userDoc    = flag.String("user", "", "user JSON document, or @file")
		apiBase    = flag.String("api", "", "override the configuration service endpoint")
		bootstrap  = flag.String("bootstrap", "", "local ruleset file; enables local mode")
		logLevel   = flag.String("log-level", "warn", "log level: debug, info, warn, error")
	)
	flag.Parse()

	if (*gateName == "") == (*configName == "") {
		return fmt.Errorf("exactly one of -gate or -config is required")
	}

	userJSON, err := readUserDoc(*userDoc)
	if err != nil {
		return err
	}

	log := logging.New(*logLevel)
	opts := statbridge.Options{APIBase: *apiBase}
	engineOpts := []engine.Option{engine.WithLogger(log)}
	if *bootstrap != "" {
		opts.LocalMode = true
		engineOpts = append(engineOpts, engine.WithBootstrapFile(*bootstrap))
	}

	sdkKey := os.Getenv("STATBRIDGE_SDK_KEY")
	if sdkKey == "" && !opts.LocalMode {
		return fmt.Errorf("STATBRIDGE_SDK_KEY is required without -bootstrap")
	}

	bridge := statbridge.New(engine.New(engineOpts...))

	ctx, cancel := context.WithTimeout(context.Background(), initializeTimeout)
	defer cancel()
	if res := bridge.InitializeWithOptions(ctx, sdkKey, opts); !res.OK() {
		return res.Err()
	}
	defer bridge.Shutdown(context.Background())

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	if *gateName != "" {
		result := bridge.GateResolved(ctx, userJSON, *gateName)
		return out.Encode(map[string]any{
			"gate":     *gateName,
			"value":    result.Value,
			"resolved": result.Resolved,
			"error":    errString(result.Err),
		})
	}

	result := bridge.ConfigResolved(ctx, userJSON, *configName)
	return out.Encode(map[string]any{
		"config":   result.Value,
		"resolved": result.Resolved,
		"error":    errString(result.Err),
	})
}

// readUserDoc accepts an inline JSON document or an @file reference; empty
// means the default user.
func readUserDoc(arg string) ([]byte, error) {
	if arg == "" {
		return nil, nil
	}
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read user document: %w", err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
