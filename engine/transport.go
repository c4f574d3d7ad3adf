package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultAPIBase   = "https://api.statbridge.io"
	requestTimeout   = 30 * time.Second
	rulesetMaxTries  = 4
	rulesetBodyLimit = 16 << 20 // 16 MiB
)

// APIError is returned when the configuration service responds with an HTTP
// error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("statbridge: HTTP %d: %s", e.StatusCode, e.Message)
}

// transport talks to the remote configuration service: ruleset downloads and
// event delivery. It is nil in local mode.
type transport struct {
	baseURL    string
	sdkKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func newTransport(apiBase, sdkKey string, httpClient *http.Client, log *slog.Logger) *transport {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &transport{
		baseURL:    strings.TrimRight(apiBase, "/"),
		sdkKey:     sdkKey,
		httpClient: httpClient,
		log:        log,
	}
}

// fetchRuleset downloads the current ruleset, retrying transient failures
// with exponential backoff. Client errors other than 429 are permanent.
func (t *transport) fetchRuleset(ctx context.Context) (Ruleset, error) {
	attempt := func() (Ruleset, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v1/rulesets", nil)
		if err != nil {
			return Ruleset{}, backoff.Permanent(fmt.Errorf("create ruleset request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+t.sdkKey)

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return Ruleset{}, fmt.Errorf("ruleset request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return Ruleset{}, backoff.Permanent(apiErr)
			}
			return Ruleset{}, apiErr
		}

		var rs Ruleset
		if err := json.NewDecoder(io.LimitReader(resp.Body, rulesetBodyLimit)).Decode(&rs); err != nil {
			return Ruleset{}, fmt.Errorf("decode ruleset: %w", err)
		}
		rs.normalize()
		return rs, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(rulesetMaxTries),
	)
}

// sendEvents delivers one event batch. Delivery is best effort: the caller
// accounts for dropped batches, so there is no retry here.
func (t *transport) sendEvents(ctx context.Context, sessionID string, batch []event) error {
	body, err := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"events":    batch,
	})
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.sdkKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("events request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return nil
}
