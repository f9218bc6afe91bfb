// Package transport implements the single-request HTTP layer for the Ozon
// Seller API: status-code and decode failure translation into typed errors,
// and bounded retry with exponential backoff for retryable conditions.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Seller API transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_requests_total",
		Help: "Total Seller API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ozon_fbo_request_duration_seconds",
		Help:    "Seller API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_errors_total",
		Help: "Total Seller API errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ozon_fbo_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// DefaultBaseURL is the production Seller API endpoint.
const DefaultBaseURL = "https://api-seller.ozon.ru"

// Config holds the transport configuration.
type Config struct {
	// BaseURL of the Seller API (default: DefaultBaseURL).
	BaseURL string

	// Credentials forwarded as Client-Id / Api-Key headers on every request.
	ClientID string
	APIKey   string

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration

	// Retry is the backoff policy for retryable failures.
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration for the given credentials.
func DefaultConfig(clientID, apiKey string) Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		ClientID: clientID,
		APIKey:   apiKey,
		Timeout:  30 * time.Second,
		Retry:    DefaultRetryPolicy(),
	}
}

// Transport issues requests to the Seller API. It owns its connection pool
// for its lifetime; Close releases it. A Transport is stateless per call and
// safe for concurrent use.
type Transport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Seller API transport.
func New(cfg Config) (*Transport, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	logger := log.With().Str("component", "transport").Logger()

	return &Transport{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Request performs one Seller API call with retry and returns the parsed
// JSON body. Rate-limit (429), server (5xx) and network failures are retried
// with exponential backoff; other 4xx responses fail immediately with a
// typed *APIError carrying the upstream message.
func (t *Transport) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	endpoint := path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	maxAttempts := t.config.Retry.MaxAttempts
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, retryIn, class, err := t.attempt(ctx, method, endpoint, payload, attempt)
		if err == nil {
			if attempt > 0 {
				t.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return raw, nil
		}
		lastErr = err

		if retryIn < 0 {
			// Non-retryable failure.
			return nil, err
		}

		if attempt == maxAttempts-1 {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(retryIn.Seconds())

		t.logger.Warn().
			Str("endpoint", endpoint).
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Dur("backoff", retryIn).
			Msg("Retrying request after backoff")

		if err := t.config.Retry.sleep(ctx, retryIn); err != nil {
			return nil, err
		}
	}

	retryExhaustedTotal.WithLabelValues(string(classOf(lastErr))).Inc()
	t.logger.Warn().
		Str("endpoint", endpoint).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w: failed after %d attempts: %v", ErrRetryExhausted, maxAttempts, lastErr)
}

// attempt executes a single HTTP call. The second return value is the
// backoff before the next attempt, or a negative duration when the failure
// must not be retried.
func (t *Transport) attempt(ctx context.Context, method, endpoint string, payload []byte, attempt int) (json.RawMessage, time.Duration, ErrorClass, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.config.BaseURL+endpoint, reader)
	if err != nil {
		return nil, -1, ErrorClassClient, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Client-Id", t.config.ClientID)
	req.Header.Set("Api-Key", t.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ErrorClassNetwork, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		t.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, t.config.Retry.backoff(attempt), ErrorClassNetwork,
			&APIError{ErrorClass: ErrorClassNetwork, Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, t.config.Retry.backoff(attempt), ErrorClassNetwork,
			&APIError{ErrorClass: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// Empty body counts as an empty success below 400.
	if len(bytes.TrimSpace(data)) == 0 {
		if resp.StatusCode < 400 {
			return json.RawMessage(`{}`), 0, "", nil
		}
		return t.statusFailure(resp.StatusCode, "Empty response", attempt)
	}

	if !json.Valid(data) {
		if resp.StatusCode >= 400 {
			class := classify(resp.StatusCode, nil)
			errorsTotal.WithLabelValues(string(class)).Inc()
			return nil, -1, class, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Message:    "invalid JSON in error response",
			}
		}
		// Successful status with garbage body: surface as a parse error,
		// never retried.
		return nil, -1, "", fmt.Errorf("%w (status %d)", ErrInvalidResponse, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return t.statusFailure(resp.StatusCode, extractErrorMessage(data), attempt)
	}

	return json.RawMessage(data), 0, "", nil
}

// statusFailure translates a >= 400 status into an error plus backoff decision.
func (t *Transport) statusFailure(statusCode int, message string, attempt int) (json.RawMessage, time.Duration, ErrorClass, error) {
	class := classify(statusCode, nil)
	errorsTotal.WithLabelValues(string(class)).Inc()

	apiErr := &APIError{
		StatusCode: statusCode,
		ErrorClass: class,
		Message:    message,
	}

	t.logger.Warn().
		Int("status", statusCode).
		Str("error_class", string(class)).
		Str("message", message).
		Msg("Seller API request error")

	if !retryable(class) {
		return nil, -1, class, apiErr
	}

	if class == ErrorClassRateLimit {
		// The upstream asked us to slow down; back off harder.
		return nil, t.config.Retry.rateLimitBackoff(attempt), class, apiErr
	}
	return nil, t.config.Retry.backoff(attempt), class, apiErr
}

// extractErrorMessage pulls a human-readable message from an upstream error
// body, checking the message and error fields in that order.
func extractErrorMessage(data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return "Unknown error"
	}
	for _, key := range []string{"message", "error"} {
		switch v := body[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err == nil {
				return string(encoded)
			}
		}
	}
	return "Unknown error"
}

// classOf extracts the error class from a transport error, defaulting to network.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass != "" {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// Close releases the transport's connection pool. It must be called on every
// exit path of the run that owns the transport.
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *Transport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}
