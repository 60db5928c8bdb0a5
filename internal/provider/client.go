// Package provider sends chat-completion requests to agent endpoints with bounded retries.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/core"
)

const (
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
	maxResponseBytes   = 16 << 20
)

// Completer is the capability the orchestrator depends on.
type Completer interface {
	Complete(ctx context.Context, a agent.Agent, messages []core.Message) (string, error)
}

type Config struct {
	MaxAttempts int
	Timeout     time.Duration
	Debug       config.DebugConfig
	HTTPClient  *http.Client
}

// Client implements Completer over HTTP.
type Client struct {
	http          *http.Client
	maxAttempts   int
	timeout       time.Duration
	limits        limiterSet
	requestLogger *RequestLogger
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = config.DefaultMaxAttempts
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}

	client := &Client{
		http:        httpClient,
		maxAttempts: maxAttempts,
		timeout:     timeout,
	}

	if cfg.Debug.LogRequests || cfg.Debug.LogResponses {
		client.requestLogger = NewRequestLogger(
			cfg.Debug.LogDirectory,
			cfg.Debug.LogRequests,
			cfg.Debug.LogResponses,
			slog.Default(),
		)
	}

	return client
}

// attemptFailure is the outcome of one failed attempt.
type attemptFailure struct {
	err       error
	timedOut  bool
	retryable bool
}

// Complete sends one logical request and returns the assistant text.
//
// Timeouts and non-2xx statuses are retried up to the attempt budget with an
// identical body each time. Transport failures and undecodable 2xx bodies are
// terminal. Cancelling ctx stops the loop at the next attempt boundary; an
// attempt already on the wire runs until it resolves or hits its own timeout.
func (c *Client) Complete(ctx context.Context, a agent.Agent, messages []core.Message) (string, error) {
	requestID := core.NewRequestID()

	payload := buildPayload(a, messages, c.sampling(a))
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &TransportError{Agent: a.Name, Detail: "encode request: " + err.Error(), Err: err}
	}

	if c.requestLogger != nil {
		c.requestLogger.LogRequest(requestID, a.Name, messages, payload)
	}

	release, err := c.limits.acquire(ctx, a)
	if err != nil {
		return "", ErrCancelled
	}
	defer release()

	timeout := c.timeout
	if a.Timeout > 0 {
		timeout = a.Timeout
	}

	var last attemptFailure
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}

		if err := c.limits.wait(ctx, a); err != nil {
			return "", ErrCancelled
		}

		startTime := time.Now()
		text, failure := c.attempt(ctx, a, body, timeout)
		duration := time.Since(startTime)

		if ctx.Err() != nil {
			return "", ErrCancelled
		}

		if failure == nil {
			if c.requestLogger != nil {
				c.requestLogger.LogResponse(requestID, a.Name, attempt, text, duration)
			}
			return text, nil
		}

		last = *failure
		slog.Warn("completion attempt failed",
			"request_id", requestID,
			"agent", a.Name,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"duration", duration,
			"error", failure.err,
		)
		if c.requestLogger != nil {
			status := 0
			var upstream *UpstreamError
			if errors.As(failure.err, &upstream) {
				status = upstream.Status
			}
			c.requestLogger.LogError(requestID, a.Name, attempt, status, failure.err.Error())
		}

		if !failure.retryable {
			return "", failure.err
		}
	}

	if last.timedOut {
		return "", &TimeoutError{Agent: a.Name, Attempts: c.maxAttempts, Timeout: timeout.String()}
	}
	return "", last.err
}

func (c *Client) attempt(ctx context.Context, a agent.Agent, body []byte, timeout time.Duration) (string, *attemptFailure) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return "", &attemptFailure{err: &TransportError{Agent: a.Name, Detail: err.Error(), Err: err}}
	}

	req.Header.Set("Content-Type", "application/json")
	if a.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+a.Secret)
		if a.Format == config.FormatGemini {
			req.Header.Set("x-goog-api-key", a.Secret)
		}
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return "", &attemptFailure{err: err, timedOut: true, retryable: true}
		}
		return "", &attemptFailure{err: &TransportError{Agent: a.Name, Detail: err.Error(), Err: err}}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return "", &attemptFailure{err: err, timedOut: true, retryable: true}
		}
		return "", &attemptFailure{err: &TransportError{Agent: a.Name, Detail: "read response: " + err.Error(), Err: err}}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &attemptFailure{
			err:       &UpstreamError{Agent: a.Name, Status: httpResp.StatusCode, Body: strings.TrimSpace(string(respBody))},
			retryable: true,
		}
	}

	text, err := extractText(a.Format, respBody)
	if err != nil {
		return "", &attemptFailure{err: &UpstreamError{
			Agent:  a.Name,
			Status: httpResp.StatusCode,
			Body:   fmt.Sprintf("unreadable response (%v): %s", err, truncate(string(respBody), 512)),
		}}
	}

	return text, nil
}

func (c *Client) sampling(a agent.Agent) sampling {
	s := sampling{maxTokens: defaultMaxTokens, temperature: defaultTemperature}
	if a.MaxTokens > 0 {
		s.maxTokens = a.MaxTokens
	}
	if a.Temperature != nil {
		s.temperature = *a.Temperature
	}
	return s
}

func isTimeout(attemptCtx context.Context, err error) bool {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
