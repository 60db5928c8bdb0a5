package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/core"
)

func chatBody(text string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
	})
	return string(data)
}

func testAgent(url string) agent.Agent {
	return agent.Agent{Name: "local", URL: url, Model: "local-model", Secret: "NA", Format: config.FormatOpenAI}
}

func testMessages() []core.Message {
	return []core.Message{core.SystemMessage("be brief"), core.UserMessage("hello")}
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = io.WriteString(w, chatBody("hi there"))
	}))
	defer server.Close()

	client := NewClient(Config{Timeout: time.Second})

	text, err := client.Complete(context.Background(), testAgent(server.URL), testMessages())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if text != "hi there" {
		t.Errorf("expected %q, got %q", "hi there", text)
	}
	if gotAuth != "Bearer NA" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotPayload["model"] != "local-model" {
		t.Errorf("expected model in payload, got %v", gotPayload["model"])
	}
	if msgs, ok := gotPayload["messages"].([]any); !ok || len(msgs) != 2 {
		t.Errorf("expected 2 messages in payload, got %v", gotPayload["messages"])
	}
}

func TestComplete_ThreeTimeoutsReturnTimeout(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{Timeout: 50 * time.Millisecond})

	_, err := client.Complete(context.Background(), testAgent(server.URL), testMessages())

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Attempts != 3 {
		t.Errorf("expected 3 attempts in error, got %d", timeout.Attempts)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestComplete_RetriesUntilSuccessWithSameBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)

		mu.Lock()
		bodies = append(bodies, string(data))
		n := len(bodies)
		mu.Unlock()

		if n < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, chatBody("third time lucky"))
	}))
	defer server.Close()

	client := NewClient(Config{Timeout: time.Second})

	text, err := client.Complete(context.Background(), testAgent(server.URL), testMessages())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "third time lucky" {
		t.Errorf("unexpected text %q", text)
	}

	if len(bodies) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(bodies))
	}
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("attempt %d body differs from first:\n%s\n%s", i+1, bodies[i], bodies[0])
		}
	}
}

func TestComplete_UpstreamErrorAfterLastAttempt(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	}))
	defer server.Close()

	client := NewClient(Config{Timeout: time.Second})

	_, err := client.Complete(context.Background(), testAgent(server.URL), testMessages())

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusInternalServerError || upstream.Body != `{"error":"boom"}` {
		t.Errorf("unexpected upstream error: %+v", upstream)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected body detail in message, got %q", err.Error())
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestComplete_MalformedSuccessIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := NewClient(Config{Timeout: time.Second})

	_, err := client.Complete(context.Background(), testAgent(server.URL), testMessages())

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", upstream.Status)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected a single request, got %d", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestComplete_TransportErrorIsTerminal(t *testing.T) {
	var attempts atomic.Int32

	httpClient := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		attempts.Add(1)
		return nil, errors.New("dial tcp 127.0.0.1:1234: connect: connection refused")
	})}

	client := NewClient(Config{Timeout: time.Second, HTTPClient: httpClient})

	_, err := client.Complete(context.Background(), testAgent("http://127.0.0.1:1234/v1/chat/completions"), testMessages())

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !strings.Contains(transport.Detail, "connection refused") {
		t.Errorf("expected original detail, got %q", transport.Detail)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected no retry, got %d attempts", got)
	}
}

func TestComplete_CancelledBeforeStart(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = io.WriteString(w, chatBody("never"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{Timeout: time.Second})

	_, err := client.Complete(ctx, testAgent(server.URL), testMessages())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := attempts.Load(); got != 0 {
		t.Errorf("expected no requests, got %d", got)
	}
}

func TestComplete_CancelStopsAtRetryBoundary(t *testing.T) {
	var attempts atomic.Int32
	inFlight := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			close(inFlight)
			<-release
		}
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(Config{Timeout: 5 * time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := client.Complete(ctx, testAgent(server.URL), testMessages())
		done <- err
	}()

	<-inFlight
	cancel()
	close(release)

	err := <-done
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected the in-flight attempt only, got %d", got)
	}
}

func TestComplete_GeminiFormat(t *testing.T) {
	var gotKey string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"gem"},{"text":"ini"}]}}]}`)
	}))
	defer server.Close()

	a := agent.Agent{Name: "gemini", URL: server.URL, Model: "gemini-pro", Secret: "g-key", Format: config.FormatGemini}
	history := []core.Message{
		core.SystemMessage("rules"),
		core.UserMessage("q1"),
		core.AssistantMessage("a1"),
		core.UserMessage("q2"),
	}

	client := NewClient(Config{Timeout: time.Second})

	text, err := client.Complete(context.Background(), a, history)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if text != "gemini" {
		t.Errorf("expected joined parts, got %q", text)
	}
	if gotKey != "g-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}

	contents, ok := gotPayload["contents"].([]any)
	if !ok || len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %v", gotPayload["contents"])
	}
	if role := contents[1].(map[string]any)["role"]; role != "model" {
		t.Errorf("expected assistant mapped to model, got %v", role)
	}
	if _, ok := gotPayload["systemInstruction"]; !ok {
		t.Error("expected systemInstruction for system message")
	}
}

func TestComplete_RequestLoggerWritesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatBody("logged"))
	}))
	defer server.Close()

	logDir := t.TempDir()
	client := NewClient(Config{
		Timeout: time.Second,
		Debug:   config.DebugConfig{LogRequests: true, LogResponses: true, LogDirectory: logDir},
	})

	a := testAgent(server.URL)
	a.Secret = "top-secret"

	if _, err := client.Complete(context.Background(), a, testMessages()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	data := readLogDir(t, logDir)
	if strings.Count(data, "\n") != 2 {
		t.Errorf("expected request and response entries, got:\n%s", data)
	}
	if strings.Contains(data, "top-secret") {
		t.Error("secret leaked into request log")
	}
}
