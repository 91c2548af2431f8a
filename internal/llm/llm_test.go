package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStripCodeBlock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nplain\n```", "plain"},
		{"  no fence  ", "no fence"},
	}
	for _, tt := range tests {
		if got := StripCodeBlock(tt.in); got != tt.want {
			t.Errorf("StripCodeBlock(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := ExtractJSONObject("Here is the TOC:\n{\"A\": {\"B\": \"2\"}}\nHope that helps.")
	if !ok {
		t.Fatal("expected object to be found")
	}
	if got != `{"A": {"B": "2"}}` {
		t.Errorf("expected inner object, got %q", got)
	}
	if _, ok := ExtractJSONObject("no braces here"); ok {
		t.Error("expected no object")
	}
}

func TestClaudeClient_Complete(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "claude-test").WithBaseURL(srv.URL)
	out, err := c.Complete(context.Background(), Request{Prompt: "hi", System: "be brief", Temperature: 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("expected %q, got %q", "Hello there", out)
	}
	if gotReq.Model != "claude-test" || gotReq.System != "be brief" {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", defaultMaxTokens, gotReq.MaxTokens)
	}
	if gotReq.Temperature == nil || *gotReq.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", gotReq.Temperature)
	}
	if gotReq.TopP != nil {
		t.Errorf("expected top_p omitted, got %v", *gotReq.TopP)
	}
	if c.Stats.Snapshot().Count != 1 {
		t.Errorf("expected one recorded call, got %d", c.Stats.Snapshot().Count)
	}
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "m").WithBaseURL(srv.URL)
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if snap := c.Stats.Snapshot(); snap.Failures != 1 {
		t.Errorf("expected one failure recorded, got %d", snap.Failures)
	}
}

func TestClaudeClient_BadRequestNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("key", "m").WithBaseURL(srv.URL).Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "m",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected system+user messages, got %d", len(msgs))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse("RESPONSE A: yes\nRESPONSE B: no")))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", srv.URL, "gen-model", "")
	out, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "RESPONSE B") {
		t.Errorf("expected completion text, got %q", out)
	}
	if c.Model() != "gen-model" {
		t.Errorf("expected model gen-model, got %q", c.Model())
	}
}

func TestOpenAIClient_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"s","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop",
			"message":{"role":"assistant","content":""},
			"logprobs":{"content":[{"token":"helpfulness","logprob":3.5,"bytes":null,"top_logprobs":[]},
			{"token":"correctness","logprob":2.25,"bytes":null,"top_logprobs":[]}]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", srv.URL, "gen", "reward")
	scores, err := c.Score(context.Background(), "What is PTO?", "Paid time off.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["helpfulness"] != 3.5 || scores["correctness"] != 2.25 {
		t.Errorf("unexpected scores: %v", scores)
	}
}

func TestOpenAIClient_ScoreWithoutModel(t *testing.T) {
	c := NewOpenAIClient("key", "http://127.0.0.1:1", "gen", "")
	if _, err := c.Score(context.Background(), "q", "a"); err == nil {
		t.Fatal("expected error without scoring model")
	}
}

func TestOpenAIClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("key", srv.URL, "m", "").Complete(context.Background(), Request{Prompt: "q"})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

type scriptedCompleter struct {
	errs  []error
	calls int
}

func (s *scriptedCompleter) Model() string { return "scripted" }

func (s *scriptedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

func TestCompleteWithRetry(t *testing.T) {
	backoff = func(int) time.Duration { return time.Millisecond }
	defer func() { backoff = Backoff }()

	c := &scriptedCompleter{errs: []error{&RetryableError{StatusCode: 429}, &RetryableError{StatusCode: 503}}}
	out, err := CompleteWithRetry(context.Background(), c, Request{}, nil)
	if err != nil || out != "ok" {
		t.Fatalf("expected success after retries, got %q %v", out, err)
	}
	if c.calls != 3 {
		t.Errorf("expected 3 calls, got %d", c.calls)
	}

	fatal := errors.New("bad request")
	c = &scriptedCompleter{errs: []error{fatal}}
	if _, err := CompleteWithRetry(context.Background(), c, Request{}, nil); !errors.Is(err, fatal) {
		t.Fatalf("expected non-retryable error returned, got %v", err)
	}
	if c.calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", c.calls)
	}

	c = &scriptedCompleter{errs: []error{&RetryableError{}, &RetryableError{}, &RetryableError{}}}
	if _, err := CompleteWithRetry(context.Background(), c, Request{}, nil); !IsRetryable(err) {
		t.Fatalf("expected retryable error after exhausting attempts, got %v", err)
	}
	if c.calls != MaxRetries {
		t.Errorf("expected %d calls, got %d", MaxRetries, c.calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		if d < time.Second || d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
