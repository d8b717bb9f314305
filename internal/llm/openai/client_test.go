package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/llm"
)

func TestCompleteSendsRoleSeparatedMessages(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  DOS FATOS\n\ntexto  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Name: "groq", APIKey: "k", BaseURL: srv.URL, Model: "m", Temperature: 0.3, MaxTokens: 100}, nil)
	out, err := c.Complete(context.Background(), llm.Request{System: "sys", User: "user"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "DOS FATOS\n\ntexto" {
		t.Fatalf("out = %q", out)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Fatalf("first message = %v", msgs[0])
	}
	if got["temperature"].(float64) < 0.29 || got["max_tokens"].(float64) != 100 {
		t.Fatalf("unexpected params: %v", got)
	}
	if c.Name() != "groq" {
		t.Fatalf("name = %q", c.Name())
	}
}

func TestCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), llm.Request{User: "u"})
	var se *llm.StatusError
	if !errors.As(err, &se) || !se.Transient() {
		t.Fatalf("expected transient status error, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	if _, err := c.Complete(context.Background(), llm.Request{User: "u"}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCompleteTimeoutIsDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Complete(context.Background(), llm.Request{User: "u"})
	if !llm.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
