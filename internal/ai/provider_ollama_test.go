package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_Complete(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Ollama should not send Authorization header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		_, _ = w.Write([]byte(`{
			"model": "qwen2.5:72b",
			"message": {"role": "assistant", "content": "{\"introduction\":\"Hola\"}"},
			"done": true,
			"prompt_eval_count": 12,
			"eval_count": 30
		}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL + "/")

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "system", Content: "teach"}, {Role: "user", Content: "hello"}},
		MaxTokens:   4096,
		Temperature: 0.7,
		Format:      FormatJSON,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"introduction":"Hola"}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 30 {
		t.Errorf("tokens = %d/%d, want 12/30", resp.InputTokens, resp.OutputTokens)
	}

	if got.Model != defaultOllamaModel {
		t.Errorf("model = %q, want default %q", got.Model, defaultOllamaModel)
	}
	if got.Stream {
		t.Error("stream should be false")
	}
	if got.Format != "json" {
		t.Errorf("format = %q, want json", got.Format)
	}
	if got.Options == nil || got.Options.NumPredict != 4096 || got.Options.Temperature != 0.7 {
		t.Errorf("options = %+v", got.Options)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOllamaProvider_ModelOverride(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"x","message":{"content":"ok"},"done":true}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, WithOllamaModel("llama3.1:8b"))

	if _, err := provider.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Model != "llama3.1:8b" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Options != nil {
		t.Errorf("options = %+v, want omitted", got.Options)
	}

	if _, err := provider.Complete(context.Background(), CompletionRequest{Model: "mistral"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Model != "mistral" {
		t.Errorf("model = %q, want request model", got.Model)
	}
}

func TestOllamaProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model not loaded"}`},
		{"bad json", http.StatusOK, `not json`},
		{"empty message", http.StatusOK, `{"model":"x","message":{"content":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOllamaProvider(server.URL).Complete(context.Background(), CompletionRequest{})
			if err == nil {
				t.Fatal("Complete() should return error")
			}
		})
	}
}

func TestOllamaProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	if err := NewOllamaProvider(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOllamaProvider_DefaultBaseURL(t *testing.T) {
	p := NewOllamaProvider("")
	if p.baseURL != defaultOllamaBaseURL {
		t.Errorf("baseURL = %q", p.baseURL)
	}
}
