package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/speakeasy/internal/ai"
)

func userMessage(text string) ai.CompletionRequest {
	return ai.CompletionRequest{Messages: []ai.Message{{Role: "user", Content: text}}}
}

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	router.Register("ollama", ai.NewMockProvider("¡Hola!"))

	resp, err := router.Complete(context.Background(), userMessage("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "¡Hola!" || resp.Provider != "ollama" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()
	router.Register("ollama", &ai.MockProvider{Err: errors.New("connection refused")})
	router.Register("openai", ai.NewMockProvider("Fallback response"))

	resp, err := router.Complete(context.Background(), userMessage("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" || resp.Provider != "openai" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	last := errors.New("fail 2")
	router.Register("ollama", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("openai", &ai.MockProvider{Err: last})

	_, err := router.Complete(context.Background(), userMessage("hi"))
	if !errors.Is(err, last) {
		t.Fatalf("Complete() error = %v, want wrapping %v", err, last)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), userMessage("hi"))
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_CancelledContextStopsFallback(t *testing.T) {
	router := ai.NewRouter()
	first := &ai.MockProvider{Err: errors.New("slow")}
	second := ai.NewMockProvider("should not be called")
	router.Register("first", first)
	router.Register("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Complete(ctx, userMessage("hi"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
	if len(second.Requests()) != 0 {
		t.Error("fallback provider called after cancellation")
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))
	router.Register("first", ai.NewMockProvider("first again"))

	resp, err := router.Complete(context.Background(), userMessage("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first again" {
		t.Errorf("Content = %q, want re-registered provider to keep its slot", resp.Content)
	}
}

func TestRouter_TaskRoutes(t *testing.T) {
	router := ai.NewRouter()
	ollama := &ai.MockProvider{Err: errors.New("down")}
	openai := ai.NewMockProvider("ok")
	router.Register("ollama", ollama)
	router.Register("openai", openai)
	router.SetRoute(ai.TaskLessonGeneration, ai.Route{Provider: "ollama", Model: "qwen2.5:72b", Temperature: 0.7, MaxTokens: 4096})
	router.SetRoute(ai.TaskRoleplay, ai.Route{Model: "llama3.1:8b", Temperature: 0.8})

	req := userMessage("lesson")
	req.Task = ai.TaskLessonGeneration
	if _, err := router.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got := ollama.LastRequest(); got.Model != "qwen2.5:72b" || got.MaxTokens != 4096 || got.Temperature != 0.7 {
		t.Errorf("ollama request = %+v", got)
	}
	if got := openai.LastRequest(); got.Model != "" || got.MaxTokens != 4096 {
		t.Errorf("openai request = %+v, want route model kept off other providers", got)
	}

	req = userMessage("roleplay")
	req.Task = ai.TaskRoleplay
	req.Temperature = 0.2
	if _, err := router.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := openai.LastRequest(); got.Model != "llama3.1:8b" || got.Temperature != 0.2 {
		t.Errorf("roleplay request = %+v", got)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	if err := router.HealthCheck(context.Background()); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("HealthCheck() empty = %v", err)
	}

	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail with only unhealthy providers")
	}

	router.Register("up", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil with one healthy provider", err)
	}
}
