package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/speakeasy/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		AI:        config.AIConfig{DailyTokenBudget: 1000, Timeout: time.Second},
		RateLimit: config.RateLimitConfig{PerMinute: 60, Burst: 5},
		Log:       config.LogConfig{Level: "info", Format: "json"},
		Timezone:  "UTC",
	}
}

func TestHealthEndpoints(t *testing.T) {
	a, err := newApp(t.Context(), testConfig())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestNewApp_WithoutProviderServesFallback(t *testing.T) {
	a, err := newApp(t.Context(), testConfig())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()
	if a.telegram != nil {
		t.Error("telegram should be disabled without a bot token")
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/lessons/1/content?lang=spanish", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"source":"fallback"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics endpoint should expose runtime collectors")
	}
}

func TestNewApp_BadBackends(t *testing.T) {
	tests := []struct {
		name string
		edit func(*config.Config)
	}{
		{"database url", func(c *config.Config) { c.Database.URL = "://bad" }},
		{"cache url", func(c *config.Config) { c.Cache.URL = "://bad" }},
		{"curriculum path", func(c *config.Config) { c.CurriculumPath = t.TempDir() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.edit(cfg)
			if _, err := newApp(t.Context(), cfg); err == nil {
				t.Error("newApp() should fail")
			}
		})
	}
}

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.AIConfig
		wantProvider bool
	}{
		{"none", config.AIConfig{}, false},
		{"ollama", config.AIConfig{Ollama: config.OllamaConfig{Enabled: true, URL: "http://localhost:11434", Model: "qwen2.5:72b"}}, true},
		{"openai", config.AIConfig{OpenAI: config.OpenAIConfig{APIKey: "sk-test"}}, true},
		{"google", config.AIConfig{Google: config.GoogleConfig{APIKey: "g-test"}}, true},
		{"deepseek", config.AIConfig{DeepSeek: config.DeepSeekConfig{APIKey: "d-test"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newRouter(tt.cfg).HasProvider(); got != tt.wantProvider {
				t.Errorf("HasProvider() = %v, want %v", got, tt.wantProvider)
			}
		})
	}
}
