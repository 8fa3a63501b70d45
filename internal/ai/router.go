package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Route holds the generation settings used for a task. Model applies only
// to the provider registered under Provider, or to every provider when
// Provider is empty.
type Route struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Router tries providers in registration order and fills in per-task model
// settings the request leaves unset.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	routes    map[TaskType]Route
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		routes:    make(map[TaskType]Route),
	}
}

// Register adds a provider to the end of the fallback chain.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// SetRoute sets the generation settings for a task.
func (r *Router) SetRoute(task TaskType, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[task] = route
}

// Complete routes a request to the first provider that succeeds. A cancelled
// context stops the fallback chain immediately.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}
	var lastErr error
	for _, name := range r.fallback {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}

		resp, err := r.providers[name].Complete(ctx, r.applyRoute(req, name))
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			lastErr = err
			continue
		}

		resp.Provider = name
		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", lastErr)
}

func (r *Router) applyRoute(req CompletionRequest, provider string) CompletionRequest {
	route, ok := r.routes[req.Task]
	if !ok {
		return req
	}
	if req.Model == "" && (route.Provider == "" || route.Provider == provider) {
		req.Model = route.Model
	}
	if req.Temperature == 0 {
		req.Temperature = route.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = route.MaxTokens
	}
	return req
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck checks every provider concurrently. It succeeds when at least
// one provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	names := append([]string(nil), r.fallback...)
	providers := make([]Provider, len(names))
	for i, name := range names {
		providers[i] = r.providers[name]
	}
	r.mu.RUnlock()

	if len(names) == 0 {
		return ErrNoProvider
	}

	errs := make([]error, len(names))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			errs[i] = p.HealthCheck(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			return nil
		}
		slog.Warn("AI provider unhealthy", "provider", names[i], "error", err)
	}
	return fmt.Errorf("no healthy AI provider: %w", errs[0])
}
