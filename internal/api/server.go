// Package api exposes the curriculum, content generator and progress
// tracker over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/p-n-ai/speakeasy/internal/content"
	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/notify"
	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
	"github.com/p-n-ai/speakeasy/internal/progress"
	"github.com/p-n-ai/speakeasy/internal/quiz"
	"github.com/p-n-ai/speakeasy/internal/store"
)

const readyTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Notifier delivers achievement notifications.
type Notifier interface {
	NotifyAll(ctx context.Context, userID string, lessonID int, achievements []progress.Achievement) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	catalog   *curriculum.Catalog
	tracker   *progress.Tracker
	scorer    *quiz.Scorer
	generator *content.Generator

	store    store.ProgressStore
	events   store.EventLogger
	notifier Notifier
	hub      *notify.WebSocketHub
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
	limiter  *rateLimiter
	validate *validator.Validate

	locks *userLocks
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the progress store. Defaults to an in-memory store.
func WithStore(ps store.ProgressStore) Option {
	return func(s *Server) { s.store = ps }
}

// WithEventLogger sets the analytics event sink.
func WithEventLogger(l store.EventLogger) Option {
	return func(s *Server) { s.events = l }
}

// WithNotifier sets where unlocked achievements are announced.
func WithNotifier(n Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// WithWebSocketHub enables GET /v1/users/{user}/events.
func WithWebSocketHub(h *notify.WebSocketHub) Option {
	return func(s *Server) { s.hub = h }
}

// WithMetrics serves g at GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHealthCheck adds a readiness dependency.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithRateLimit limits the AI-backed endpoints per requester.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) { s.limiter = newRateLimiter(perMinute, burst) }
}

// NewServer creates the API server.
func NewServer(catalog *curriculum.Catalog, tracker *progress.Tracker, scorer *quiz.Scorer, generator *content.Generator, opts ...Option) *Server {
	s := &Server{
		catalog:   catalog,
		tracker:   tracker,
		scorer:    scorer,
		generator: generator,
		store:     store.NewMemoryStore(),
		events:    store.NopEventLogger{},
		checks:    make(map[string]HealthCheck),
		validate:  validator.New(),
		locks:     newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	mux.HandleFunc("GET /v1/curriculum", s.handleCurriculum)
	mux.HandleFunc("GET /v1/lessons/{id}", s.handleLesson)
	mux.HandleFunc("GET /v1/lessons/{id}/quiz", s.handleQuiz)
	mux.HandleFunc("GET /v1/lessons/{id}/content", s.limited(s.handleContent))
	mux.HandleFunc("GET /v1/lessons/{id}/roleplay", s.handleRoleplay)
	mux.HandleFunc("POST /v1/lessons/{id}/roleplay", s.limited(s.handleRoleplayReply))
	mux.HandleFunc("GET /v1/lessons/{id}/dynamic-quiz", s.limited(s.handleDynamicQuiz))

	mux.HandleFunc("GET /v1/users/{user}/progress", s.withUser(s.handleProgress))
	mux.HandleFunc("POST /v1/users/{user}/lessons/{id}/start", s.withUser(s.handleStart))
	mux.HandleFunc("POST /v1/users/{user}/lessons/{id}/complete", s.withUser(s.handleComplete))
	mux.HandleFunc("POST /v1/users/{user}/lessons/{id}/quiz", s.withUser(s.handleSubmitQuiz))
	mux.HandleFunc("GET /v1/users/{user}/report", s.withUser(s.handleReport))
	mux.HandleFunc("GET /v1/users/{user}/report.xlsx", s.withUser(s.handleReportXLSX))
	mux.HandleFunc("GET /v1/users/{user}/recommendation", s.withUser(s.handleRecommendation))
	if _, ok := s.events.(store.EventReader); ok {
		mux.HandleFunc("GET /v1/users/{user}/activity", s.withUser(s.handleActivity))
	}
	if s.hub != nil {
		mux.HandleFunc("GET /v1/users/{user}/events", s.withUser(s.handleEvents))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "not found")
	})
	return metrics.Middleware(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failed,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// lockUser serialises the read-modify-write cycle of one learner's records.
func (s *Server) lockUser(userID string) func() {
	return s.locks.lock(userID)
}

// userLocks hands out one mutex per learner and forgets it once no request
// holds or waits for it, so the map only grows with in-flight users.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
