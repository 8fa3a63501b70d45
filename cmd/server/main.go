package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/speakeasy/internal/ai"
	"github.com/p-n-ai/speakeasy/internal/api"
	"github.com/p-n-ai/speakeasy/internal/content"
	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/notify"
	"github.com/p-n-ai/speakeasy/internal/platform/cache"
	"github.com/p-n-ai/speakeasy/internal/platform/config"
	"github.com/p-n-ai/speakeasy/internal/platform/database"
	"github.com/p-n-ai/speakeasy/internal/platform/logging"
	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
	"github.com/p-n-ai/speakeasy/internal/progress"
	"github.com/p-n-ai/speakeasy/internal/quiz"
	"github.com/p-n-ai/speakeasy/internal/store"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err = run(ctx, cfg)
	stop()
	_ = logCloser.Close()
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.telegram != nil {
		g.Go(func() error {
			if err := a.telegram.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// app is the wired service.
type app struct {
	handler  http.Handler
	telegram *notify.TelegramChannel
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the optional backends and builds the HTTP handler. Without
// a database URL progress is kept in memory; without a cache URL content is
// not cached and token budgets are per process.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	catalog, err := loadCatalog(cfg.CurriculumPath)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []api.Option{
		api.WithMetrics(reg),
		api.WithRateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
	}

	var links notify.LinkStore = store.NewMemoryLinkStore()
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		ps, err := store.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		links = store.NewPostgresLinkStore(db.Pool)
		opts = append(opts,
			api.WithStore(ps),
			api.WithEventLogger(store.NewPostgresEventLogger(db.Pool)),
			api.WithHealthCheck("database", db.HealthCheck),
		)
		slog.Info("progress stored in PostgreSQL")
	} else {
		slog.Warn("SPEAKEASY_DATABASE_URL not set, progress is kept in memory")
	}

	var budget ai.BudgetChecker = ai.NewInMemoryBudget(cfg.AI.DailyTokenBudget)
	var genOpts []content.Option
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		budget = ai.NewRedisBudget(c.Client, cfg.AI.DailyTokenBudget)
		genOpts = append(genOpts, content.WithCache(c, cfg.Content.CacheTTL))
		opts = append(opts, api.WithHealthCheck("cache", c.HealthCheck))
	}

	router := newRouter(cfg.AI)
	if !router.HasProvider() {
		slog.Warn("no AI provider configured, lesson content uses the standard material")
	}
	text := ai.NewTextService(router, budget)
	genOpts = append(genOpts,
		content.WithQuizGenerator(text.ForTask(ai.TaskQuizGeneration)),
		content.WithRoleplayGenerator(text.ForTask(ai.TaskRoleplay)),
	)
	generator := content.NewGenerator(catalog, text, genOpts...)

	gateway := notify.NewGateway()
	hub := notify.NewWebSocketHub()
	gateway.Register("websocket", hub)
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramChannel(cfg.Telegram.BotToken, links)
		if err != nil {
			return nil, err
		}
		gateway.Register("telegram", tg)
		a.telegram = tg
	}
	opts = append(opts, api.WithNotifier(gateway), api.WithWebSocketHub(hub))

	srv := api.NewServer(
		catalog,
		progress.NewTracker(catalog, progress.WithLocation(loc)),
		quiz.NewScorer(catalog),
		generator,
		opts...,
	)
	a.handler = srv.Handler()
	ok = true
	return a, nil
}

func loadCatalog(path string) (*curriculum.Catalog, error) {
	if path == "" {
		return curriculum.Default()
	}
	c, err := curriculum.NewLoader(path)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum from %s: %w", path, err)
	}
	return c, nil
}

// newRouter registers every configured provider in fallback order and routes
// generation tasks to the large model and conversation to the fast one.
func newRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	client := &http.Client{Timeout: cfg.Timeout}

	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL,
			ai.WithOllamaModel(cfg.Ollama.Model),
			ai.WithOllamaHTTPClient(client),
		))
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey,
			ai.WithDefaultModel(cfg.OpenAI.Model),
			ai.WithHTTPClient(client),
		))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithHTTPClient(client)))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithHTTPClient(client)))
	}
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey,
			ai.WithGoogleModel(cfg.Google.Model),
			ai.WithGoogleHTTPClient(client),
		))
	}

	large := ai.Route{Temperature: 0.7, MaxTokens: 4096}
	fast := ai.Route{Temperature: 0.8, MaxTokens: 2048}
	if cfg.Ollama.Enabled {
		large.Provider, large.Model = "ollama", cfg.Ollama.Model
		fast.Provider, fast.Model = "ollama", cfg.Ollama.FastModel
	}
	router.SetRoute(ai.TaskLessonGeneration, large)
	router.SetRoute(ai.TaskQuizGeneration, large)
	router.SetRoute(ai.TaskRoleplay, fast)
	router.SetRoute(ai.TaskConversation, fast)
	return router
}
