package ai

import (
	"context"
	"fmt"
	"log/slog"
)

type userKey struct{}

// WithUser attaches the learner a request is made for, so budgets can be
// enforced further down the call chain.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the learner attached by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// TextService turns a prompt into text through the router, enforcing the
// per-learner token budget when a learner is attached to the context.
type TextService struct {
	router *Router
	budget BudgetChecker
	task   TaskType
	format string
}

// NewTextService creates a service for lesson generation. budget may be nil.
func NewTextService(router *Router, budget BudgetChecker) *TextService {
	return &TextService{
		router: router,
		budget: budget,
		task:   TaskLessonGeneration,
		format: FormatJSON,
	}
}

// ForTask returns a copy of the service routed as task.
func (s *TextService) ForTask(task TaskType) *TextService {
	c := *s
	c.task = task
	if task == TaskRoleplay || task == TaskConversation {
		c.format = ""
	}
	return &c
}

// GenerateText sends prompt to the model with a system prompt naming the
// target language and learner level.
func (s *TextService) GenerateText(ctx context.Context, prompt, targetLanguage, userLevel string) (string, error) {
	userID, hasUser := UserFrom(ctx)
	if hasUser && s.budget != nil {
		ok, err := s.budget.Check(ctx, userID)
		if err != nil {
			slog.Warn("budget check failed, allowing request", "user_id", userID, "error", err)
		} else if !ok {
			return "", ErrBudgetExceeded
		}
	}

	resp, err := s.router.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: systemPromptFor(targetLanguage, userLevel)},
			{Role: "user", Content: prompt},
		},
		Format: s.format,
		Task:   s.task,
	})
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", s.task, err)
	}

	if hasUser && s.budget != nil {
		if err := s.budget.Record(ctx, userID, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "user_id", userID, "error", err)
		}
	}
	return resp.Content, nil
}

func systemPromptFor(targetLanguage, userLevel string) string {
	return fmt.Sprintf(
		"You are an expert %s teacher creating learning material for a %s learner. "+
			"Keep explanations short, use natural everyday language, and follow the requested output format exactly.",
		targetLanguage, userLevel,
	)
}
