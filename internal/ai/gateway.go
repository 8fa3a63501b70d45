// Package ai provides a provider-agnostic text generation gateway with
// task-based model routing.
package ai

import (
	"context"
	"errors"
)

// TaskType defines the kind of generation task for routing purposes.
type TaskType int

const (
	TaskLessonGeneration TaskType = iota
	TaskQuizGeneration
	TaskRoleplay
	TaskConversation
)

func (t TaskType) String() string {
	switch t {
	case TaskLessonGeneration:
		return "lesson_generation"
	case TaskQuizGeneration:
		return "quiz_generation"
	case TaskRoleplay:
		return "roleplay"
	case TaskConversation:
		return "conversation"
	default:
		return "unknown"
	}
}

// FormatJSON asks the provider to constrain output to a JSON document.
const FormatJSON = "json"

var (
	// ErrNoProvider is returned when the router has nothing registered.
	ErrNoProvider = errors.New("no AI provider configured")
	// ErrBudgetExceeded is returned when a learner has used up their token budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Format      string    `json:"format,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from a completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// systemPrompt returns the first system message content, if any.
func systemPrompt(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}
