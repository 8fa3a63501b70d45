package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
)

const maxSuggestedPrompts = 3

var defaultSuggestedPrompts = []string{
	"Try using the new vocabulary",
	"Practice the grammar structure",
	"Ask a question",
}

// Scenario sets up an AI conversation partner for a lesson.
type Scenario struct {
	LessonID         int      `json:"lessonId"`
	Scenario         string   `json:"scenario"`
	SystemPrompt     string   `json:"systemPrompt"`
	SuggestedPrompts []string `json:"suggestedPrompts"`
}

// Turn is one message of a roleplay conversation.
type Turn struct {
	Role string `json:"role" validate:"required,oneof=learner tutor"`
	Text string `json:"text" validate:"required,max=2000"`
}

// RoleplayScenario returns the tutor instructions and suggested learner
// phrases for a lesson.
func (g *Generator) RoleplayScenario(lessonID int, targetLanguage, userLevel string) (Scenario, error) {
	lc, ok := g.catalog.LessonContent(lessonID, targetLanguage)
	if !ok {
		return Scenario{}, fmt.Errorf("lesson %d: %w", lessonID, curriculum.ErrLessonNotFound)
	}
	if lc.Roleplay == nil {
		return Scenario{}, fmt.Errorf("lesson %d: %w", lessonID, ErrNoRoleplay)
	}

	system, err := render("roleplay.tmpl", roleplayPrompt{
		Scenario: lc.Roleplay.Scenario,
		Language: g.catalog.DisplayLanguage(targetLanguage),
		Level:    levelOrDefault(userLevel),
		Prompts:  lc.Roleplay.Prompts,
	})
	if err != nil {
		return Scenario{}, err
	}

	return Scenario{
		LessonID:         lessonID,
		Scenario:         lc.Roleplay.Scenario,
		SystemPrompt:     system,
		SuggestedPrompts: suggestedPrompts(lc.Adaptation),
	}, nil
}

func suggestedPrompts(a curriculum.Adaptation) []string {
	if len(a.Phrases) == 0 {
		return append([]string(nil), defaultSuggestedPrompts...)
	}
	return append([]string(nil), a.Phrases[:min(maxSuggestedPrompts, len(a.Phrases))]...)
}

// RoleplayReply produces the tutor's next turn. Unlike lesson content there
// is no static fallback, so generation errors are returned.
func (g *Generator) RoleplayReply(ctx context.Context, lessonID int, targetLanguage, userLevel string, history []Turn, message string) (string, error) {
	scenario, err := g.RoleplayScenario(lessonID, targetLanguage, userLevel)
	if err != nil {
		return "", err
	}
	language := g.catalog.DisplayLanguage(targetLanguage)
	level := levelOrDefault(userLevel)

	labelled := make([]Turn, len(history))
	for i, t := range history {
		labelled[i] = Turn{Role: roleLabel(t.Role), Text: t.Text}
	}
	prompt, err := render("roleplay_turn.tmpl", turnPrompt{
		SystemPrompt: scenario.SystemPrompt,
		Language:     language,
		History:      labelled,
		Message:      message,
	})
	if err != nil {
		return "", err
	}

	reply, err := g.roleplay.GenerateText(ctx, prompt, language, level)
	if err != nil {
		return "", fmt.Errorf("roleplay reply for lesson %d: %w", lessonID, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("roleplay reply for lesson %d: %w", lessonID, ErrInvalidResponse)
	}
	return reply, nil
}

func roleLabel(role string) string {
	if strings.EqualFold(role, "tutor") {
		return "Tutor"
	}
	return "Learner"
}
