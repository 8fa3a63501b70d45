package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
)

// GeneratedQuestion is a quiz question written by the text service.
type GeneratedQuestion struct {
	ID            string                  `json:"id"`
	Type          curriculum.QuestionType `json:"type"`
	Question      string                  `json:"question"`
	Options       []string                `json:"options,omitempty"`
	CorrectAnswer string                  `json:"correctAnswer"`
	Explanation   string                  `json:"explanation,omitempty"`
}

// DynamicQuiz asks the text service for fresh questions shaped like the
// lesson's catalog quiz. Generation and validation errors are returned.
func (g *Generator) DynamicQuiz(ctx context.Context, lessonID int, targetLanguage, userLevel string) ([]GeneratedQuestion, error) {
	lesson, ok := g.catalog.Lesson(lessonID)
	if !ok {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, curriculum.ErrLessonNotFound)
	}
	base, ok := g.catalog.Quiz(lessonID)
	if !ok {
		return nil, fmt.Errorf("quiz for lesson %d: %w", lessonID, curriculum.ErrLessonNotFound)
	}
	language := g.catalog.DisplayLanguage(targetLanguage)
	level := levelOrDefault(userLevel)

	data := quizPrompt{
		Title:    lesson.Title,
		Language: language,
		Level:    level,
		Topics:   lesson.Topics,
	}
	for _, q := range base.Questions {
		data.Questions = append(data.Questions, quizPromptQuestion{Type: string(q.Type), Instruction: q.Instruction})
	}
	prompt, err := render("dynamic_quiz.tmpl", data)
	if err != nil {
		return nil, err
	}

	raw, err := g.quiz.GenerateText(ctx, prompt, language, level)
	if err != nil {
		return nil, fmt.Errorf("generating quiz for lesson %d: %w", lessonID, err)
	}
	questions, err := parseQuiz(raw)
	if err != nil {
		return nil, fmt.Errorf("quiz for lesson %d: %w", lessonID, err)
	}
	return questions, nil
}

// parseQuiz accepts a JSON array of questions or an object wrapping one under
// "questions".
func parseQuiz(raw string) ([]GeneratedQuestion, error) {
	text := stripFences(raw)
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON found", ErrInvalidResponse)
	}

	var doc []byte
	if text[start] == '{' {
		end := strings.LastIndexByte(text, '}')
		var wrapper struct {
			Questions json.RawMessage `json:"questions"`
		}
		if end < start || json.Unmarshal([]byte(text[start:end+1]), &wrapper) != nil || len(wrapper.Questions) == 0 {
			return nil, fmt.Errorf("%w: expected a questions array", ErrInvalidResponse)
		}
		doc = wrapper.Questions
	} else {
		end := strings.LastIndexByte(text, ']')
		if end < start {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidResponse)
		}
		doc = []byte(text[start : end+1])
	}

	if !json.Valid(doc) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidResponse)
	}
	if err := validate(quizSchema, doc); err != nil {
		return nil, err
	}
	var questions []GeneratedQuestion
	if err := json.Unmarshal(doc, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return questions, nil
}
