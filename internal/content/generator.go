// Package content produces personalised lesson material with a text
// generation service, falling back to static curriculum data when the
// service fails or returns nothing usable.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/speakeasy/internal/ai"
	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
)

var (
	// ErrInvalidResponse is returned when generated output cannot be used.
	ErrInvalidResponse = errors.New("invalid generated content")
	// ErrNoRoleplay is returned for lessons without a roleplay scenario.
	ErrNoRoleplay = errors.New("lesson has no roleplay scenario")
)

// Source tells where lesson content came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceExtracted Source = "extracted"
	SourceFallback  Source = "fallback"
	SourceCached    Source = "cached"
)

const (
	DefaultLevel    = "beginner"
	defaultCacheTTL = 24 * time.Hour

	noticeUnavailable = "Personalized content is unavailable right now, so this lesson shows the standard material."
	noticeBudget      = "You have reached today's limit for personalized content, so this lesson shows the standard material."
	noticePartial     = "Some parts of this lesson could not be personalized and show the standard material."
)

// TextGenerator turns a prompt into text for a target language and learner
// level.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, targetLanguage, userLevel string) (string, error)
}

// LessonContent is the generated material for one lesson.
type LessonContent struct {
	LessonID     int    `json:"lessonId"`
	Language     string `json:"language"`
	Level        string `json:"level"`
	Introduction string `json:"introduction"`
	Examples     string `json:"examples"`
	Dialogue     string `json:"dialogue"`
	Exercises    string `json:"exercises"`
	Source       Source `json:"source"`
	Notice       string `json:"notice,omitempty"`
}

func (c *LessonContent) section(name string) *string {
	switch name {
	case SectionIntroduction:
		return &c.Introduction
	case SectionExamples:
		return &c.Examples
	case SectionDialogue:
		return &c.Dialogue
	case SectionExercises:
		return &c.Exercises
	}
	return nil
}

// Generator builds lesson content, roleplay scenarios and dynamic quizzes.
type Generator struct {
	catalog  *curriculum.Catalog
	text     TextGenerator
	quiz     TextGenerator
	roleplay TextGenerator
	cache    Cache
	cacheTTL time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithQuizGenerator routes dynamic quiz prompts to t.
func WithQuizGenerator(t TextGenerator) Option {
	return func(g *Generator) { g.quiz = t }
}

// WithRoleplayGenerator routes roleplay turns to t.
func WithRoleplayGenerator(t TextGenerator) Option {
	return func(g *Generator) { g.roleplay = t }
}

// WithCache caches generated lesson content for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(g *Generator) {
		g.cache = c
		if ttl > 0 {
			g.cacheTTL = ttl
		}
	}
}

// NewGenerator creates a generator over catalog. text serves every prompt
// kind that has no dedicated generator.
func NewGenerator(catalog *curriculum.Catalog, text TextGenerator, opts ...Option) *Generator {
	g := &Generator{
		catalog:  catalog,
		text:     text,
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.quiz == nil {
		g.quiz = text
	}
	if g.roleplay == nil {
		g.roleplay = text
	}
	return g
}

// GenerateLessonContent asks the text service for personalised material.
// Failures of the service never reach the caller: the content falls back to
// static lesson data with a notice. Only an unknown lesson or cancellation of
// ctx is returned as an error.
func (g *Generator) GenerateLessonContent(ctx context.Context, lessonID int, targetLanguage, userLevel string) (LessonContent, error) {
	lesson, ok := g.catalog.Lesson(lessonID)
	if !ok {
		return LessonContent{}, fmt.Errorf("lesson %d: %w", lessonID, curriculum.ErrLessonNotFound)
	}
	language := g.catalog.DisplayLanguage(targetLanguage)
	level := levelOrDefault(userLevel)

	vocabulary := lesson.Vocabulary
	if lc, ok := g.catalog.LessonContent(lessonID, targetLanguage); ok && len(lc.Adaptation.Phrases) > 0 {
		vocabulary = lc.Adaptation.Phrases
	}
	prompt, err := render("lesson.tmpl", lessonPrompt{
		Title:      lesson.Title,
		Language:   language,
		Level:      level,
		Objectives: lesson.Objectives,
		Topics:     lesson.Topics,
		Vocabulary: vocabulary,
	})
	if err != nil {
		return LessonContent{}, err
	}

	out := LessonContent{LessonID: lessonID, Language: language, Level: level}
	key := cacheKey(prompt, language, level)
	if cached, ok := g.lookup(ctx, key); ok {
		metrics.ContentGenerated.WithLabelValues(string(SourceCached)).Inc()
		return cached, nil
	}

	raw, err := g.text.GenerateText(ctx, prompt, language, level)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return LessonContent{}, ctxErr
		}
		notice := noticeUnavailable
		if errors.Is(err, ai.ErrBudgetExceeded) {
			notice = noticeBudget
		}
		slog.Warn("lesson content generation failed, using fallback",
			"lesson_id", lessonID,
			"language", language,
			"error", err,
		)
		return fallback(out, lesson, notice), nil
	}

	p := parseLessonContent(raw)
	if p.empty() {
		slog.Warn("generated lesson content had no usable sections, using fallback",
			"lesson_id", lessonID,
			"language", language,
			"response_bytes", len(raw),
		)
		return fallback(out, lesson, noticeUnavailable), nil
	}

	defaults := fallbackSections(lesson)
	for _, name := range sectionNames {
		text := p.sections[name]
		if text == "" {
			text = defaults[name]
			out.Notice = noticePartial
		}
		*out.section(name) = text
	}
	out.Source = p.source
	metrics.ContentGenerated.WithLabelValues(string(out.Source)).Inc()

	g.store(ctx, key, out)
	return out, nil
}

func (g *Generator) lookup(ctx context.Context, key string) (LessonContent, bool) {
	if g.cache == nil {
		return LessonContent{}, false
	}
	b, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("content cache read failed", "error", err)
		return LessonContent{}, false
	}
	if !ok {
		return LessonContent{}, false
	}
	var c LessonContent
	if err := json.Unmarshal(b, &c); err != nil {
		slog.Warn("discarding unreadable cached content", "key", key, "error", err)
		return LessonContent{}, false
	}
	c.Source = SourceCached
	return c, true
}

func (g *Generator) store(ctx context.Context, key string, c LessonContent) {
	if g.cache == nil {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, key, b, g.cacheTTL); err != nil {
		slog.Warn("content cache write failed", "error", err)
	}
}

func fallback(out LessonContent, lesson curriculum.Lesson, notice string) LessonContent {
	sections := fallbackSections(lesson)
	for _, name := range sectionNames {
		*out.section(name) = sections[name]
	}
	out.Source = SourceFallback
	out.Notice = notice
	metrics.ContentGenerated.WithLabelValues(string(SourceFallback)).Inc()
	return out
}

func fallbackSections(lesson curriculum.Lesson) map[string]string {
	examples := "Practice examples will be provided."
	if len(lesson.Vocabulary) > 0 {
		examples = strings.Join(lesson.Vocabulary[:min(3, len(lesson.Vocabulary))], ", ")
	}
	return map[string]string{
		SectionIntroduction: fmt.Sprintf("Welcome to %s! In this lesson, you will learn: %s.", lesson.Title, strings.Join(lesson.Objectives, ", ")),
		SectionExamples:     examples,
		SectionDialogue:     "Interactive dialogue available in the practice section.",
		SectionExercises:    "Complete the exercises to reinforce your learning.",
	}
}

func levelOrDefault(level string) string {
	if level = strings.TrimSpace(level); level != "" {
		return level
	}
	return DefaultLevel
}
