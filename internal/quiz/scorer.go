// Package quiz grades quiz submissions against the curriculum catalog.
package quiz

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
)

// ErrQuizNotFound is returned when a lesson has no quiz.
var ErrQuizNotFound = errors.New("quiz not found")

// Result is the outcome of grading one submission.
type Result struct {
	Score        int `json:"score"`
	EarnedPoints int `json:"earnedPoints"`
	TotalPoints  int `json:"totalPoints"`
}

// Attempt is one graded quiz submission.
type Attempt struct {
	ID           string            `json:"id"`
	LessonID     int               `json:"lessonId"`
	AttemptedAt  time.Time         `json:"attemptedAt"`
	Score        int               `json:"score"`
	EarnedPoints int               `json:"earnedPoints"`
	TotalPoints  int               `json:"totalPoints"`
	Passed       bool              `json:"passed"`
	Answers      map[string]string `json:"answers"`
}

// Scorer grades answers. It holds no per-user state.
type Scorer struct {
	catalog *curriculum.Catalog
	now     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the time source used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer creates a scorer backed by catalog.
func NewScorer(catalog *curriculum.Catalog, opts ...Option) *Scorer {
	s := &Scorer{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score grades answers against correct. Only question IDs present in correct
// and known to the catalog count towards the total; unknown IDs are skipped.
func (s *Scorer) Score(answers, correct map[string]string) Result {
	var r Result
	for qid, want := range correct {
		question, ok := s.catalog.Question(qid)
		if !ok {
			continue
		}
		r.TotalPoints += question.Points
		got, answered := answers[qid]
		if answered && AnswersEqual(question.Type, got, want) {
			r.EarnedPoints += question.Points
		}
	}
	if r.TotalPoints > 0 {
		r.Score = int(math.Round(100 * float64(r.EarnedPoints) / float64(r.TotalPoints)))
	}
	return r
}

// DidPass reports whether score meets the lesson's passing score. A lesson
// without a quiz never passes.
func (s *Scorer) DidPass(lessonID, score int) bool {
	q, ok := s.catalog.Quiz(lessonID)
	return ok && score >= q.PassingScore
}

// RecordAttempt grades a submission for a lesson and returns the attempt.
func (s *Scorer) RecordAttempt(lessonID int, answers, correct map[string]string) (Attempt, error) {
	if _, ok := s.catalog.Quiz(lessonID); !ok {
		return Attempt{}, fmt.Errorf("lesson %d: %w", lessonID, ErrQuizNotFound)
	}
	r := s.Score(answers, correct)
	return Attempt{
		ID:           uuid.NewString(),
		LessonID:     lessonID,
		AttemptedAt:  s.now(),
		Score:        r.Score,
		EarnedPoints: r.EarnedPoints,
		TotalPoints:  r.TotalPoints,
		Passed:       s.DidPass(lessonID, r.Score),
		Answers:      answers,
	}, nil
}

// AnswersEqual compares a submitted answer with the expected one.
//
// Matching answers are lists of pairs ("a=1;b=2") and compare as sets, so
// the order the learner matched them in does not matter. Every other type
// compares by exact string equality.
func AnswersEqual(t curriculum.QuestionType, got, want string) bool {
	if t != curriculum.Matching {
		return got == want
	}
	if got == want {
		return true
	}
	equal := slices.Equal(matchingPairs(got), matchingPairs(want))
	if equal {
		slog.Debug("matching answer accepted by pair comparison", "answer", got, "expected", want)
	}
	return equal
}

func matchingPairs(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			pairs = append(pairs, f)
		}
	}
	slices.Sort(pairs)
	return slices.Compact(pairs)
}
