// Package progress tracks a learner's movement through the curriculum.
//
// All operations are pure: they read a caller-owned Map and return new
// records. Persisting them is the caller's job (see internal/store).
package progress

import (
	"math"
	"slices"
	"time"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/quiz"
)

// LessonProgress is one learner's state for one lesson.
type LessonProgress struct {
	LessonID        int            `json:"lessonId"`
	Started         bool           `json:"started"`
	StartedAt       time.Time      `json:"startedAt,omitzero"`
	Completed       bool           `json:"completed"`
	CompletedAt     time.Time      `json:"completedAt,omitzero"`
	TimeSpent       int            `json:"timeSpent"`
	QuizPassed      bool           `json:"quizPassed"`
	BestQuizScore   int            `json:"bestQuizScore"`
	QuizAttempts    []quiz.Attempt `json:"quizAttempts"`
	QuizCompletedAt time.Time      `json:"quizCompletedAt,omitzero"`
}

// Done reports whether the lesson counts towards progress and unlocks.
func (p LessonProgress) Done() bool {
	return p.Completed && p.QuizPassed
}

// Map is a learner's progress keyed by lesson ID.
type Map map[int]LessonProgress

// Completion is the patch produced by CompleteLesson.
type Completion struct {
	LessonID    int       `json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
	TimeSpent   int       `json:"timeSpent"`
}

// Apply merges the completion into p. A quiz already passed stays passed.
func (c Completion) Apply(p LessonProgress) LessonProgress {
	p.LessonID = c.LessonID
	p.Completed = true
	p.CompletedAt = c.CompletedAt
	p.TimeSpent = c.TimeSpent
	return p
}

// Merge applies a completion patch to the stored record for its lesson and
// returns the updated record.
func (m Map) Merge(c Completion) LessonProgress {
	p := c.Apply(m[c.LessonID])
	m[c.LessonID] = p
	return p
}

// Overview summarises overall progress.
type Overview struct {
	Percentage    int  `json:"percentage"`
	Completed     int  `json:"completed"`
	Total         int  `json:"total"`
	CurrentLesson *int `json:"currentLesson"`
}

// Tracker evaluates progress maps against the catalog. It holds no
// per-learner state and is safe for concurrent use.
type Tracker struct {
	catalog *curriculum.Catalog
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone that defines calendar days for streaks.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// NewTracker creates a tracker backed by catalog.
func NewTracker(catalog *curriculum.Catalog, opts ...Option) *Tracker {
	t := &Tracker{catalog: catalog, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartLesson returns a fresh record for a lesson that has just begun.
func (t *Tracker) StartLesson(lessonID int) LessonProgress {
	return LessonProgress{
		LessonID:  lessonID,
		Started:   true,
		StartedAt: t.now(),
	}
}

// CompleteLesson returns the completion patch for a lesson.
func (t *Tracker) CompleteLesson(lessonID, timeSpentSeconds int) Completion {
	return Completion{
		LessonID:    lessonID,
		CompletedAt: t.now(),
		TimeSpent:   timeSpentSeconds,
	}
}

// IsLessonUnlocked reports whether a learner may begin a lesson. Lesson 1 is
// always unlocked; any other lesson needs every prerequisite done.
func (t *Tracker) IsLessonUnlocked(lessonID int, m Map) bool {
	if lessonID == 1 {
		return true
	}
	if _, ok := t.catalog.Lesson(lessonID); !ok {
		return false
	}
	for _, pre := range t.catalog.Prerequisites(lessonID) {
		if !m[pre].Done() {
			return false
		}
	}
	return true
}

// CurrentLesson returns the first lesson not yet done. It returns false when
// that lesson is still locked or when the whole curriculum is done.
func (t *Tracker) CurrentLesson(m Map) (int, bool) {
	for _, l := range t.catalog.Lessons() {
		if m[l.ID].Done() {
			continue
		}
		if t.IsLessonUnlocked(l.ID, m) {
			return l.ID, true
		}
		return 0, false
	}
	return 0, false
}

// CalculateProgress summarises how much of the curriculum is done. Records
// for lessons outside the catalog are ignored.
func (t *Tracker) CalculateProgress(m Map) Overview {
	total := t.catalog.TotalLessons()
	o := Overview{Total: total, Completed: t.countDone(m, t.catalog.Lessons())}
	o.Percentage = percent(o.Completed, total)
	if id, ok := t.CurrentLesson(m); ok {
		o.CurrentLesson = &id
	}
	return o
}

func (t *Tracker) countDone(m Map, lessons []curriculum.Lesson) int {
	n := 0
	for _, l := range lessons {
		if m[l.ID].Done() {
			n++
		}
	}
	return n
}

// UpdateLessonWithQuiz folds a graded attempt into a lesson record. The
// attempt history is copied, never shared with the input.
func UpdateLessonWithQuiz(p LessonProgress, a quiz.Attempt) LessonProgress {
	p.QuizAttempts = append(slices.Clone(p.QuizAttempts), a)
	p.QuizPassed = a.Passed
	p.BestQuizScore = max(p.BestQuizScore, a.Score)
	if a.Passed {
		p.QuizCompletedAt = a.AttemptedAt
	}
	return p
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}
