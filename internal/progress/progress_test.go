package progress_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/progress"
	"github.com/p-n-ai/speakeasy/internal/quiz"
)

var fixedNow = time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

func defaultCatalog(t *testing.T) *curriculum.Catalog {
	t.Helper()
	c, err := curriculum.Default()
	if err != nil {
		t.Fatalf("curriculum.Default() error = %v", err)
	}
	return c
}

func newTracker(t *testing.T) *progress.Tracker {
	t.Helper()
	return progress.NewTracker(defaultCatalog(t),
		progress.WithClock(func() time.Time { return fixedNow }),
		progress.WithLocation(time.UTC),
	)
}

// passed builds a map where lessons 1..n are done.
func passed(n int) progress.Map {
	m := progress.Map{}
	for id := 1; id <= n; id++ {
		m[id] = progress.LessonProgress{LessonID: id, Started: true, Completed: true, QuizPassed: true}
	}
	return m
}

func TestStartLesson(t *testing.T) {
	tr := newTracker(t)

	p := tr.StartLesson(3)
	if !p.Started || p.Completed || p.QuizPassed {
		t.Errorf("StartLesson() = %+v", p)
	}
	if p.LessonID != 3 || !p.StartedAt.Equal(fixedNow) {
		t.Errorf("StartLesson() metadata = %d %v", p.LessonID, p.StartedAt)
	}
}

func TestCompleteLesson_Merge(t *testing.T) {
	tr := newTracker(t)
	m := progress.Map{2: tr.StartLesson(2)}

	c := tr.CompleteLesson(2, 600)
	got := m.Merge(c)

	if !got.Completed || got.QuizPassed || got.TimeSpent != 600 || !got.CompletedAt.Equal(fixedNow) {
		t.Errorf("Merge() = %+v", got)
	}
	if !got.Started {
		t.Error("Merge() dropped started flag")
	}
	if !m[2].Completed {
		t.Error("Merge() did not store the record")
	}
}

func TestCompleteLesson_KeepsPassedQuiz(t *testing.T) {
	tr := newTracker(t)
	m := passed(1)

	got := m.Merge(tr.CompleteLesson(1, 120))
	if !got.QuizPassed {
		t.Error("re-completing a lesson must not clear a passed quiz")
	}
}

func TestIsLessonUnlocked(t *testing.T) {
	tr := newTracker(t)

	half := passed(3)
	half[4] = progress.LessonProgress{Completed: true, QuizPassed: false}

	gate := passed(8)
	delete(gate, 5)
	gate[8] = gate[7]

	tests := []struct {
		name   string
		lesson int
		m      progress.Map
		want   bool
	}{
		{"lesson 1 with empty map", 1, progress.Map{}, true},
		{"lesson 1 with nil map", 1, nil, true},
		{"lesson 2 locked", 2, progress.Map{}, false},
		{"lesson 2 unlocked", 2, passed(1), true},
		{"completed without quiz does not unlock", 5, half, false},
		{"phase gate requires whole phase", 9, gate, false},
		{"phase gate open", 9, passed(8), true},
		{"unknown lesson", 31, passed(30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.IsLessonUnlocked(tt.lesson, tt.m); got != tt.want {
				t.Errorf("IsLessonUnlocked(%d) = %v, want %v", tt.lesson, got, tt.want)
			}
		})
	}
}

func TestCurrentLesson(t *testing.T) {
	tr := newTracker(t)

	inProgress := passed(2)
	inProgress[3] = progress.LessonProgress{Started: true, Completed: true}

	tests := []struct {
		name   string
		m      progress.Map
		want   int
		wantOK bool
	}{
		{"new learner", progress.Map{}, 1, true},
		{"after lesson 2", passed(2), 3, true},
		{"quiz pending", inProgress, 3, true},
		{"all done", passed(30), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tr.CurrentLesson(tt.m)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CurrentLesson() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCurrentLesson_BlockedByLockedLesson(t *testing.T) {
	tr := newTracker(t)

	// Lessons 1-8 done except 5: lesson 5 is first undone and unlocked.
	m := passed(8)
	delete(m, 5)
	if got, ok := tr.CurrentLesson(m); !ok || got != 5 {
		t.Errorf("CurrentLesson() = %d, %v; want 5", got, ok)
	}

	// Lesson 3 done but 2 not: lesson 2 is current and unlocked by lesson 1.
	m = progress.Map{1: passed(1)[1], 3: passed(3)[3]}
	if got, ok := tr.CurrentLesson(m); !ok || got != 2 {
		t.Errorf("CurrentLesson() = %d, %v; want 2", got, ok)
	}
}

func TestCalculateProgress(t *testing.T) {
	tr := newTracker(t)

	o := tr.CalculateProgress(passed(10))
	if o.Completed != 10 || o.Total != 30 || o.Percentage != 33 {
		t.Errorf("CalculateProgress() = %+v", o)
	}
	if o.CurrentLesson == nil || *o.CurrentLesson != 11 {
		t.Errorf("CurrentLesson = %v", o.CurrentLesson)
	}

	all := tr.CalculateProgress(passed(30))
	if all.Percentage != 100 || all.CurrentLesson != nil {
		t.Errorf("CalculateProgress(all) = %+v", all)
	}

	stray := passed(1)
	stray[99] = progress.LessonProgress{Completed: true, QuizPassed: true}
	if got := tr.CalculateProgress(stray).Completed; got != 1 {
		t.Errorf("stray records counted: Completed = %d", got)
	}
}

func TestUpdateLessonWithQuiz(t *testing.T) {
	t1 := fixedNow.Add(-time.Hour)
	t2 := fixedNow

	p := progress.LessonProgress{LessonID: 1, Completed: true}
	p = progress.UpdateLessonWithQuiz(p, quiz.Attempt{Score: 80, Passed: true, AttemptedAt: t1})
	if !p.QuizPassed || p.BestQuizScore != 80 || !p.QuizCompletedAt.Equal(t1) {
		t.Fatalf("after pass = %+v", p)
	}

	before := p
	p = progress.UpdateLessonWithQuiz(p, quiz.Attempt{Score: 60, Passed: false, AttemptedAt: t2})
	if p.BestQuizScore != 80 {
		t.Errorf("BestQuizScore = %d, want 80", p.BestQuizScore)
	}
	if p.QuizPassed {
		t.Error("QuizPassed should follow the latest attempt")
	}
	if !p.QuizCompletedAt.Equal(t1) {
		t.Errorf("QuizCompletedAt changed on failed attempt: %v", p.QuizCompletedAt)
	}
	if len(p.QuizAttempts) != 2 || len(before.QuizAttempts) != 1 {
		t.Errorf("attempt history = %d (input %d)", len(p.QuizAttempts), len(before.QuizAttempts))
	}
}

func TestUpdateLessonWithQuiz_DoesNotAliasHistory(t *testing.T) {
	base := progress.LessonProgress{QuizAttempts: make([]quiz.Attempt, 1, 4)}

	a := progress.UpdateLessonWithQuiz(base, quiz.Attempt{ID: "a"})
	b := progress.UpdateLessonWithQuiz(base, quiz.Attempt{ID: "b"})

	if a.QuizAttempts[1].ID != "a" || b.QuizAttempts[1].ID != "b" {
		t.Errorf("histories share storage: %q %q", a.QuizAttempts[1].ID, b.QuizAttempts[1].ID)
	}
}
