package progress_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/speakeasy/internal/progress"
)

func TestPhaseProgress(t *testing.T) {
	tr := newTracker(t)

	got := tr.PhaseProgress(1, passed(4))
	if got.Total != 8 || got.Completed != 4 || got.Percentage != 50 || got.Name != "Foundation" {
		t.Errorf("PhaseProgress(1) = %+v", got)
	}
	if got := tr.PhaseProgress(2, passed(4)); got.Completed != 0 || got.Percentage != 0 {
		t.Errorf("PhaseProgress(2) = %+v", got)
	}
	if got := tr.PhaseProgress(9, passed(30)); got.Total != 0 || got.Percentage != 0 {
		t.Errorf("PhaseProgress(9) = %+v", got)
	}
}

func TestCurriculum(t *testing.T) {
	tr := newTracker(t)

	phases := tr.Curriculum()
	if len(phases) != 4 {
		t.Fatalf("Curriculum() phases = %d", len(phases))
	}
	total := 0
	for i, p := range phases {
		if p.Phase != i+1 || p.Name == "" {
			t.Errorf("phase %d = %+v", i, p)
		}
		total += len(p.Lessons)
	}
	if total != 30 {
		t.Errorf("lessons across phases = %d", total)
	}
}

func TestRecommendedLesson(t *testing.T) {
	tr := newTracker(t)

	rec, ok := tr.RecommendedLesson(passed(2), nil)
	if !ok || rec.LessonID != 3 || rec.Reason != progress.ReasonNextInSequence {
		t.Errorf("RecommendedLesson() = %+v, %v", rec, ok)
	}

	rec, ok = tr.RecommendedLesson(passed(30), []string{"weather"})
	if !ok || rec.Reason != progress.ReasonReviewWeakAreas || rec.LessonID != 12 {
		t.Errorf("RecommendedLesson(weather) = %+v, %v", rec, ok)
	}

	if _, ok := tr.RecommendedLesson(passed(30), nil); ok {
		t.Error("RecommendedLesson() with nothing left should be empty")
	}
	if _, ok := tr.RecommendedLesson(passed(30), []string{"astrophysics"}); ok {
		t.Error("RecommendedLesson(unknown topic) should be empty")
	}
}

func TestLessonsCompletedThisWeek(t *testing.T) {
	tr := newTracker(t)

	m := completedOn(fixedNow.Add(-time.Hour), fixedNow.AddDate(0, 0, -6), fixedNow.AddDate(0, 0, -8))
	m[10] = progress.LessonProgress{Started: true}
	if got := tr.LessonsCompletedThisWeek(m); got != 2 {
		t.Errorf("LessonsCompletedThisWeek() = %d, want 2", got)
	}
}

func TestReport(t *testing.T) {
	tr := newTracker(t)

	m := completedOn(day(0, 9), day(-1, 9), day(-2, 9))
	for id, score := range map[int]int{1: 90, 2: 75, 3: 100} {
		p := m[id]
		p.BestQuizScore = score
		p.TimeSpent = 300
		m[id] = p
	}
	m[4] = progress.LessonProgress{Started: true, Completed: true, CompletedAt: day(-10, 9)}

	r := tr.Report(m, "Spanish")
	if r.TargetLanguage != "Spanish" || !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("report header = %q %v", r.TargetLanguage, r.GeneratedAt)
	}
	if r.Overall.Completed != 3 || len(r.Phases) != 4 {
		t.Errorf("overall = %+v, phases = %d", r.Overall, len(r.Phases))
	}
	if len(r.CompletedLessons) != 3 || r.CompletedLessons[0].LessonID != 1 || r.CompletedLessons[2].LessonID != 3 {
		t.Fatalf("completed lessons = %+v", r.CompletedLessons)
	}
	want := progress.Statistics{TotalTimeSpent: 900, AverageQuizScore: 88, Streak: 3, LessonsThisWeek: 3}
	if r.Statistics != want {
		t.Errorf("statistics = %+v, want %+v", r.Statistics, want)
	}
}

func TestReport_Empty(t *testing.T) {
	tr := newTracker(t)

	r := tr.Report(progress.Map{}, "French")
	if r.CompletedLessons == nil || len(r.CompletedLessons) != 0 {
		t.Errorf("CompletedLessons = %v", r.CompletedLessons)
	}
	if r.Statistics != (progress.Statistics{}) {
		t.Errorf("statistics = %+v", r.Statistics)
	}
}
