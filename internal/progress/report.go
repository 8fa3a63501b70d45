package progress

import (
	"slices"
	"time"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
)

// PhaseSummary is the progress within one phase.
type PhaseSummary struct {
	Phase      int    `json:"phase"`
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// PhaseProgress summarises one phase.
func (t *Tracker) PhaseProgress(phase int, m Map) PhaseSummary {
	lessons := t.catalog.LessonsByPhase(phase)
	done := t.countDone(m, lessons)
	return PhaseSummary{
		Phase:      phase,
		Name:       curriculum.PhaseName(phase),
		Percentage: percent(done, len(lessons)),
		Completed:  done,
		Total:      len(lessons),
	}
}

// PhaseLessons is one phase of the curriculum with its lessons.
type PhaseLessons struct {
	Phase   int                 `json:"phase"`
	Name    string              `json:"name"`
	Lessons []curriculum.Lesson `json:"lessons"`
}

// Curriculum returns the lessons grouped by phase.
func (t *Tracker) Curriculum() []PhaseLessons {
	out := make([]PhaseLessons, 0, curriculum.NumPhases)
	for phase := 1; phase <= curriculum.NumPhases; phase++ {
		out = append(out, PhaseLessons{
			Phase:   phase,
			Name:    curriculum.PhaseName(phase),
			Lessons: t.catalog.LessonsByPhase(phase),
		})
	}
	return out
}

// Recommendation reasons.
const (
	ReasonNextInSequence  = "next_in_sequence"
	ReasonReviewWeakAreas = "review_weak_areas"
)

// Recommendation is the lesson a learner should take next.
type Recommendation struct {
	LessonID   int      `json:"lessonId"`
	Reason     string   `json:"reason"`
	WeakTopics []string `json:"weakTopics,omitempty"`
}

// RecommendedLesson suggests the current lesson, or when there is none, the
// first lesson covering one of the weak topics.
func (t *Tracker) RecommendedLesson(m Map, weakAreas []string) (Recommendation, bool) {
	if id, ok := t.CurrentLesson(m); ok {
		return Recommendation{LessonID: id, Reason: ReasonNextInSequence}, true
	}
	if len(weakAreas) == 0 {
		return Recommendation{}, false
	}
	for _, l := range t.catalog.Lessons() {
		if slices.ContainsFunc(l.Topics, func(topic string) bool { return slices.Contains(weakAreas, topic) }) {
			return Recommendation{
				LessonID:   l.ID,
				Reason:     ReasonReviewWeakAreas,
				WeakTopics: weakAreas,
			}, true
		}
	}
	return Recommendation{}, false
}

// LessonsCompletedThisWeek counts records completed within the last 7 days.
func (t *Tracker) LessonsCompletedThisWeek(m Map) int {
	cutoff := t.now().AddDate(0, 0, -7)
	n := 0
	for _, p := range m {
		if !p.CompletedAt.IsZero() && !p.CompletedAt.Before(cutoff) {
			n++
		}
	}
	return n
}

// CompletedLesson is one row of the report.
type CompletedLesson struct {
	LessonID    int       `json:"lessonId"`
	Title       string    `json:"title"`
	Score       int       `json:"score"`
	TimeSpent   int       `json:"timeSpent"`
	CompletedAt time.Time `json:"completedAt"`
}

// Statistics are the aggregate numbers of the report.
type Statistics struct {
	TotalTimeSpent   int `json:"totalTimeSpent"`
	AverageQuizScore int `json:"averageQuizScore"`
	Streak           int `json:"streak"`
	LessonsThisWeek  int `json:"lessonsThisWeek"`
}

// Report is an exportable snapshot of a learner's progress.
type Report struct {
	TargetLanguage   string            `json:"targetLanguage"`
	Overall          Overview          `json:"overall"`
	Phases           []PhaseSummary    `json:"phases"`
	CompletedLessons []CompletedLesson `json:"completedLessons"`
	Statistics       Statistics        `json:"statistics"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// Report builds the progress report for a learner.
func (t *Tracker) Report(m Map, targetLanguage string) Report {
	r := Report{
		TargetLanguage:   targetLanguage,
		Overall:          t.CalculateProgress(m),
		CompletedLessons: []CompletedLesson{},
		GeneratedAt:      t.now(),
	}
	for phase := 1; phase <= curriculum.NumPhases; phase++ {
		r.Phases = append(r.Phases, t.PhaseProgress(phase, m))
	}

	scoreSum := 0
	for _, l := range t.catalog.Lessons() {
		p, ok := m[l.ID]
		if !ok || !p.Done() {
			continue
		}
		r.CompletedLessons = append(r.CompletedLessons, CompletedLesson{
			LessonID:    l.ID,
			Title:       l.Title,
			Score:       p.BestQuizScore,
			TimeSpent:   p.TimeSpent,
			CompletedAt: p.CompletedAt,
		})
		r.Statistics.TotalTimeSpent += p.TimeSpent
		scoreSum += p.BestQuizScore
	}
	if n := len(r.CompletedLessons); n > 0 {
		r.Statistics.AverageQuizScore = percent(scoreSum, n*100)
	}
	r.Statistics.Streak = t.CheckStreak(m)
	r.Statistics.LessonsThisWeek = t.LessonsCompletedThisWeek(m)
	return r
}
