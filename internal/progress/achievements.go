package progress

import (
	"fmt"
	"slices"
	"time"

	"github.com/p-n-ai/speakeasy/internal/curriculum"
)

// StreakGoal is the streak length that earns the streak achievement.
const StreakGoal = 7

// AchievementType identifies an achievement.
type AchievementType string

const (
	LessonComplete AchievementType = "lesson_complete"
	PhaseComplete  AchievementType = "phase_complete"
	PerfectQuiz    AchievementType = "perfect_quiz"
	Streak         AchievementType = "streak"
)

// Achievement is a milestone shown to the learner.
type Achievement struct {
	Type        AchievementType `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
}

// CheckStreak counts consecutive calendar days with at least one completion,
// walking back from the most recent completion day.
//
// The run is not anchored to the current date: a history whose last
// completion was weeks ago still reports the length of that last run.
func (t *Tracker) CheckStreak(m Map) int {
	days := t.completionDays(m)
	if len(days) == 0 {
		return 0
	}
	streak := 1
	for i := 0; i < len(days)-1; i++ {
		if dayDiff(days[i], days[i+1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// completionDays returns the distinct local completion dates, newest first.
// Each date is normalised to midnight UTC so differences are whole days.
func (t *Tracker) completionDays(m Map) []time.Time {
	var days []time.Time
	for _, p := range m {
		if p.CompletedAt.IsZero() {
			continue
		}
		y, mo, d := p.CompletedAt.In(t.loc).Date()
		days = append(days, time.Date(y, mo, d, 0, 0, 0, 0, time.UTC))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	return slices.CompactFunc(days, time.Time.Equal)
}

func dayDiff(later, earlier time.Time) int {
	return int(later.Sub(earlier) / (24 * time.Hour))
}

// Achievements lists what completing a lesson has earned, in a fixed order:
// lesson, phase, perfect quiz, streak. It returns nil for an unknown lesson.
func (t *Tracker) Achievements(lessonID int, m Map) []Achievement {
	l, ok := t.catalog.Lesson(lessonID)
	if !ok {
		return nil
	}

	out := []Achievement{{
		Type:        LessonComplete,
		Title:       "Completed: " + l.Title,
		Description: l.Unlocks,
		Icon:        "🎯",
	}}

	if t.PhaseProgress(l.Phase, m).Percentage == 100 {
		out = append(out, Achievement{
			Type:        PhaseComplete,
			Title:       fmt.Sprintf("Phase %d Complete!", l.Phase),
			Description: fmt.Sprintf("You've mastered %s!", curriculum.PhaseName(l.Phase)),
			Icon:        "🏆",
		})
	}

	if p, ok := m[lessonID]; ok && p.BestQuizScore == 100 {
		out = append(out, Achievement{
			Type:        PerfectQuiz,
			Title:       "Perfect Score!",
			Description: fmt.Sprintf("100%% on %s quiz", l.Title),
			Icon:        "⭐",
		})
	}

	if t.CheckStreak(m) >= StreakGoal {
		out = append(out, Achievement{
			Type:        Streak,
			Title:       fmt.Sprintf("%d-Day Streak!", StreakGoal),
			Description: "You're on fire! Keep it up!",
			Icon:        "🔥",
		})
	}
	return out
}
