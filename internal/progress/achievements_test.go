package progress_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/speakeasy/internal/progress"
)

func completedOn(days ...time.Time) progress.Map {
	m := progress.Map{}
	for i, d := range days {
		m[i+1] = progress.LessonProgress{LessonID: i + 1, Completed: true, QuizPassed: true, CompletedAt: d}
	}
	return m
}

func day(offset int, hour int) time.Time {
	y, mo, d := fixedNow.Date()
	return time.Date(y, mo, d+offset, hour, 0, 0, 0, time.UTC)
}

func TestCheckStreak(t *testing.T) {
	tr := newTracker(t)

	tests := []struct {
		name string
		m    progress.Map
		want int
	}{
		{"no completions", progress.Map{}, 0},
		{"started only", progress.Map{1: {Started: true}}, 0},
		{"single day", completedOn(day(0, 9)), 1},
		{"same day twice", completedOn(day(0, 9), day(0, 17)), 1},
		{"three consecutive days", completedOn(day(0, 9), day(-1, 23), day(-2, 1)), 3},
		{"gap breaks run", completedOn(day(0, 9), day(-1, 9), day(-3, 9), day(-4, 9)), 2},
		{"stale history still counts", completedOn(day(-30, 9), day(-31, 9)), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.CheckStreak(tt.m); got != tt.want {
				t.Errorf("CheckStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckStreak_UsesLocalCalendarDays(t *testing.T) {
	c := defaultCatalog(t)
	tokyo := time.FixedZone("JST", 9*3600)
	tr := progress.NewTracker(c, progress.WithLocation(tokyo))

	// 20:00 UTC on day -1 is already the next calendar day in Tokyo, so both
	// completions fall on the same local date.
	m := completedOn(day(-1, 20), day(0, 10))
	if got := tr.CheckStreak(m); got != 1 {
		t.Errorf("CheckStreak() = %d, want 1", got)
	}
	if got := newTracker(t).CheckStreak(m); got != 2 {
		t.Errorf("CheckStreak() in UTC = %d, want 2", got)
	}
}

func TestAchievements(t *testing.T) {
	tr := newTracker(t)

	if got := tr.Achievements(99, progress.Map{}); got != nil {
		t.Errorf("Achievements(99) = %v, want nil", got)
	}

	m := passed(1)
	got := tr.Achievements(1, m)
	if len(got) != 1 || got[0].Type != progress.LessonComplete {
		t.Fatalf("Achievements(1) = %+v", got)
	}
	if got[0].Title != "Completed: Sound System & Alphabet" || got[0].Icon != "🎯" {
		t.Errorf("lesson achievement = %+v", got[0])
	}
}

func TestAchievements_Order(t *testing.T) {
	tr := newTracker(t)

	var days []time.Time
	for i := range 8 {
		days = append(days, day(-i, 12))
	}
	m := completedOn(days...)
	p := m[8]
	p.BestQuizScore = 100
	m[8] = p

	got := tr.Achievements(8, m)
	want := []progress.AchievementType{
		progress.LessonComplete,
		progress.PhaseComplete,
		progress.PerfectQuiz,
		progress.Streak,
	}
	if len(got) != len(want) {
		t.Fatalf("Achievements(8) = %+v", got)
	}
	for i, a := range got {
		if a.Type != want[i] {
			t.Errorf("achievement[%d] = %s, want %s", i, a.Type, want[i])
		}
	}
	if got[1].Title != "Phase 1 Complete!" || got[1].Description != "You've mastered Foundation!" {
		t.Errorf("phase achievement = %+v", got[1])
	}
	if got[2].Title != "Perfect Score!" || got[2].Description != "100% on Colors, Adjectives & Descriptions quiz" {
		t.Errorf("perfect achievement = %+v", got[2])
	}
	if got[3].Title != "7-Day Streak!" {
		t.Errorf("streak achievement = %+v", got[3])
	}
}

func TestAchievements_PhaseIncomplete(t *testing.T) {
	tr := newTracker(t)

	m := passed(7)
	for _, a := range tr.Achievements(7, m) {
		if a.Type == progress.PhaseComplete {
			t.Error("phase 1 is not complete without lesson 8")
		}
	}
}
