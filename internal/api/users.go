package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/p-n-ai/speakeasy/internal/export"
	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
	"github.com/p-n-ai/speakeasy/internal/progress"
	"github.com/p-n-ai/speakeasy/internal/quiz"
	"github.com/p-n-ai/speakeasy/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CompleteRequest is the body of the lesson completion endpoint.
type CompleteRequest struct {
	TimeSpent int `json:"timeSpent" validate:"gte=0,lte=86400"`
}

// SubmitQuizRequest is the body of the quiz submission endpoint.
type SubmitQuizRequest struct {
	Answers        map[string]string `json:"answers" validate:"required"`
	CorrectAnswers map[string]string `json:"correctAnswers" validate:"required,min=1"`
}

// QuizResult is the reply to a quiz submission.
type QuizResult struct {
	Attempt      quiz.Attempt            `json:"attempt"`
	Progress     progress.LessonProgress `json:"progress"`
	Achievements []progress.Achievement  `json:"achievements"`
	Overview     progress.Overview       `json:"overview"`
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser validates the {user} path value.
func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user")
		if err := s.validate.Var(userID, "required,max=128,printascii"); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid user id")
			return
		}
		h(w, r, userID)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, userID string) {
	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"overview": s.tracker.CalculateProgress(m),
		"streak":   s.tracker.CheckStreak(m),
		"lessons":  m,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.lessonForUser(w, r)
	if !ok {
		return
	}
	defer s.lockUser(userID)()

	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return
	}
	if !s.tracker.IsLessonUnlocked(id, m) {
		respondError(w, r, http.StatusForbidden, "lesson is locked")
		return
	}
	if existing, ok := m[id]; ok && existing.Started {
		respondJSON(w, http.StatusOK, existing)
		return
	}

	// Completion and quiz history recorded before the lesson was formally
	// started stay on the record.
	started := s.tracker.StartLesson(id)
	rec := m[id]
	rec.LessonID = started.LessonID
	rec.Started = started.Started
	rec.StartedAt = started.StartedAt
	if err := s.store.Save(r.Context(), userID, rec); err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to save progress", err)
		return
	}
	s.logEvent(r.Context(), store.Event{UserID: userID, Type: store.EventLessonStarted, LessonID: id})
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.lessonForUser(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer s.lockUser(userID)()

	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return
	}
	if !s.tracker.IsLessonUnlocked(id, m) {
		respondError(w, r, http.StatusForbidden, "lesson is locked")
		return
	}

	wasDone := m[id].Done()
	rec := m.Merge(s.tracker.CompleteLesson(id, req.TimeSpent))
	if err := s.store.Save(r.Context(), userID, rec); err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to save progress", err)
		return
	}
	s.logEvent(r.Context(), store.Event{
		UserID:   userID,
		Type:     store.EventLessonCompleted,
		LessonID: id,
		Data:     map[string]any{"time_spent": req.TimeSpent},
	})

	achievements := s.unlock(r.Context(), userID, id, wasDone, rec, m)
	respondJSON(w, http.StatusOK, map[string]any{
		"progress":     rec,
		"achievements": achievements,
		"overview":     s.tracker.CalculateProgress(m),
	})
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := s.lessonForUser(w, r)
	if !ok {
		return
	}
	var req SubmitQuizRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer s.lockUser(userID)()

	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return
	}
	if !s.tracker.IsLessonUnlocked(id, m) {
		respondError(w, r, http.StatusForbidden, "lesson is locked")
		return
	}

	attempt, err := s.scorer.RecordAttempt(id, req.Answers, req.CorrectAnswers)
	if errors.Is(err, quiz.ErrQuizNotFound) {
		respondError(w, r, http.StatusNotFound, "quiz not found")
		return
	}
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to grade quiz", err)
		return
	}

	before := m[id]
	rec := progress.UpdateLessonWithQuiz(before, attempt)
	rec.LessonID = id
	if err := s.store.Save(r.Context(), userID, rec); err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to save progress", err)
		return
	}
	m[id] = rec

	outcome := "failed"
	if attempt.Passed {
		outcome = "passed"
	}
	metrics.QuizAttempts.WithLabelValues(outcome).Inc()
	s.logEvent(r.Context(), store.Event{
		UserID:   userID,
		Type:     store.EventQuizAttempted,
		LessonID: id,
		Data:     map[string]any{"attempt_id": attempt.ID, "score": attempt.Score, "passed": attempt.Passed},
	})

	respondJSON(w, http.StatusOK, QuizResult{
		Attempt:      attempt,
		Progress:     rec,
		Achievements: s.unlock(r.Context(), userID, id, before.Done(), rec, m),
		Overview:     s.tracker.CalculateProgress(m),
	})
}

// unlock evaluates achievements when a lesson has just become done and
// announces them. m must already contain rec.
func (s *Server) unlock(ctx context.Context, userID string, lessonID int, wasDone bool, rec progress.LessonProgress, m progress.Map) []progress.Achievement {
	if wasDone || !rec.Done() {
		return []progress.Achievement{}
	}
	achievements := s.tracker.Achievements(lessonID, m)
	for _, a := range achievements {
		s.logEvent(ctx, store.Event{
			UserID:   userID,
			Type:     store.EventAchievementUnlocked,
			LessonID: lessonID,
			Data:     map[string]any{"achievement": string(a.Type)},
		})
	}
	if s.notifier != nil && len(achievements) > 0 {
		if err := s.notifier.NotifyAll(context.WithoutCancel(ctx), userID, lessonID, achievements); err != nil {
			slog.Warn("achievement notification incomplete", "user_id", userID, "lesson_id", lessonID, "error", err)
		}
	}
	return achievements
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, userID string) {
	report, ok := s.report(w, r, userID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request, userID string) {
	report, ok := s.report(w, r, userID)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteProgressXLSX(&buf, report); err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to build report", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="speakeasy-progress-%s.xlsx"`, userID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write report", "user_id", userID, "error", err)
	}
}

func (s *Server) report(w http.ResponseWriter, r *http.Request, userID string) (progress.Report, bool) {
	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return progress.Report{}, false
	}
	lang := s.catalog.DisplayLanguage(r.URL.Query().Get("lang"))
	return s.tracker.Report(m, lang), true
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request, userID string) {
	m, err := s.store.Load(r.Context(), userID)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load progress", err)
		return
	}
	var weak []string
	for _, area := range strings.Split(r.URL.Query().Get("weak"), ",") {
		if area = strings.TrimSpace(area); area != "" {
			weak = append(weak, area)
		}
	}
	rec, ok := s.tracker.RecommendedLesson(m, weak)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"recommendation": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"recommendation": rec})
}

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// handleActivity lists the learner's most recent learning events.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, userID string) {
	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			respondError(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxActivityLimit))
			return
		}
		limit = n
	}
	reader := s.events.(store.EventReader)
	events, err := reader.Recent(r.Context(), userID, limit)
	if err != nil {
		respondErrorAndLog(w, r, http.StatusInternalServerError, "failed to load activity", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.hub.ServeUser(w, r, userID); err != nil {
		slog.Debug("websocket closed", "user_id", userID, "error", err)
	}
}

// lessonForUser parses {id} and rejects lessons outside the catalog.
func (s *Server) lessonForUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if _, ok := s.catalog.Lesson(id); !ok {
		respondError(w, r, http.StatusNotFound, "lesson not found")
		return 0, false
	}
	return id, true
}

func (s *Server) logEvent(ctx context.Context, e store.Event) {
	if err := s.events.LogEvent(ctx, e); err != nil {
		slog.Warn("failed to log event", "type", e.Type, "user_id", e.UserID, "error", err)
	}
}
