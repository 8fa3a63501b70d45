package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/p-n-ai/speakeasy/internal/ai"
	"github.com/p-n-ai/speakeasy/internal/content"
	"github.com/p-n-ai/speakeasy/internal/curriculum"
	"github.com/p-n-ai/speakeasy/internal/store"
)

// RoleplayRequest is the body of POST /v1/lessons/{id}/roleplay.
type RoleplayRequest struct {
	Language string         `json:"language" validate:"required,max=64"`
	Level    string         `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	History  []content.Turn `json:"history" validate:"max=50,dive"`
	Message  string         `json:"message" validate:"required,max=2000"`
}

// QuizResponse is a lesson quiz with its maximum score.
type QuizResponse struct {
	curriculum.Quiz
	TotalPoints int `json:"totalPoints"`
}

func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"totalLessons": s.catalog.TotalLessons(),
		"phases":       s.tracker.Curriculum(),
		"languages":    s.catalog.Languages(),
	})
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lc, ok := s.catalog.LessonContent(id, r.URL.Query().Get("lang"))
	if !ok {
		respondError(w, r, http.StatusNotFound, "lesson not found")
		return
	}
	respondJSON(w, http.StatusOK, lc)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q, ok := s.catalog.Quiz(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "quiz not found")
		return
	}
	respondJSON(w, http.StatusOK, QuizResponse{Quiz: q, TotalPoints: q.TotalPoints()})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	lc, err := s.generator.GenerateLessonContent(s.aiContext(r), id, q.Get("lang"), q.Get("level"))
	if err != nil {
		s.respondGenerationError(w, r, err)
		return
	}
	if user := requester(r); user != "" {
		s.logEvent(r.Context(), store.Event{
			UserID:   user,
			Type:     store.EventContentGenerated,
			LessonID: id,
			Data:     map[string]any{"source": string(lc.Source), "language": lc.Language},
		})
	}
	respondJSON(w, http.StatusOK, lc)
}

func (s *Server) handleRoleplay(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	sc, err := s.generator.RoleplayScenario(id, q.Get("lang"), q.Get("level"))
	if err != nil {
		s.respondGenerationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

func (s *Server) handleRoleplayReply(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req RoleplayRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.generator.RoleplayReply(s.aiContext(r), id, req.Language, req.Level, req.History, req.Message)
	if err != nil {
		s.respondGenerationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleDynamicQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := lessonID(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	questions, err := s.generator.DynamicQuiz(s.aiContext(r), id, q.Get("lang"), q.Get("level"))
	if err != nil {
		s.respondGenerationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"lessonId": id, "questions": questions})
}

// aiContext carries the requesting learner so token budgets apply.
func (s *Server) aiContext(r *http.Request) context.Context {
	if user := requester(r); user != "" {
		return ai.WithUser(r.Context(), user)
	}
	return r.Context()
}

func (s *Server) respondGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, curriculum.ErrLessonNotFound):
		respondError(w, r, http.StatusNotFound, "lesson not found")
	case errors.Is(err, content.ErrNoRoleplay):
		respondError(w, r, http.StatusNotFound, "lesson has no roleplay scenario")
	case errors.Is(err, ai.ErrBudgetExceeded):
		respondErrorAndLog(w, r, http.StatusTooManyRequests, "daily AI budget exceeded", err)
	case errors.Is(err, ai.ErrNoProvider):
		respondErrorAndLog(w, r, http.StatusServiceUnavailable, "no AI provider configured", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondErrorAndLog(w, r, http.StatusServiceUnavailable, "request cancelled", err)
	case errors.Is(err, content.ErrInvalidResponse):
		respondErrorAndLog(w, r, http.StatusBadGateway, "the AI service returned unusable output", err)
	default:
		respondErrorAndLog(w, r, http.StatusBadGateway, "content generation failed", err)
	}
}
