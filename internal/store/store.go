// Package store persists learner progress, learning events and chat links.
// The progress core never performs I/O; the API layer loads a learner's map
// from a ProgressStore, applies tracker operations and saves the records that
// changed.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/p-n-ai/speakeasy/internal/progress"
)

const dbTimeout = 5 * time.Second

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ProgressStore persists per-lesson progress records.
type ProgressStore interface {
	// Load returns every record of a learner. Unknown learners get an empty
	// map, not an error.
	Load(ctx context.Context, userID string) (progress.Map, error)
	// Save replaces the record for p.LessonID.
	Save(ctx context.Context, userID string, p progress.LessonProgress) error
}

// MemoryStore is an in-memory ProgressStore.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]progress.Map
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]progress.Map)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (progress.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(progress.Map, len(s.users[userID]))
	for id, p := range s.users[userID] {
		out[id] = cloneProgress(p)
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, p progress.LessonProgress) error {
	if err := validateRecord(userID, p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.users[userID]
	if !ok {
		m = make(progress.Map)
		s.users[userID] = m
	}
	m[p.LessonID] = cloneProgress(p)
	return nil
}

func validateRecord(userID string, p progress.LessonProgress) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.LessonID <= 0 {
		return fmt.Errorf("invalid lesson id %d", p.LessonID)
	}
	return nil
}

func cloneProgress(p progress.LessonProgress) progress.LessonProgress {
	p.QuizAttempts = slices.Clone(p.QuizAttempts)
	for i := range p.QuizAttempts {
		p.QuizAttempts[i].Answers = maps.Clone(p.QuizAttempts[i].Answers)
	}
	return p
}
