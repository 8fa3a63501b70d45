package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/speakeasy/internal/progress"
	"github.com/p-n-ai/speakeasy/internal/quiz"
)

// PostgresStore is a PostgreSQL-backed ProgressStore. One row holds one
// learner's record for one lesson; quiz attempts live in a JSONB column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an already migrated database.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (progress.Map, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT lesson_id, started, started_at, completed, completed_at, time_spent_seconds,
		        quiz_passed, best_quiz_score, quiz_attempts, quiz_completed_at
		 FROM lesson_progress
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	m := make(progress.Map)
	for rows.Next() {
		var (
			p                                       progress.LessonProgress
			startedAt, completedAt, quizCompletedAt *time.Time
			attempts                                []byte
		)
		if err := rows.Scan(
			&p.LessonID,
			&p.Started,
			&startedAt,
			&p.Completed,
			&completedAt,
			&p.TimeSpent,
			&p.QuizPassed,
			&p.BestQuizScore,
			&attempts,
			&quizCompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.StartedAt = timeOrZero(startedAt)
		p.CompletedAt = timeOrZero(completedAt)
		p.QuizCompletedAt = timeOrZero(quizCompletedAt)
		if err := json.Unmarshal(attempts, &p.QuizAttempts); err != nil {
			return nil, fmt.Errorf("decode quiz attempts for lesson %d: %w", p.LessonID, err)
		}
		m[p.LessonID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID string, p progress.LessonProgress) error {
	if err := validateRecord(userID, p); err != nil {
		return err
	}
	attempts := p.QuizAttempts
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	data, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("marshal quiz attempts: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, started, started_at, completed, completed_at,
		                              time_spent_seconds, quiz_passed, best_quiz_score, quiz_attempts,
		                              quiz_completed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, now())
		 ON CONFLICT (user_id, lesson_id) DO UPDATE SET
		     started = EXCLUDED.started,
		     started_at = EXCLUDED.started_at,
		     completed = EXCLUDED.completed,
		     completed_at = EXCLUDED.completed_at,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     quiz_passed = EXCLUDED.quiz_passed,
		     best_quiz_score = EXCLUDED.best_quiz_score,
		     quiz_attempts = EXCLUDED.quiz_attempts,
		     quiz_completed_at = EXCLUDED.quiz_completed_at,
		     updated_at = now()`,
		userID,
		p.LessonID,
		p.Started,
		nullIfZeroTime(p.StartedAt),
		p.Completed,
		nullIfZeroTime(p.CompletedAt),
		p.TimeSpent,
		p.QuizPassed,
		p.BestQuizScore,
		string(data),
		nullIfZeroTime(p.QuizCompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
