package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryLinkStore keeps learner to Telegram chat links in memory.
type MemoryLinkStore struct {
	mu    sync.RWMutex
	chats map[string]int64
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{chats: make(map[string]int64)}
}

func (s *MemoryLinkStore) SaveLink(_ context.Context, userID string, chatID int64) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	s.mu.Lock()
	s.chats[userID] = chatID
	s.mu.Unlock()
	return nil
}

func (s *MemoryLinkStore) ChatID(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.chats[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// PostgresLinkStore keeps links in the telegram_links table.
type PostgresLinkStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLinkStore(pool *pgxpool.Pool) *PostgresLinkStore {
	return &PostgresLinkStore{pool: pool}
}

func (s *PostgresLinkStore) SaveLink(ctx context.Context, userID string, chatID int64) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO telegram_links (user_id, chat_id, linked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET chat_id = EXCLUDED.chat_id, linked_at = EXCLUDED.linked_at`,
		userID, chatID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save telegram link: %w", err)
	}
	return nil
}

func (s *PostgresLinkStore) ChatID(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var chatID int64
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id FROM telegram_links WHERE user_id = $1`, userID,
	).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query telegram link: %w", err)
	}
	return chatID, nil
}
