package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/p-n-ai/speakeasy/internal/store"
)

const (
	telegramMaxMessageLen = 4096
	telegramAPI           = "https://api.telegram.org"
)

const (
	replyLinked = "Linked! Achievement notifications for %s will arrive in this chat."
	replyUsage  = "Send /start <your-user-id> to receive achievement notifications here."
)

// LinkStore maps learners to Telegram chats.
type LinkStore interface {
	SaveLink(ctx context.Context, userID string, chatID int64) error
	ChatID(ctx context.Context, userID string) (int64, error)
}

// TelegramChannel sends notifications through the Telegram Bot API and links
// chats to learners from "/start <user-id>" commands.
type TelegramChannel struct {
	baseURL     string
	client      *http.Client
	links       LinkStore
	offset      int
	pollTimeout int
	retryDelay  time.Duration
}

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithTelegramBaseURL replaces the Bot API endpoint, token included.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramChannel) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramHTTPClient sets the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramChannel) { t.client = c }
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) TelegramOption {
	return func(t *TelegramChannel) { t.pollTimeout = seconds }
}

// NewTelegramChannel creates a Telegram channel adapter.
func NewTelegramChannel(token string, links LinkStore, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (SPEAKEASY_TELEGRAM_BOT_TOKEN)")
	}
	if links == nil {
		return nil, fmt.Errorf("telegram link store is required")
	}
	t := &TelegramChannel{
		baseURL: telegramAPI + "/bot" + token,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		links:       links,
		pollTimeout: 30,
		retryDelay:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Notify sends n to the learner's linked chat.
func (t *TelegramChannel) Notify(ctx context.Context, n Notification) error {
	chatID, err := t.links.ChatID(ctx, n.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoRecipient
	}
	if err != nil {
		return fmt.Errorf("looking up telegram chat: %w", err)
	}
	return t.sendText(ctx, chatID, n.Text())
}

func (t *TelegramChannel) sendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {strconv.FormatInt(chatID, 10)},
			"text":    {part},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", strings.NewReader(params.Encode()))
		if err != nil {
			return fmt.Errorf("creating sendMessage request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram API error %d", resp.StatusCode)
		}
	}
	return nil
}

// Run long-polls for updates until ctx is done, linking chats from /start
// commands. It always returns ctx.Err().
func (t *TelegramChannel) Run(ctx context.Context) error {
	slog.Info("Telegram long-polling started")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Telegram getUpdates error", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			t.offset = u.UpdateID + 1
			if err := t.handleUpdate(ctx, u); err != nil {
				slog.Warn("Telegram update failed", "update_id", u.UpdateID, "error", err)
			}
		}
	}
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, u tgUpdate) error {
	if u.Message == nil {
		return nil
	}
	userID, ok := parseStart(u.Message.Text)
	if !ok {
		return nil
	}
	chatID := u.Message.Chat.ID
	if userID == "" {
		return t.sendText(ctx, chatID, replyUsage)
	}
	if err := t.links.SaveLink(ctx, userID, chatID); err != nil {
		return fmt.Errorf("saving telegram link: %w", err)
	}
	slog.Info("telegram chat linked", "user_id", userID, "chat_id", chatID)
	return t.sendText(ctx, chatID, fmt.Sprintf(replyLinked, userID))
}

// parseStart reports whether text is a /start command and returns its
// argument. "/start@BotName arg" is accepted.
func parseStart(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	if cmd != "/start" {
		return "", false
	}
	if len(fields) < 2 {
		return "", true
	}
	return fields[1], true
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{
		"offset":          {strconv.Itoa(t.offset)},
		"timeout":         {strconv.Itoa(t.pollTimeout)},
		"allowed_updates": {`["message"]`},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	return result.Result, nil
}

// Telegram API types (minimal)
type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	Text string `json:"text"`
	Chat tgChat `json:"chat"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// newline and space boundaries and never cutting a UTF-8 sequence.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		cutAt := maxLen
		for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
			cutAt--
		}
		if idx := strings.LastIndex(text[:cutAt], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:cutAt], " "); idx > 0 {
			cutAt = idx + 1
		}
		if cutAt == 0 {
			_, size := utf8.DecodeRuneInString(text)
			cutAt = size
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}
