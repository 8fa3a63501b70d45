package notify_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/p-n-ai/speakeasy/internal/notify"
	"github.com/p-n-ai/speakeasy/internal/store"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLen    int
		wantParts int
	}{
		{"short", "Hello", 4096, 1},
		{"exact", "Hello", 5, 1},
		{"split-needed", "Hello World, this is a test", 10, 4},
		{"empty", "", 4096, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := notify.SplitMessage(tt.text, tt.maxLen)
			if len(parts) != tt.wantParts {
				t.Errorf("SplitMessage() = %d parts, want %d", len(parts), tt.wantParts)
			}
		})
	}
}

func TestSplitMessage_PartsNotExceedMax(t *testing.T) {
	text := "This is a longer message that needs to be split into multiple parts for Telegram delivery."
	maxLen := 20
	parts := notify.SplitMessage(text, maxLen)

	if strings.Join(parts, "") != text {
		t.Error("parts do not reassemble the text")
	}
	for i, part := range parts {
		if len(part) > maxLen {
			t.Errorf("part[%d] len=%d exceeds maxLen=%d: %q", i, len(part), maxLen, part)
		}
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("ñ", 10)
	parts := notify.SplitMessage(text, 5)
	for i, part := range parts {
		if !utf8.ValidString(part) || len(part) > 5 {
			t.Errorf("part[%d] = %q", i, part)
		}
	}
	if strings.Join(parts, "") != text {
		t.Error("parts do not reassemble the text")
	}
}

func TestNewTelegramChannel_Validation(t *testing.T) {
	if _, err := notify.NewTelegramChannel("", store.NewMemoryLinkStore()); err == nil {
		t.Error("NewTelegramChannel() should error with empty token")
	}
	if _, err := notify.NewTelegramChannel("test-token", nil); err == nil {
		t.Error("NewTelegramChannel() should error without a link store")
	}
}

type botServer struct {
	mu      sync.Mutex
	sent    []string
	polls   atomic.Int32
	updates string
}

func (b *botServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.sent = append(b.sent, r.Form.Get("chat_id")+"|"+r.Form.Get("text"))
		b.mu.Unlock()
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("GET /bot/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		if b.polls.Add(1) == 1 {
			fmt.Fprint(w, b.updates)
			return
		}
		<-r.Context().Done()
	})
	return mux
}

func (b *botServer) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.sent...)
}

func TestTelegramChannel_Notify(t *testing.T) {
	bot := &botServer{}
	srv := httptest.NewServer(bot.handler())
	defer srv.Close()

	links := store.NewMemoryLinkStore()
	ch, err := notify.NewTelegramChannel("token", links, notify.WithTelegramBaseURL(srv.URL+"/bot"))
	if err != nil {
		t.Fatalf("NewTelegramChannel() error = %v", err)
	}

	n := notify.Notification{UserID: "u1", Achievement: achievement()}
	if err := ch.Notify(t.Context(), n); !errors.Is(err, notify.ErrNoRecipient) {
		t.Fatalf("unlinked Notify() error = %v, want ErrNoRecipient", err)
	}

	if err := links.SaveLink(t.Context(), "u1", 99); err != nil {
		t.Fatal(err)
	}
	if err := ch.Notify(t.Context(), n); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	sent := bot.messages()
	if len(sent) != 1 || sent[0] != "99|"+n.Text() {
		t.Errorf("sent = %q", sent)
	}
}

func TestTelegramChannel_RunLinksChats(t *testing.T) {
	bot := &botServer{updates: `{"ok":true,"result":[
		{"update_id":10,"message":{"text":"hello","chat":{"id":1}}},
		{"update_id":11,"message":{"text":"/start","chat":{"id":2}}},
		{"update_id":12,"message":{"text":"/start@SpeakEasyBot learner-7","chat":{"id":3}}}
	]}`}
	srv := httptest.NewServer(bot.handler())
	defer srv.Close()

	links := store.NewMemoryLinkStore()
	ch, err := notify.NewTelegramChannel("token", links,
		notify.WithTelegramBaseURL(srv.URL+"/bot"),
		notify.WithPollTimeout(0),
	)
	if err != nil {
		t.Fatalf("NewTelegramChannel() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	waitFor(t, func() bool { return bot.polls.Load() >= 2 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	id, err := links.ChatID(t.Context(), "learner-7")
	if err != nil || id != 3 {
		t.Errorf("ChatID(learner-7) = %d, %v; want 3", id, err)
	}
	sent := bot.messages()
	if len(sent) != 2 {
		t.Fatalf("sent = %q, want usage reply and link confirmation", sent)
	}
	if !strings.HasPrefix(sent[0], "2|Send /start") {
		t.Errorf("usage reply = %q", sent[0])
	}
	if !strings.HasPrefix(sent[1], "3|Linked!") {
		t.Errorf("link reply = %q", sent[1])
	}
}
