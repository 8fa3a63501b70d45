package notify_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/p-n-ai/speakeasy/internal/notify"
	"github.com/p-n-ai/speakeasy/internal/progress"
)

func achievement() progress.Achievement {
	return progress.Achievement{
		Type:        progress.LessonComplete,
		Title:       "Lesson Complete!",
		Description: "You completed lesson 1",
		Icon:        "🎉",
	}
}

func TestGateway_Register(t *testing.T) {
	gw := notify.NewGateway()
	gw.Register("websocket", &notify.MockChannel{})
	gw.Register("telegram", &notify.MockChannel{})

	if !gw.HasChannel("telegram") {
		t.Error("HasChannel(telegram) should be true after Register")
	}
	if gw.HasChannel("email") {
		t.Error("HasChannel(email) should be false")
	}
	if got := gw.Channels(); !slices.Equal(got, []string{"telegram", "websocket"}) {
		t.Errorf("Channels() = %v", got)
	}
}

func TestGateway_Notify_FansOut(t *testing.T) {
	gw := notify.NewGateway()
	a, b := &notify.MockChannel{}, &notify.MockChannel{}
	gw.Register("a", a)
	gw.Register("b", b)

	err := gw.Notify(t.Context(), notify.Notification{UserID: "u1", LessonID: 1, Achievement: achievement()})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	for name, ch := range map[string]*notify.MockChannel{"a": a, "b": b} {
		sent := ch.Sent()
		if len(sent) != 1 {
			t.Fatalf("%s: sent %d, want 1", name, len(sent))
		}
		if sent[0].CreatedAt.IsZero() {
			t.Errorf("%s: CreatedAt not set", name)
		}
	}
}

func TestGateway_Notify_Errors(t *testing.T) {
	boom := errors.New("boom")
	gw := notify.NewGateway()
	ok := &notify.MockChannel{}
	gw.Register("ok", ok)
	gw.Register("offline", &notify.MockChannel{Err: notify.ErrNoRecipient})
	gw.Register("broken", &notify.MockChannel{Err: boom})

	err := gw.Notify(t.Context(), notify.Notification{UserID: "u1", Achievement: achievement()})
	if !errors.Is(err, boom) {
		t.Fatalf("Notify() error = %v, want boom", err)
	}
	if errors.Is(err, notify.ErrNoRecipient) {
		t.Error("a missing recipient should not be reported as a failure")
	}
	if len(ok.Sent()) != 1 {
		t.Error("healthy channel should still receive the notification")
	}
}

func TestGateway_NotifyAll(t *testing.T) {
	gw := notify.NewGateway()
	ch := &notify.MockChannel{}
	gw.Register("mock", ch)

	streak := progress.Achievement{Type: progress.Streak, Title: "7 Day Streak!"}
	if err := gw.NotifyAll(t.Context(), "u1", 7, []progress.Achievement{achievement(), streak}); err != nil {
		t.Fatalf("NotifyAll() error = %v", err)
	}
	sent := ch.Sent()
	if len(sent) != 2 || sent[1].Achievement.Type != progress.Streak || sent[1].LessonID != 7 {
		t.Errorf("sent = %+v", sent)
	}
}

func TestNotification_Text(t *testing.T) {
	n := notify.Notification{Achievement: achievement()}
	if got, want := n.Text(), "🎉 Lesson Complete!\nYou completed lesson 1"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	n.Achievement.Icon = ""
	if got, want := n.Text(), "Lesson Complete!\nYou completed lesson 1"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}
