package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
	chats    []int64
	block    chan struct{}
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, text string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("telegram: bad gateway")
	}
	f.sent = append(f.sent, text)
	f.chats = append(f.chats, chatID)
	return nil
}

func (f *fakeSender) snapshot() (int, []string, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]string(nil), f.sent...), append([]int64(nil), f.chats...)
}

func sampleApp() domain.Application {
	return domain.Application{
		ID:              5,
		UserID:          111,
		Username:        "alex",
		FullName:        "Alex",
		Phone:           "89991234567",
		Age:             30,
		ExperienceLevel: "Новичок",
	}
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFormat(t *testing.T) {
	text := Format(sampleApp(), 42, "Test Club")

	for _, want := range []string{
		"Имя: Alex",
		"Телефон: 89991234567",
		"Возраст: 30 лет",
		"Опыт: Новичок",
		"Username: @alex",
		"ID: 111",
		"Всего заявок: 42",
		"НОВАЯ ЗАЯВКА!\n🏅 Test Club\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in summary:\n%s", want, text)
		}
	}
}

func TestFormat_NoHandle(t *testing.T) {
	app := sampleApp()
	app.Username = ""
	if text := Format(app, 1, ""); strings.Contains(text, "@") {
		t.Errorf("Expected no handle in summary:\n%s", text)
	}
}

func TestFormat_NoOrg(t *testing.T) {
	text := Format(sampleApp(), 1, "")
	if !strings.HasPrefix(text, "🏆 НОВАЯ ЗАЯВКА!\n\n👤 Имя: Alex") {
		t.Errorf("Expected header followed by the applicant:\n%s", text)
	}
}

func TestDispatcher_DeliversToOperatorChat(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, -100500, Options{Backoff: time.Millisecond, Org: "Test Club"})
	d.Start(context.Background())

	d.Notify(sampleApp(), 7)
	closeDispatcher(t, d)

	calls, sent, chats := sender.snapshot()
	if calls != 1 || len(sent) != 1 {
		t.Fatalf("Expected exactly one send, got %d calls", calls)
	}
	if chats[0] != -100500 {
		t.Errorf("Expected operator chat -100500, got %d", chats[0])
	}
	if !strings.Contains(sent[0], "Всего заявок: 7") || !strings.Contains(sent[0], "Test Club") {
		t.Errorf("Unexpected summary: %s", sent[0])
	}
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	d := NewDispatcher(sender, 1, Options{Attempts: 3, Backoff: time.Millisecond})
	d.Start(context.Background())

	d.Notify(sampleApp(), 1)
	closeDispatcher(t, d)

	calls, sent, _ := sender.snapshot()
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if len(sent) != 1 {
		t.Errorf("Expected delivery on the last attempt, got %d", len(sent))
	}
}

func TestDispatcher_GivesUpAfterAttempts(t *testing.T) {
	sender := &fakeSender{failures: 10}
	d := NewDispatcher(sender, 1, Options{Attempts: 2, Backoff: time.Millisecond})
	d.Start(context.Background())

	d.Notify(sampleApp(), 1)
	closeDispatcher(t, d)

	calls, sent, _ := sender.snapshot()
	if calls != 2 || len(sent) != 0 {
		t.Errorf("Expected 2 failed attempts, got %d calls and %d sent", calls, len(sent))
	}
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, 1, Options{QueueSize: 1, Backoff: time.Millisecond})
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(sampleApp(), int64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stalled sender")
	}

	close(sender.block)
	closeDispatcher(t, d)
}

func TestDispatcher_NotifyAfterCloseIsDropped(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1, Options{})
	d.Start(context.Background())
	closeDispatcher(t, d)

	d.Notify(sampleApp(), 1)

	if calls, _, _ := sender.snapshot(); calls != 0 {
		t.Errorf("Expected no sends after Close, got %d", calls)
	}
}
