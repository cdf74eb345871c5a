package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMailbox_PreservesOrderPerUser(t *testing.T) {
	m := NewMailbox()
	var (
		mu  sync.Mutex
		got = make(map[int64][]int)
	)

	for i := 0; i < 100; i++ {
		for _, userID := range []int64{1, 2, 3} {
			i, userID := i, userID
			m.Submit(userID, func() {
				mu.Lock()
				got[userID] = append(got[userID], i)
				mu.Unlock()
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for userID, seq := range got {
		if len(seq) != 100 {
			t.Fatalf("user %d: expected 100 jobs, got %d", userID, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("user %d: job %d ran at position %d", userID, v, i)
			}
		}
	}
}

func TestMailbox_UsersRunConcurrently(t *testing.T) {
	m := NewMailbox()
	release := make(chan struct{})
	started := make(chan int64, 2)

	m.Submit(1, func() {
		started <- 1
		<-release
	})
	m.Submit(2, func() {
		started <- 2
		<-release
	})

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("Expected both users to start without waiting on each other")
		}
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending users, got %d", m.Pending())
	}
}

func TestMailbox_RejectsAfterClose(t *testing.T) {
	m := NewMailbox()
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Submit(1, func() {}) {
		t.Error("Expected Submit to fail after Close")
	}
}

func TestMailbox_CloseHonorsDeadline(t *testing.T) {
	m := NewMailbox()
	block := make(chan struct{})
	defer close(block)
	m.Submit(1, func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Close(ctx); err == nil {
		t.Error("Expected Close to time out while a job is blocked")
	}
}
