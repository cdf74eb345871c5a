package session

import (
	"context"
	"sync"
)

// Mailbox runs jobs one at a time per user, in the order they were
// submitted. Different users drain concurrently.
type Mailbox struct {
	mu     sync.Mutex
	queues map[int64][]func()
	closed bool
	wg     sync.WaitGroup
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{queues: make(map[int64][]func())}
}

// Submit appends job to the user's queue. It returns false once the
// mailbox is closed.
func (m *Mailbox) Submit(userID int64, job func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	queue, running := m.queues[userID]
	m.queues[userID] = append(queue, job)
	if !running {
		m.wg.Add(1)
		go m.drain(userID)
	}
	return true
}

// Pending returns the number of users with queued or running work.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

func (m *Mailbox) drain(userID int64) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		queue := m.queues[userID]
		if len(queue) == 0 {
			delete(m.queues, userID)
			m.mu.Unlock()
			return
		}
		job := queue[0]
		queue[0] = nil
		m.queues[userID] = queue[1:]
		m.mu.Unlock()

		job()
	}
}

// Close stops accepting jobs and waits for queued ones to finish or for
// ctx to expire.
func (m *Mailbox) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
