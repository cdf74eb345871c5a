// Package notify delivers completed applications to the operator chat.
// Delivery is best-effort: it never blocks or rolls back a submission.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
	"github.com/fencing-federation/intake-bot/internal/metrics"
)

// Sender sends plain text to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Options tunes delivery.
type Options struct {
	QueueSize   int
	Attempts    int
	Backoff     time.Duration
	SendTimeout time.Duration
	Metrics     metrics.Recorder
	// Org names the organisation in the summary header.
	Org string
}

type job struct {
	app   domain.Application
	total int64
}

// Dispatcher queues operator notifications and sends them from a
// background worker.
type Dispatcher struct {
	sender  Sender
	chatID  int64
	opts    Options
	metrics metrics.Recorder

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewDispatcher creates a dispatcher for the operator chat. Call Start
// before the first Notify.
func NewDispatcher(sender Sender, chatID int64, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	return &Dispatcher{
		sender:  sender,
		chatID:  chatID,
		opts:    opts,
		metrics: m,
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start runs the delivery worker until Close is called. ctx bounds retry
// waits; cancelling it makes pending retries give up early.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for j := range d.queue {
			d.deliver(ctx, j)
		}
	}()
}

// Notify enqueues a summary of app. It never blocks: a full queue drops the
// notification with a log entry.
func (d *Dispatcher) Notify(app domain.Application, total int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		slog.Warn("Notification dropped, dispatcher closed", "application_id", app.ID)
		d.metrics.RecordNotification(metrics.NotificationDropped)
		return
	}

	select {
	case d.queue <- job{app: app, total: total}:
	default:
		slog.Warn("Notification dropped, queue full", "application_id", app.ID, "queue_size", d.opts.QueueSize)
		d.metrics.RecordNotification(metrics.NotificationDropped)
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	text := Format(j.app, j.total, d.opts.Org)

	for i := 0; i < d.opts.Attempts; i++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		err := d.sender.SendText(sendCtx, d.chatID, text)
		cancel()
		if err == nil {
			d.metrics.RecordNotification(metrics.NotificationSent)
			slog.Info("Operator notified", "application_id", j.app.ID, "chat_id", d.chatID)
			return
		}

		if i == d.opts.Attempts-1 {
			slog.Error("Failed to notify operator",
				"application_id", j.app.ID,
				"attempts", d.opts.Attempts,
				"error", err)
			break
		}

		delay := d.opts.Backoff * time.Duration(1<<i)
		slog.Warn("Operator notification failed, retrying",
			"application_id", j.app.ID,
			"attempt", i+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Error("Operator notification abandoned", "application_id", j.app.ID, "error", ctx.Err())
			d.metrics.RecordNotification(metrics.NotificationFailed)
			return
		}
	}

	d.metrics.RecordNotification(metrics.NotificationFailed)
}

// Format renders the fixed operator summary. An empty org leaves the
// organisation line out.
func Format(app domain.Application, total int64, org string) string {
	handle := app.Handle()
	if handle == "" {
		handle = "—"
	}

	var b strings.Builder
	b.WriteString("🏆 НОВАЯ ЗАЯВКА!\n")
	if org != "" {
		fmt.Fprintf(&b, "🏅 %s\n", org)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "👤 Имя: %s\n", app.FullName)
	fmt.Fprintf(&b, "📞 Телефон: %s\n", app.Phone)
	fmt.Fprintf(&b, "🎯 Возраст: %d лет\n", app.Age)
	fmt.Fprintf(&b, "📊 Опыт: %s\n", app.ExperienceLevel)
	fmt.Fprintf(&b, "👤 Username: %s\n", handle)
	fmt.Fprintf(&b, "🆔 ID: %d\n\n", app.UserID)
	fmt.Fprintf(&b, "📈 Всего заявок: %d", total)
	return b.String()
}
