package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"

	"github.com/fencing-federation/intake-bot/internal/domain"
	"github.com/fencing-federation/intake-bot/internal/metrics"
	"github.com/fencing-federation/intake-bot/internal/ratelimit"
	"github.com/fencing-federation/intake-bot/internal/session"
)

// Handler turns one event into the replies for its user.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) []domain.Reply
}

// Replier delivers a reply to a chat.
type Replier interface {
	SendReply(ctx context.Context, chatID int64, reply domain.Reply) error
}

// PollerOptions tunes the long-polling loop.
type PollerOptions struct {
	DropPendingUpdates bool
	SendTimeout        time.Duration
	Limiter            *ratelimit.Limiter
	Metrics            metrics.Recorder
}

// Poller receives updates by long polling and feeds them to the handler,
// one at a time per user.
type Poller struct {
	bot     *gotgbot.Bot
	handler Handler
	replier Replier
	mailbox *session.Mailbox
	opts    PollerOptions
	updater *ext.Updater
	ctx     context.Context
}

// NewPoller wires a poller around client.
func NewPoller(client *Client, handler Handler, mailbox *session.Mailbox, opts PollerOptions) *Poller {
	p := newPoller(handler, client, mailbox, opts)
	p.bot = client.bot
	return p
}

func newPoller(handler Handler, replier Replier, mailbox *session.Mailbox, opts PollerOptions) *Poller {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Poller{
		handler: handler,
		replier: replier,
		mailbox: mailbox,
		opts:    opts,
		ctx:     context.Background(),
	}
}

// Start begins polling. Handlers run under ctx; the caller stops polling
// with Stop and then drains the mailbox.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx = ctx

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(_ *gotgbot.Bot, _ *ext.Context, err error) ext.DispatcherAction {
			slog.Error("Update handler failed", "error", err)
			return ext.DispatcherActionNoop
		},
		// The handler only enqueues, so a single routine keeps arrival order.
		MaxRoutines: 1,
	})
	dispatcher.AddHandler(handlers.NewMessage(message.Contact, p.onMessage))
	dispatcher.AddHandler(handlers.NewMessage(message.Text, p.onMessage))

	p.updater = ext.NewUpdater(dispatcher, nil)
	err := p.updater.StartPolling(p.bot, &ext.PollingOpts{
		DropPendingUpdates: p.opts.DropPendingUpdates,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	slog.Info("Polling started", "bot", p.bot.Username, "drop_pending", p.opts.DropPendingUpdates)
	return nil
}

// Stop ends polling. Queued events keep draining in the mailbox.
func (p *Poller) Stop() {
	if p.updater == nil {
		return
	}
	if err := p.updater.Stop(); err != nil {
		slog.Warn("Failed to stop polling cleanly", "error", err)
	}
}

func (p *Poller) onMessage(_ *gotgbot.Bot, ectx *ext.Context) error {
	ev, ok := EventFromMessage(ectx.EffectiveMessage)
	if !ok {
		return nil
	}
	p.dispatch(ev)
	return nil
}

// dispatch queues ev behind any earlier events of the same user.
func (p *Poller) dispatch(ev domain.Event) bool {
	if !p.opts.Limiter.Allow(ev.UserID, time.Now()) {
		p.opts.Metrics.RecordRateLimited()
		slog.Debug("Update rate limited", "user_id", ev.UserID)
		return false
	}

	accepted := p.mailbox.Submit(ev.UserID, func() {
		p.process(ev)
	})
	if !accepted {
		slog.Warn("Update dropped during shutdown", "user_id", ev.UserID)
	}
	return accepted
}

func (p *Poller) process(ev domain.Event) {
	replies := p.handler.Handle(p.ctx, ev)

	for _, reply := range replies {
		// Sending is bounded on its own so shutdown does not cut a reply
		// to an already applied transition.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.opts.SendTimeout)
		err := p.replier.SendReply(ctx, ev.ChatID, reply)
		cancel()
		if err != nil {
			p.opts.Metrics.RecordSendFailure()
			slog.Error("Failed to send reply, session stalled until next message",
				"user_id", ev.UserID,
				"chat_id", ev.ChatID,
				"error", err)
			return
		}
	}
}
