package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
	"github.com/fencing-federation/intake-bot/internal/metrics"
	"github.com/fencing-federation/intake-bot/internal/session"
	"github.com/fencing-federation/intake-bot/internal/validate"
)

// ErrPersist is returned when a completed application could not be saved.
var ErrPersist = errors.New("persist application")

// Repository is the durable application store used by the service.
type Repository interface {
	SaveApplication(ctx context.Context, app *domain.Application) (int64, error)
	CountApplications(ctx context.Context) (int64, error)
}

// Notifier delivers a completed application to the operator. Implementations
// must not block the caller on delivery.
type Notifier interface {
	Notify(app domain.Application, total int64)
}

// Options tunes the submission pipeline.
type Options struct {
	StoreTimeout    time.Duration
	PersistAttempts int
	PersistBackoff  time.Duration
	Metrics         metrics.Recorder
	Clock           func() time.Time
}

// Service consumes one inbound event at a time and returns the replies for it.
type Service struct {
	sessions *session.Store
	machine  *Machine
	repo     Repository
	notifier Notifier
	metrics  metrics.Recorder
	opts     Options
	now      func() time.Time
}

// NewService wires the intake pipeline.
func NewService(sessions *session.Store, machine *Machine, repo Repository, notifier Notifier, opts Options) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.PersistAttempts <= 0 {
		opts.PersistAttempts = 3
	}
	if opts.PersistBackoff <= 0 {
		opts.PersistBackoff = 200 * time.Millisecond
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		sessions: sessions,
		machine:  machine,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		now:      now,
	}
}

// Handle processes ev for its user and returns the replies to send back.
// Events of the same user are applied one at a time.
func (s *Service) Handle(ctx context.Context, ev domain.Event) []domain.Reply {
	unlock := s.sessions.Lock(ev.UserID)
	defer unlock()

	s.metrics.RecordEvent(ev.Kind.String())

	var current *domain.Session
	if sess, ok := s.sessions.Get(ev.UserID); ok {
		current = &sess
	}

	tr := s.machine.Step(current, ev, s.now())

	if tr.Rejection != nil {
		field := "unknown"
		var verr *validate.Error
		if errors.As(tr.Rejection, &verr) {
			field = verr.Field
		}
		s.metrics.RecordRejection(field)
		slog.Info("Input rejected",
			"user_id", ev.UserID,
			"stage", current.Stage.String(),
			"reason", tr.Rejection.Error())
	}

	switch tr.Action {
	case ActionSave:
		s.sessions.Put(tr.Session)
		slog.Debug("Intake advanced", "user_id", ev.UserID, "stage", tr.Session.Stage.String())
	case ActionRemove:
		s.sessions.Remove(ev.UserID)
		s.metrics.RecordCancel()
		slog.Info("Intake cancelled", "user_id", ev.UserID)
	case ActionSubmit:
		return s.submit(ctx, tr.Session)
	case ActionNone:
	}

	return tr.Replies
}

func (s *Service) submit(ctx context.Context, sess domain.Session) []domain.Reply {
	texts := s.machine.Texts()
	app := domain.ApplicationFromSession(sess)

	if err := s.persist(ctx, &app); err != nil {
		// The stored session still sits at the experience stage, so the
		// user can resend the answer.
		s.metrics.RecordPersistFailure()
		slog.Error("Failed to persist application", "user_id", sess.UserID, "error", err)
		return []domain.Reply{{Text: texts.PersistFailed}}
	}
	s.metrics.RecordSubmission()
	slog.Info("Application saved", "user_id", app.UserID, "application_id", app.ID)

	s.notifier.Notify(app, s.count(ctx, app))
	s.sessions.Remove(sess.UserID)

	return []domain.Reply{{
		Text:           fmt.Sprintf(texts.Success, app.FullName, texts.Org),
		RemoveKeyboard: true,
	}}
}

// persist saves app with exponential backoff between attempts.
func (s *Service) persist(ctx context.Context, app *domain.Application) error {
	var lastErr error
	attempts := s.opts.PersistAttempts

	for i := 0; i < attempts; i++ {
		storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
		_, err := s.repo.SaveApplication(storeCtx, app)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == attempts-1 || ctx.Err() != nil {
			break
		}

		delay := s.opts.PersistBackoff * time.Duration(1<<i)
		slog.Warn("Application save failed, retrying",
			"user_id", app.UserID,
			"attempt", i+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrPersist, ctx.Err())
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrPersist, attempts, lastErr)
}

// count returns the running total for the operator summary. A failed count
// falls back to the saved application's ID, which is the row sequence.
func (s *Service) count(ctx context.Context, app domain.Application) int64 {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	total, err := s.repo.CountApplications(storeCtx)
	if err != nil {
		slog.Warn("Failed to count applications", "error", err)
		return app.ID
	}
	return total
}

// Notifiers fans one saved application out to several notifiers.
type Notifiers []Notifier

// Notify calls every notifier in order.
func (ns Notifiers) Notify(app domain.Application, total int64) {
	for _, n := range ns {
		n.Notify(app, total)
	}
}
