// Package intake drives the conversational intake: stage transitions,
// validation, and the submission pipeline.
package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
	"github.com/fencing-federation/intake-bot/internal/validate"
)

// Action tells the service what to do with the transition's session.
type Action int

const (
	// ActionNone leaves the stored session untouched.
	ActionNone Action = iota
	// ActionSave stores Transition.Session.
	ActionSave
	// ActionRemove deletes the user's session.
	ActionRemove
	// ActionSubmit means the session reached StageComplete and must be
	// persisted before it is removed.
	ActionSubmit
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSave:
		return "save"
	case ActionRemove:
		return "remove"
	case ActionSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// Transition is the outcome of one event against one session.
type Transition struct {
	Action  Action
	Session domain.Session
	Replies []domain.Reply
	// Rejection is set when the current stage's validator refused the input.
	Rejection error
}

// Machine owns stage ordering and the transition rules.
type Machine struct {
	texts Texts
}

// NewMachine creates a state machine that speaks with the given texts.
func NewMachine(texts Texts) *Machine {
	return &Machine{texts: texts}
}

// Texts returns the machine's user-facing texts.
func (m *Machine) Texts() Texts {
	return m.texts
}

// Step computes the transition for ev. current is nil when the user has no
// session. Step never mutates current.
func (m *Machine) Step(current *domain.Session, ev domain.Event, now time.Time) Transition {
	if ev.Kind == domain.EventCommand {
		switch ev.Command {
		case domain.CommandStart:
			return m.start(ev, now)
		case domain.CommandCancel:
			if current != nil {
				return Transition{
					Action:  ActionRemove,
					Replies: []domain.Reply{{Text: m.texts.Cancelled, RemoveKeyboard: true}},
				}
			}
		}
		return m.fallback()
	}

	if current == nil {
		return m.fallback()
	}

	next := *current
	next.UpdatedAt = now

	switch current.Stage {
	case domain.StageAwaitingName:
		return m.onName(next, ev)
	case domain.StageAwaitingPhone:
		return m.onPhone(next, ev)
	case domain.StageAwaitingAge:
		return m.onAge(next, ev)
	case domain.StageAwaitingExperience:
		return m.onExperience(next, ev)
	default:
		// StageNone and StageComplete are never stored.
		return m.fallback()
	}
}

func (m *Machine) start(ev domain.Event, now time.Time) Transition {
	return Transition{
		Action:  ActionSave,
		Session: domain.NewSession(ev.UserID, ev.ChatID, ev.Username, now),
		Replies: []domain.Reply{{Text: m.texts.Welcome, RemoveKeyboard: true}},
	}
}

func (m *Machine) fallback() Transition {
	return Transition{
		Action:  ActionNone,
		Replies: []domain.Reply{{Text: m.texts.Fallback}},
	}
}

func (m *Machine) reject(err error, reply domain.Reply) Transition {
	return Transition{
		Action:    ActionNone,
		Replies:   []domain.Reply{reply},
		Rejection: err,
	}
}

func (m *Machine) onName(next domain.Session, ev domain.Event) Transition {
	candidate := ev.Text
	if ev.Kind == domain.EventContact && ev.Contact != nil {
		candidate = strings.TrimSpace(ev.Contact.FirstName + " " + ev.Contact.LastName)
	}

	name, err := validate.Name(candidate)
	if err != nil {
		return m.reject(err, domain.Reply{Text: m.texts.NameTooShort})
	}

	next.FullName = name
	if ev.Username != "" {
		next.Username = ev.Username
	}
	next.Stage = domain.StageAwaitingPhone
	return Transition{
		Action:  ActionSave,
		Session: next,
		Replies: []domain.Reply{{
			Text:     fmt.Sprintf(m.texts.PhonePrompt, name),
			Keyboard: phoneKeyboard(),
		}},
	}
}

func (m *Machine) onPhone(next domain.Session, ev domain.Event) Transition {
	var phone string
	switch {
	case ev.Kind == domain.EventContact && ev.Contact != nil:
		// The platform's contact object is trusted as-is.
		phone = ev.Contact.PhoneNumber
	case ev.Text == LabelManualPhone:
		return Transition{
			Action:  ActionNone,
			Replies: []domain.Reply{{Text: m.texts.ManualPhone, RemoveKeyboard: true}},
		}
	default:
		var err error
		phone, err = validate.Phone(ev.Text)
		if err != nil {
			return m.reject(err, domain.Reply{Text: m.texts.PhoneInvalid})
		}
	}

	next.Phone = phone
	next.Stage = domain.StageAwaitingAge
	return Transition{
		Action:  ActionSave,
		Session: next,
		Replies: []domain.Reply{{Text: m.texts.AgePrompt, RemoveKeyboard: true}},
	}
}

func (m *Machine) onAge(next domain.Session, ev domain.Event) Transition {
	text := ev.Text
	if ev.Kind != domain.EventText {
		text = ""
	}

	age, err := validate.Age(text)
	switch {
	case errors.Is(err, validate.ErrOutOfRange):
		return m.reject(err, domain.Reply{Text: m.texts.AgeOutOfRange})
	case err != nil:
		return m.reject(err, domain.Reply{Text: m.texts.AgeNotANumber})
	}

	next.Age = age
	next.Stage = domain.StageAwaitingExperience
	return Transition{
		Action:  ActionSave,
		Session: next,
		Replies: []domain.Reply{{Text: m.texts.ExperiencePrompt, Keyboard: experienceKeyboard()}},
	}
}

func (m *Machine) onExperience(next domain.Session, ev domain.Event) Transition {
	text := ev.Text
	if ev.Kind != domain.EventText {
		text = ""
	}

	level, err := validate.Experience(text)
	if err != nil {
		return m.reject(err, domain.Reply{Text: m.texts.ExperienceEmpty, Keyboard: experienceKeyboard()})
	}

	next.Experience = level
	next.Stage = domain.StageComplete
	return Transition{
		Action:  ActionSubmit,
		Session: next,
	}
}

func phoneKeyboard() *domain.Keyboard {
	return &domain.Keyboard{Rows: [][]domain.Button{
		{{Text: LabelShareContact, RequestContact: true}},
		{{Text: LabelManualPhone}},
	}}
}

func experienceKeyboard() *domain.Keyboard {
	rows := make([][]domain.Button, 0, len(ExperienceOptions))
	for _, option := range ExperienceOptions {
		rows = append(rows, []domain.Button{{Text: option}})
	}
	return &domain.Keyboard{Rows: rows}
}
