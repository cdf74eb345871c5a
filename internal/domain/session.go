package domain

import (
	"strconv"
	"time"
)

// Stage is a point in the fixed field-collection sequence.
type Stage int

const (
	// StageNone means the user has no intake in progress.
	StageNone Stage = iota
	StageAwaitingName
	StageAwaitingPhone
	StageAwaitingAge
	StageAwaitingExperience
	// StageComplete is terminal and never stored as a session.
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "NO_SESSION"
	case StageAwaitingName:
		return "AWAITING_NAME"
	case StageAwaitingPhone:
		return "AWAITING_PHONE"
	case StageAwaitingAge:
		return "AWAITING_AGE"
	case StageAwaitingExperience:
		return "AWAITING_EXPERIENCE"
	case StageComplete:
		return "COMPLETE"
	default:
		return "Stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// Active reports whether a session in this stage is still collecting input.
func (s Stage) Active() bool {
	return s >= StageAwaitingName && s <= StageAwaitingExperience
}

// Field is a single collected value.
type Field struct {
	Name  string
	Value string
}

// Session holds one user's in-progress intake.
type Session struct {
	UserID     int64
	ChatID     int64
	Username   string
	Stage      Stage
	FullName   string
	Phone      string
	Age        int
	Experience string
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// NewSession starts an intake at the name stage.
func NewSession(userID, chatID int64, username string, now time.Time) Session {
	return Session{
		UserID:    userID,
		ChatID:    chatID,
		Username:  username,
		Stage:     StageAwaitingName,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Collected returns the values gathered so far, in stage order.
// Only stages the session has already passed contribute a field.
func (s *Session) Collected() []Field {
	var fields []Field
	if s.Stage > StageAwaitingName {
		fields = append(fields, Field{Name: "full_name", Value: s.FullName})
	}
	if s.Stage > StageAwaitingPhone {
		fields = append(fields, Field{Name: "phone", Value: s.Phone})
	}
	if s.Stage > StageAwaitingAge {
		fields = append(fields, Field{Name: "age", Value: strconv.Itoa(s.Age)})
	}
	if s.Stage > StageAwaitingExperience {
		fields = append(fields, Field{Name: "experience_level", Value: s.Experience})
	}
	return fields
}

// Idle returns how long the session has gone without an accepted event.
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}
