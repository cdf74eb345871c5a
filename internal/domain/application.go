// Package domain contains core domain types for the intake bot.
package domain

import (
	"time"
)

// Application is the durable record of a completed intake.
type Application struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username,omitempty"`
	FullName        string    `json:"full_name"`
	Phone           string    `json:"phone"`
	Age             int       `json:"age"`
	ExperienceLevel string    `json:"experience_level"`
	CreatedAt       time.Time `json:"created_at"`
}

// ApplicationFromSession copies the validated values of a finished session.
func ApplicationFromSession(s Session) Application {
	return Application{
		UserID:          s.UserID,
		Username:        s.Username,
		FullName:        s.FullName,
		Phone:           s.Phone,
		Age:             s.Age,
		ExperienceLevel: s.Experience,
	}
}

// Handle returns the platform handle with a leading "@", or "" when unknown.
func (a *Application) Handle() string {
	if a.Username == "" {
		return ""
	}
	return "@" + a.Username
}
