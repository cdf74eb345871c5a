// Package validate checks raw user answers against each field's acceptance rule.
package validate

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Age bounds, inclusive.
const (
	MinAge = 5
	MaxAge = 70
)

const (
	minNameLen    = 2
	minPhoneLen   = 10
	minPhoneDigit = 10
)

// Rejection kinds. Match them with errors.Is.
var (
	ErrTooShort      = errors.New("too short")
	ErrInvalidFormat = errors.New("invalid format")
	ErrNotANumber    = errors.New("not a number")
	ErrOutOfRange    = errors.New("out of range")
	ErrEmpty         = errors.New("empty")
)

// Error is a per-field rejection.
type Error struct {
	Field string
	Kind  error
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func reject(field string, kind error) *Error {
	return &Error{Field: field, Kind: kind}
}

// Name accepts a full name of at least two characters after trimming.
func Name(text string) (string, error) {
	name := strings.TrimSpace(text)
	if utf8.RuneCountInString(name) < minNameLen {
		return "", reject("full_name", ErrTooShort)
	}
	return name, nil
}

// Phone accepts any text carrying at least ten digits. The text is returned
// unmodified; digits are not reformatted.
func Phone(text string) (string, error) {
	digits := 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigit || utf8.RuneCountInString(text) < minPhoneLen {
		return "", reject("phone", ErrInvalidFormat)
	}
	return text, nil
}

// Age parses an integer age between MinAge and MaxAge.
func Age(text string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(text))
	if errors.Is(err, strconv.ErrRange) {
		// An integer too large for int is still an integer, just not an age.
		return 0, reject("age", ErrOutOfRange)
	}
	if err != nil {
		return 0, reject("age", ErrNotANumber)
	}
	if age < MinAge || age > MaxAge {
		return 0, reject("age", ErrOutOfRange)
	}
	return age, nil
}

// Experience accepts any non-blank text. The quick-reply options offered to
// the user are suggestions, not an enumeration.
func Experience(text string) (string, error) {
	level := strings.TrimSpace(text)
	if level == "" {
		return "", reject("experience_level", ErrEmpty)
	}
	return level, nil
}
