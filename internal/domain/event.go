package domain

// EventKind classifies an inbound transport event.
type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventContact
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventContact:
		return "contact"
	default:
		return "unknown"
	}
}

// Commands understood by the intake flow.
const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

// Contact is a phone contact shared through the platform's own contact object.
type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	UserID      int64
}

// Event is one inbound message from a user.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	Command   string
	Text      string
	Contact   *Contact
}

// Button is one reply-keyboard button.
type Button struct {
	Text           string
	RequestContact bool
}

// Keyboard is a reply affordance offered alongside a prompt.
type Keyboard struct {
	Rows [][]Button
}

// Reply is one outbound message.
// Keyboard and RemoveKeyboard are mutually exclusive; neither leaves the
// client's current keyboard untouched.
type Reply struct {
	Text           string
	Keyboard       *Keyboard
	RemoveKeyboard bool
}
