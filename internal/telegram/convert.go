package telegram

import (
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

// EventFromMessage converts an incoming message into an intake event.
// It returns false for messages the bot does not react to: no sender,
// or neither text nor a shared contact.
func EventFromMessage(msg *gotgbot.Message) (domain.Event, bool) {
	if msg == nil || msg.From == nil {
		return domain.Event{}, false
	}

	ev := domain.Event{
		UserID:    msg.From.Id,
		ChatID:    msg.Chat.Id,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
	}

	switch {
	case msg.Contact != nil:
		ev.Kind = domain.EventContact
		ev.Contact = &domain.Contact{
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
			UserID:      msg.Contact.UserId,
		}
	case msg.Text != "":
		if name, ok := parseCommand(msg.Text, msg.Entities); ok {
			ev.Kind = domain.EventCommand
			ev.Command = name
		} else {
			ev.Kind = domain.EventText
			ev.Text = msg.Text
		}
	default:
		return domain.Event{}, false
	}

	return ev, true
}

// parseCommand returns the lower-cased name of the bot_command entity that
// opens the message, with any "@bot" suffix removed. Text that merely starts
// with "/" is not a command.
func parseCommand(text string, entities []gotgbot.MessageEntity) (string, bool) {
	for _, ent := range entities {
		if ent.Type != "bot_command" || ent.Offset != 0 {
			continue
		}
		// Command entities are ASCII, so UTF-16 and byte lengths agree.
		if ent.Length < 2 || ent.Length > int64(len(text)) {
			return "", false
		}
		name, _, _ := strings.Cut(text[1:ent.Length], "@")
		if name == "" {
			return "", false
		}
		return strings.ToLower(name), true
	}
	return "", false
}

// replyMarkup renders the keyboard of a reply, or nil when the reply
// leaves the current keyboard alone.
func replyMarkup(r domain.Reply) gotgbot.ReplyMarkup {
	switch {
	case r.Keyboard != nil:
		rows := make([][]gotgbot.KeyboardButton, 0, len(r.Keyboard.Rows))
		for _, row := range r.Keyboard.Rows {
			buttons := make([]gotgbot.KeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, gotgbot.KeyboardButton{
					Text:           b.Text,
					RequestContact: b.RequestContact,
				})
			}
			rows = append(rows, buttons)
		}
		return gotgbot.ReplyKeyboardMarkup{
			Keyboard:        rows,
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	case r.RemoveKeyboard:
		return gotgbot.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}
