package bot

import (
	"context"
	"strings"

	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/pachmu/nice_job_alert_bot/internal/notifier"
)

const callbackOpen = "open"

// Sender is the part of the telegram API the display needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Display renders notifications as chat messages. Action buttons carry the
// notification id back as callback data, which the handler turns into an
// activation.
type Display struct {
	api    Sender
	chatID int64
}

func NewDisplay(api Sender, chatID int64) *Display {
	return &Display{api: api, chatID: chatID}
}

func (d *Display) Create(_ context.Context, id string, n notifier.Notification) error {
	msg := tgbotapi.NewMessage(d.chatID, notificationText(n))
	if len(n.Buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(n.Buttons))
		for _, b := range n.Buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b, callbackOpen+" "+id))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	_, err := d.api.Send(msg)
	return errors.WithStack(err)
}

// Open sends the link with a URL button; the chat client opens it.
func (d *Display) Open(_ context.Context, url string) error {
	msg := tgbotapi.NewMessage(d.chatID, url)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Open job", url)),
	)
	_, err := d.api.Send(msg)
	return errors.WithStack(err)
}

func notificationText(n notifier.Notification) string {
	return strings.TrimSpace(n.Title + "\n" + n.Message)
}
