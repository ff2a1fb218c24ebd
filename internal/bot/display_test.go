package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pachmu/nice_job_alert_bot/internal/notifier"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestDisplayCreateWithButton(t *testing.T) {
	s := &fakeSender{}
	d := NewDisplay(s, testChatID)

	id := "3f1c9a2e-8b7d-4c61-9e0a-5d2b7f4c1a90"
	err := d.Create(context.Background(), id, notifier.Notification{
		Title:   "New Job Match: Go Engineer",
		Message: "Acme - Paris",
		Buttons: []string{notifier.ViewJobButton},
	})

	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(testChatID), s.sent[0].ChatID)
	assert.Equal(t, "New Job Match: Go Engineer\nAcme - Paris", s.sent[0].Text)
	markup := s.sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	data := *markup.InlineKeyboard[0][0].CallbackData
	assert.Equal(t, "open "+id, data)
	assert.LessOrEqual(t, len(data), 64)
}

func TestDisplayCreatePlain(t *testing.T) {
	s := &fakeSender{}
	d := NewDisplay(s, testChatID)

	err := d.Create(context.Background(), "n1", notifier.Notification{Title: "Job Saved", Message: "ok"})
	require.NoError(t, err)

	require.Len(t, s.sent, 1)
	assert.Equal(t, "Job Saved\nok", s.sent[0].Text)
	assert.Nil(t, s.sent[0].ReplyMarkup)
}

func TestDisplayCreateFailure(t *testing.T) {
	d := NewDisplay(&fakeSender{err: errors.New("telegram down")}, testChatID)

	err := d.Create(context.Background(), "n1", notifier.Notification{Title: "x"})

	assert.Error(t, err)
}

func TestDisplayOpen(t *testing.T) {
	s := &fakeSender{}
	d := NewDisplay(s, testChatID)

	require.NoError(t, d.Open(context.Background(), "https://example.com/jobs/1"))

	require.Len(t, s.sent, 1)
	assert.True(t, strings.HasPrefix(s.sent[0].Text, "https://example.com/jobs/1"))
	markup := s.sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://example.com/jobs/1", *markup.InlineKeyboard[0][0].URL)
}
