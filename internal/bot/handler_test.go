package bot

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

const testChatID = 42

type fakeCoordinator struct {
	settings  job.Settings
	alerts    []job.Alert
	records   []job.Record
	searched  []job.SearchParams
	updated   []job.Settings
	toggled   map[string]bool
	deleted   []string
	activated []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{settings: job.DefaultSettings(), toggled: map[string]bool{}}
}

func (f *fakeCoordinator) PerformSearch(_ context.Context, p job.SearchParams) ([]job.Record, error) {
	f.searched = append(f.searched, p)
	return f.records, nil
}

func (f *fakeCoordinator) Settings(context.Context) (job.Settings, error) { return f.settings, nil }

func (f *fakeCoordinator) SettingsUpdated(_ context.Context, s job.Settings) error {
	f.settings = s
	f.updated = append(f.updated, s)
	return nil
}

func (f *fakeCoordinator) Alerts(context.Context) ([]job.Alert, error) { return f.alerts, nil }

func (f *fakeCoordinator) SetAlertEnabled(_ context.Context, id string, enabled bool) (bool, error) {
	for _, a := range f.alerts {
		if a.ID == id {
			f.toggled[id] = enabled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCoordinator) DeleteAlert(_ context.Context, id string) (bool, error) {
	f.deleted = append(f.deleted, id)
	return id == "a1", nil
}

func (f *fakeCoordinator) Activate(_ context.Context, id string) (bool, error) {
	f.activated = append(f.activated, id)
	return true, nil
}

func newHandler(t *testing.T) (*MessageHandler, *fakeCoordinator) {
	t.Helper()
	coord := newFakeCoordinator()
	h := NewMessageHandler(testChatID, coord)
	require.NoError(t, h.init(nil))
	return h, coord
}

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: testChatID}}
}

func replyText(t *testing.T, c tgbotapi.Chattable) string {
	t.Helper()
	msg, ok := c.(*tgbotapi.MessageConfig)
	require.True(t, ok, "unexpected reply %T", c)
	return msg.Text
}

func TestSearchAction(t *testing.T) {
	h, coord := newHandler(t)
	coord.records = []job.Record{{ID: "1", Title: "Go Engineer", Company: "Acme", Location: "Paris", URL: "https://example.com/1"}}

	resp, err := h.handleActions(context.Background(), message("/search go engineer @ Paris"))

	require.NoError(t, err)
	require.Len(t, coord.searched, 1)
	assert.Equal(t, "go engineer", coord.searched[0].JobTitle)
	assert.Equal(t, "Paris", coord.searched[0].Location)
	assert.False(t, coord.searched[0].EnableAlerts)
	assert.Contains(t, replyText(t, resp), "Go Engineer (Acme, Paris)")
}

func TestSearchActionUsage(t *testing.T) {
	h, coord := newHandler(t)

	resp, err := h.handleActions(context.Background(), message("/search"))

	require.NoError(t, err)
	assert.Empty(t, coord.searched)
	assert.Contains(t, replyText(t, resp), "Usage")
}

func TestSearchActionNoResults(t *testing.T) {
	h, _ := newHandler(t)

	resp, err := h.handleActions(context.Background(), message("/search designer"))

	require.NoError(t, err)
	assert.Equal(t, "No jobs found.", replyText(t, resp))
}

func TestSettingsActions(t *testing.T) {
	h, coord := newHandler(t)
	ctx := context.Background()

	_, err := h.handleActions(ctx, message("/interval 15"))
	require.NoError(t, err)
	_, err = h.handleActions(ctx, message("/notifications off"))
	require.NoError(t, err)

	assert.Equal(t, []job.Settings{
		{NotificationsEnabled: true, CheckIntervalMinutes: 15},
		{NotificationsEnabled: false, CheckIntervalMinutes: 15},
	}, coord.updated)

	resp, err := h.handleActions(ctx, message("/interval zero"))
	require.NoError(t, err)
	assert.Contains(t, replyText(t, resp), "positive")
	assert.Len(t, coord.updated, 2)
}

func TestStopDisablesNotifications(t *testing.T) {
	h, coord := newHandler(t)

	_, err := h.handleActions(context.Background(), message("/stop"))

	require.NoError(t, err)
	require.Len(t, coord.updated, 1)
	assert.False(t, coord.updated[0].NotificationsEnabled)
}

func TestAlertsAction(t *testing.T) {
	h, coord := newHandler(t)
	checked := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	coord.alerts = []job.Alert{
		{ID: "a1", JobTitle: "engineer", Location: "Paris", Enabled: true, LastChecked: &checked},
		{ID: "a2", JobTitle: "designer", Enabled: false},
	}

	resp, err := h.handleActions(context.Background(), message("/alerts"))

	require.NoError(t, err)
	msg := resp.(*tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "1. engineer @ Paris [on]")
	assert.Contains(t, msg.Text, "2. designer @  [off], last checked never")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "toggle a1 off", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "toggle a2 on", *markup.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "delete a1", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h, _ := newHandler(t)

	resp, err := h.handleActions(context.Background(), message("/nope"))

	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCallbacks(t *testing.T) {
	h, coord := newHandler(t)
	coord.alerts = []job.Alert{{ID: "a1"}}
	ctx := context.Background()
	query := func(data string) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{ID: "q", Data: data, Message: message("")}
	}

	resp, err := h.runCallback(ctx, query("open n-1"))
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, []string{"n-1"}, coord.activated)

	resp, err = h.runCallback(ctx, query("toggle a1 off"))
	require.NoError(t, err)
	assert.Equal(t, "Alert disabled.", replyText(t, resp))
	assert.Equal(t, map[string]bool{"a1": false}, coord.toggled)

	resp, err = h.runCallback(ctx, query("delete a9"))
	require.NoError(t, err)
	assert.Equal(t, "Alert not found.", replyText(t, resp))

	resp, err = h.runCallback(ctx, query("bogus"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown callback", replyText(t, resp))

	_, err = h.runCallback(ctx, query(""))
	assert.Error(t, err)
	_, err = h.runCallback(ctx, query("open"))
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	h, _ := newHandler(t)

	assert.NoError(t, h.authorize(testChatID))
	assert.Error(t, h.authorize(7))
}

func TestSplitQuery(t *testing.T) {
	title, loc := splitQuery(" go engineer @ Paris, France ")
	assert.Equal(t, "go engineer", title)
	assert.Equal(t, "Paris, France", loc)

	title, loc = splitQuery("designer")
	assert.Equal(t, "designer", title)
	assert.Equal(t, "", loc)
}
