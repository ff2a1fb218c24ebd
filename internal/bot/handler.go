package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

// TelegramBot represents bot api.
type TelegramBot interface {
	Run(ctx context.Context) error
}

// NewTelegramBot returns telegram api compatible struct.
func NewTelegramBot(api *tgbotapi.BotAPI, handler *MessageHandler) TelegramBot {
	return &bot{
		handler: handler,
		bot:     api,
	}
}

const (
	actionStart         = "/start"
	actionAlerts        = "/alerts"
	actionSearch        = "/search"
	actionNotifications = "/notifications"
	actionInterval      = "/interval"
	actionStop          = "/stop"

	callbackToggle = "toggle"
	callbackDelete = "delete"
)

// Search results listed in a single reply.
const maxListedResults = 10

type botActions map[string]func(ctx context.Context, m *tgbotapi.Message, chatParams []string) (tgbotapi.Chattable, error)
type botCallbacks map[string]func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (tgbotapi.Chattable, error)

type bot struct {
	handler *MessageHandler
	bot     *tgbotapi.BotAPI
}

func (b *bot) Run(ctx context.Context) error {
	err := b.handler.init(b.bot)
	if err != nil {
		return err
	}
	b.bot.Debug = false

	logrus.Infof("Authorized on account %s", b.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.bot.GetUpdatesChan(u)
	if err != nil {
		return errors.WithStack(err)
	}

	// Do not handle a large backlog of old messages
	time.Sleep(time.Millisecond * 500)
	updates.Clear()

	for {
		var update tgbotapi.Update
		select {
		case update = <-updates:
			err := b.handler.handle(ctx, update)
			if err != nil {
				logrus.Error(err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// NewMessageHandler returns MessageHandler.
func NewMessageHandler(chatID int64, coord Coordinator) *MessageHandler {
	return &MessageHandler{
		chatID: chatID,
		coord:  coord,
	}
}

// MessageHandler turns chat commands into coordinator calls.
type MessageHandler struct {
	api       *tgbotapi.BotAPI
	chatID    int64
	actions   botActions
	callbacks botCallbacks
	coord     Coordinator
}

func (h *MessageHandler) init(api *tgbotapi.BotAPI) error {
	h.api = api

	h.actions = botActions{
		actionStart: func(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
			return h.getReplyText(m, "Hey! Search with /search <title> [@ <location>], "+
				"list alerts with /alerts, tune checks with /notifications on|off and /interval <minutes>."), nil
		},
		actionSearch: h.searchAction,
		actionAlerts: h.alertsAction,
		actionNotifications: func(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
			if len(params) != 1 || (params[0] != "on" && params[0] != "off") {
				return h.getReplyText(m, "Usage: /notifications on|off"), nil
			}
			return h.updateSettings(ctx, m, func(s *job.Settings) { s.NotificationsEnabled = params[0] == "on" })
		},
		actionInterval: func(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
			if len(params) != 1 {
				return h.getReplyText(m, "Usage: /interval <minutes>"), nil
			}
			minutes, err := strconv.Atoi(params[0])
			if err != nil || minutes <= 0 {
				return h.getReplyText(m, "Interval must be a positive number of minutes."), nil
			}
			return h.updateSettings(ctx, m, func(s *job.Settings) { s.CheckIntervalMinutes = minutes })
		},
		actionStop: func(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
			return h.updateSettings(ctx, m, func(s *job.Settings) { s.NotificationsEnabled = false })
		},
	}

	h.callbacks = botCallbacks{
		callbackOpen: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (tgbotapi.Chattable, error) {
			if len(args) != 1 {
				return nil, errors.New("open callback requires a notification id")
			}
			if _, err := h.coord.Activate(ctx, args[0]); err != nil {
				return nil, err
			}
			return nil, nil
		},
		callbackToggle: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (tgbotapi.Chattable, error) {
			if len(args) != 2 {
				return nil, errors.New("toggle callback requires an alert id and a state")
			}
			enabled := args[1] == "on"
			ok, err := h.coord.SetAlertEnabled(ctx, args[0], enabled)
			if err != nil {
				return nil, err
			}
			if !ok {
				return h.getReplyText(query.Message, "Alert not found."), nil
			}
			return h.getReplyText(query.Message, fmt.Sprintf("Alert %s.", onOff(enabled, "enabled", "disabled"))), nil
		},
		callbackDelete: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (tgbotapi.Chattable, error) {
			if len(args) != 1 {
				return nil, errors.New("delete callback requires an alert id")
			}
			ok, err := h.coord.DeleteAlert(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if !ok {
				return h.getReplyText(query.Message, "Alert not found."), nil
			}
			return h.getReplyText(query.Message, "Alert deleted."), nil
		},
	}

	return nil
}

func (h *MessageHandler) searchAction(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
	title, location := splitQuery(strings.Join(params, " "))
	p, err := job.NewSearchParams(title, location, job.Filters{}, nil, false)
	if err != nil {
		return h.getReplyText(m, "Usage: /search <title> [@ <location>]"), nil
	}
	records, err := h.coord.PerformSearch(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return h.getReplyText(m, "No jobs found."), nil
	}
	lines := make([]string, 0, maxListedResults+1)
	for i, r := range records {
		if i == maxListedResults {
			lines = append(lines, fmt.Sprintf("…and %d more", len(records)-maxListedResults))
			break
		}
		lines = append(lines, fmt.Sprintf("%s (%s, %s)\n%s", r.Title, r.Company, r.Location, r.URL))
	}
	return h.getReplyText(m, strings.Join(lines, "\n\n")), nil
}

func (h *MessageHandler) alertsAction(ctx context.Context, m *tgbotapi.Message, params []string) (tgbotapi.Chattable, error) {
	alerts, err := h.coord.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return h.getReplyText(m, "You have no alerts yet."), nil
	}
	var (
		lines []string
		rows  [][]tgbotapi.InlineKeyboardButton
	)
	for i, a := range alerts {
		checked := "never"
		if a.LastChecked != nil {
			checked = a.LastChecked.Format(time.RFC822)
		}
		lines = append(lines, fmt.Sprintf("%d. %s @ %s [%s], last checked %s",
			i+1, a.JobTitle, a.Location, onOff(a.Enabled, "on", "off"), checked))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d: turn %s", i+1, onOff(!a.Enabled, "on", "off")),
				fmt.Sprintf("%s %s %s", callbackToggle, a.ID, onOff(!a.Enabled, "on", "off")),
			),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d: delete", i+1), callbackDelete+" "+a.ID),
		))
	}
	resp := h.getReplyText(m, strings.Join(lines, "\n"))
	resp.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return resp, nil
}

func (h *MessageHandler) updateSettings(ctx context.Context, m *tgbotapi.Message, mutate func(*job.Settings)) (tgbotapi.Chattable, error) {
	settings, err := h.coord.Settings(ctx)
	if err != nil {
		return nil, err
	}
	mutate(&settings)
	if err := h.coord.SettingsUpdated(ctx, settings); err != nil {
		return nil, err
	}
	return h.getReplyText(m, fmt.Sprintf("Notifications %s, checking every %d minute(s).",
		onOff(settings.NotificationsEnabled, "on", "off"), settings.CheckIntervalMinutes)), nil
}

func (h *MessageHandler) handle(ctx context.Context, upd tgbotapi.Update) error {
	defer func() {
		if err := recover(); err != nil {
			logrus.Error(err, string(debug.Stack()))
		}
	}()

	id := getChat(upd)
	err := h.authorize(id)
	if err != nil {
		return err
	}
	logrus.Infof("Message from chat [%d]", id)
	j, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	logrus.Debugf("Message [%s]", j)

	var resp tgbotapi.Chattable
	switch {
	case upd.Message != nil:
		resp, err = h.handleActions(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		resp, err = h.handleCallback(ctx, upd.CallbackQuery)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if resp != nil {
		_, err = h.api.Send(resp)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

func (h *MessageHandler) getReplyText(m *tgbotapi.Message, txt string) *tgbotapi.MessageConfig {
	resp := tgbotapi.NewMessage(m.Chat.ID, txt)
	return &resp
}

func (h *MessageHandler) handleActions(ctx context.Context, msg *tgbotapi.Message) (tgbotapi.Chattable, error) {
	logrus.Infof("Message [%+v]", msg.Text)

	words := strings.Fields(msg.Text)
	if len(words) == 0 {
		return h.getReplyText(msg, "Unknown command"), nil
	}
	cmd, ok := h.actions[words[0]]
	if !ok {
		return nil, nil
	}

	resp, err := cmd(ctx, msg, words[1:])
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (h *MessageHandler) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) (tgbotapi.Chattable, error) {
	resp, err := h.runCallback(ctx, query)
	if err != nil {
		return nil, err
	}
	ans, err := h.api.AnswerCallbackQuery(tgbotapi.CallbackConfig{
		CallbackQueryID: query.ID,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !ans.Ok {
		return nil, errors.WithStack(errors.New(string(ans.Result)))
	}
	return resp, nil
}

func (h *MessageHandler) runCallback(ctx context.Context, query *tgbotapi.CallbackQuery) (tgbotapi.Chattable, error) {
	logrus.Infof("Callback [%+v]", query.Data)
	if len(query.Data) == 0 {
		return nil, errors.WithStack(errors.New("failed to execute callback, data is empty"))
	}
	args := strings.Fields(query.Data)
	if len(args) <= 0 {
		return nil, errors.WithStack(errors.New("failed to execute callback, args is not sufficient"))
	}
	callback, ok := h.callbacks[args[0]]
	if !ok {
		return h.getReplyText(query.Message, "Unknown callback"), nil
	}

	return callback(ctx, query, args[1:])
}

func (h *MessageHandler) authorize(chatID int64) error {
	if chatID != h.chatID {
		return errors.New("unauthorized")
	}
	return nil
}

func getChat(upd tgbotapi.Update) int64 {
	var id int64
	if upd.Message != nil {
		id = upd.Message.Chat.ID
	}
	if upd.CallbackQuery != nil {
		id = upd.CallbackQuery.Message.Chat.ID
	}

	return id
}

// splitQuery splits "title @ location".
func splitQuery(q string) (title, location string) {
	if i := strings.LastIndex(q, "@"); i >= 0 {
		return strings.TrimSpace(q[:i]), strings.TrimSpace(q[i+1:])
	}
	return strings.TrimSpace(q), ""
}

func onOff(b bool, on, off string) string {
	if b {
		return on
	}
	return off
}
