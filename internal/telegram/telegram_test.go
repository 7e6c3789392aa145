package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/service"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

type nopLogger struct{}

func (nopLogger) Info(string, string, string, int64, string) {}
func (nopLogger) Error(error, string, string, string, int64) {}

func TestNotifier_PlainMessage(t *testing.T) {
	api := &fakeAPI{}
	if err := NewNotifier(api, nopLogger{}).Notify(context.Background(), 5, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 5 || msg.Text != "hello" || msg.ReplyMarkup != nil {
		t.Fatalf("unexpected message %+v", api.sent[0])
	}
}

func TestNotifier_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewNotifier(api, nopLogger{}).Notify(ctx, 5, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestKeyboard_Layout(t *testing.T) {
	ratings, dropped := keyboard(service.RatingChoices(service.ActionBotRating, "m1"))
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped buttons %v", dropped)
	}
	if len(ratings.InlineKeyboard) != 1 || len(ratings.InlineKeyboard[0]) != 5 {
		t.Fatalf("expected ratings on one row, got %+v", ratings.InlineKeyboard)
	}

	reasons, _ := keyboard(service.ReasonChoices("m1"))
	if len(reasons.InlineKeyboard) != 5 {
		t.Fatalf("expected one reason per row, got %d rows", len(reasons.InlineKeyboard))
	}
	btn := reasons.InlineKeyboard[0][0]
	if btn.CallbackData == nil || !strings.HasPrefix(*btn.CallbackData, "fb_reason|") {
		t.Fatalf("unexpected button %+v", btn)
	}
}

func TestKeyboard_URLButton(t *testing.T) {
	link, _ := keyboard([]service.Choice{{Label: "My Profile", URL: "https://example.test"}})
	if u := link.InlineKeyboard[0][0].URL; u == nil || *u != "https://example.test" {
		t.Fatalf("expected a URL button, got %+v", link.InlineKeyboard[0][0])
	}
}

func TestNotifier_OversizedButtonIsDropped(t *testing.T) {
	api := &fakeAPI{}
	choices := []service.Choice{
		{Label: "tennis", Token: service.NewToken(service.ActionSport, "s", "tennis")},
		{Label: "long", Token: "sport|s=" + strings.Repeat("a", 60)},
		{Label: "golf", Token: service.NewToken(service.ActionSport, "s", "golf")},
	}
	if err := NewNotifier(api, nopLogger{}).Notify(context.Background(), 5, "pick", choices...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected the two valid buttons, got %+v", msg.ReplyMarkup)
	}
	if markup.InlineKeyboard[1][0].Text != "golf" {
		t.Fatalf("unexpected layout %+v", markup.InlineKeyboard)
	}

	api = &fakeAPI{}
	if err := NewNotifier(api, nopLogger{}).Notify(context.Background(), 5, "pick", choices[1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg := api.sent[0].(tgbotapi.MessageConfig); msg.Text != "pick" || msg.ReplyMarkup != nil {
		t.Fatalf("expected the text without a keyboard, got %+v", msg)
	}
}

type recordingHandler struct {
	commands []service.Command
	choices  []string
	texts    []string
}

func (h *recordingHandler) HandleCommand(_ context.Context, cmd service.Command) error {
	h.commands = append(h.commands, cmd)
	return nil
}

func (h *recordingHandler) HandleChoice(_ context.Context, userID int64, data string) error {
	h.choices = append(h.choices, data)
	return nil
}

func (h *recordingHandler) HandleText(_ context.Context, userID int64, text string) error {
	h.texts = append(h.texts, text)
	return errors.New("handler failure is logged, not fatal")
}

func privateMessage(id int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: id, FirstName: "Ann"},
		Chat: &tgbotapi.Chat{ID: id, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.Index(text, " "); i > 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func TestBot_RunRoutesUpdates(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
	handler := &recordingHandler{}
	bot := NewBot(api, handler, nopLogger{})

	group := privateMessage(9, "hi all")
	group.Chat.Type = "group"

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: privateMessage(5, "/matchme now")}
	api.updates <- tgbotapi.Update{UpdateID: 2, Message: privateMessage(5, "see you there")}
	api.updates <- tgbotapi.Update{UpdateID: 3, Message: group}
	api.updates <- tgbotapi.Update{UpdateID: 4, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 5},
		Data: "sport|s=tennis",
	}}
	close(api.updates)

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("expected nil when updates close, got %v", err)
	}

	if len(handler.commands) != 1 {
		t.Fatalf("expected one command, got %+v", handler.commands)
	}
	cmd := handler.commands[0]
	if cmd.Name != "matchme" || cmd.UserID != 5 || cmd.FirstName != "Ann" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if len(handler.texts) != 1 || handler.texts[0] != "see you there" {
		t.Fatalf("expected group chat to be ignored, got %v", handler.texts)
	}
	if len(handler.choices) != 1 || handler.choices[0] != "sport|s=tennis" {
		t.Fatalf("unexpected choices %v", handler.choices)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected the callback to be answered")
	}
	if !api.stopped {
		t.Fatalf("expected polling to stop")
	}
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	bot := NewBot(api, &recordingHandler{}, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
