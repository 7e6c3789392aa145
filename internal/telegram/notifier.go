package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/service"
)

// maxCallbackData is Telegram's limit for inline button payloads.
const maxCallbackData = 64

// Notifier sends messages to users' private chats.
type Notifier struct {
	api    API
	logger repository.Logger
}

func NewNotifier(api API, logger repository.Logger) *Notifier {
	return &Notifier{api: api, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, userID int64, text string, choices ...service.Choice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, text)
	if len(choices) > 0 {
		markup, dropped := keyboard(choices)
		for _, label := range dropped {
			err := fmt.Errorf("callback data for %q exceeds %d bytes", label, maxCallbackData)
			n.logger.Error(err, "notify", "button", label, userID)
		}
		if len(markup.InlineKeyboard) > 0 {
			msg.ReplyMarkup = markup
		}
	}
	_, err := n.api.Send(msg)
	return err
}

// keyboard lays out one button per row. Short labels such as ratings share a row.
// Buttons whose callback data Telegram would reject are left out and their
// labels returned.
func keyboard(choices []service.Choice) (markup tgbotapi.InlineKeyboardMarkup, dropped []string) {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(choices))
	compact := true
	for _, c := range choices {
		switch {
		case c.URL != "":
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(c.Label, c.URL))
		case len(c.Token) > maxCallbackData:
			dropped = append(dropped, c.Label)
			continue
		default:
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Token))
		}
		if utf8.RuneCountInString(c.Label) > 3 {
			compact = false
		}
	}
	if len(buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, dropped
	}
	if compact {
		return tgbotapi.NewInlineKeyboardMarkup(buttons), dropped
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), dropped
}
