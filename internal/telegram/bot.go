package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/service"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler receives the decoded inbound events.
type Handler interface {
	HandleCommand(ctx context.Context, cmd service.Command) error
	HandleChoice(ctx context.Context, userID int64, data string) error
	HandleText(ctx context.Context, userID int64, text string) error
}

type Bot struct {
	api     API
	handler Handler
	logger  repository.Logger
}

func NewBot(api API, handler Handler, logger repository.Logger) *Bot {
	return &Bot{api: api, handler: handler, logger: logger}
}

// Run processes updates one at a time until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handleUpdate(ctx, update); err != nil {
				b.logger.Error(err, "handle_update", "update", strconv.Itoa(update.UpdateID), senderID(update))
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message != nil {
		return b.handleMessage(ctx, update.Message)
	}
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	if msg.IsCommand() {
		return b.handler.HandleCommand(ctx, service.Command{
			UserID:    msg.From.ID,
			Name:      msg.Command(),
			FirstName: msg.From.FirstName,
		})
	}
	if msg.Text == "" {
		return nil
	}
	return b.handler.HandleText(ctx, msg.From.ID, msg.Text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Error(err, "answer_callback", "callback", cb.ID, cb.From.ID)
	}
	return b.handler.HandleChoice(ctx, cb.From.ID, cb.Data)
}

func senderID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	default:
		return 0
	}
}
