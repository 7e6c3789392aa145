package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/config"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/scheduler"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/service"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/telegram"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, stores, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer stores.Close()

	logger, err := config.NewLogger(settings.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	botAPI, err := tgbotapi.NewBotAPI(settings.BotToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	botAPI.Debug = settings.Debug

	notifier := telegram.NewNotifier(botAPI, logger)
	timers := scheduler.New(settings.SmartMatchWait, stores.Sessions, logger)
	matchSvc := service.NewMatchService(stores.Users, stores.Matches, timers, notifier, logger)
	dispatcher := service.NewDispatcher(matchSvc, notifier, logger, settings.WebAppURL)
	bot := telegram.NewBot(botAPI, dispatcher, logger)

	restored, err := matchSvc.RestorePending(ctx)
	if err != nil {
		logger.Error(err, "restore_smart_match", "session", "", 0)
	} else {
		logger.Info("restore_smart_match", "session", "", 0, "restored="+strconv.Itoa(restored))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		timers.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped: %v", err)
	}
}
