package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngmod/internal/bot"
	"github.com/iamwavecut/ngmod/internal/config"
	"github.com/iamwavecut/ngmod/internal/db/sqlite"
	handlers "github.com/iamwavecut/ngmod/internal/handlers/chat"
	"github.com/iamwavecut/ngmod/internal/infra"
	"github.com/iamwavecut/ngmod/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngmod/internal/lifecycle"
	"github.com/iamwavecut/ngmod/internal/moderation"
	"github.com/iamwavecut/ngmod/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	if err := run(cfg); err != nil {
		log.WithError(err).Errorln("exiting")
		os.Exit(1)
	}
	os.Exit(0)
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.Wrap(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}

	runtime := lifecycle.NewRuntime()

	obs, err := observability.Init(observability.Config{
		MetricsAddr: cfg.Observability.MetricsAddr,
		Tracing:     cfg.Observability.Tracing,
	})
	if err != nil {
		return errors.Wrap(err, "cant initialize observability")
	}
	runtime.Register("observability", obs)

	ops := telegram.NewOperations(botAPI, botAPI.Self.ID, cfg.Moderation.CapabilityTTL)
	opts := []moderation.Option{
		moderation.WithUnmuteAllParallelism(cfg.Moderation.UnmuteAllParallelism),
	}
	if cfg.Moderation.Persist {
		dir, err := infra.GetWorkDir(cfg.DotPath)
		if err != nil {
			return err
		}
		dbClient, err := sqlite.NewSQLiteClient(ctx, dir, cfg.Moderation.DBName)
		if err != nil {
			return errors.Wrap(err, "cant open moderation database")
		}
		runtime.Register("database", lifecycle.Closer(dbClient))
		opts = append(opts, moderation.WithSnapshotStore(dbClient))
	}
	store := moderation.NewStore(cfg.Moderation.DefaultWarnLimit)
	observability.RegisterChatGauges(
		func() float64 { return float64(store.Len()) },
		func() float64 { return float64(store.URLLockedCount()) },
	)
	coordinator := moderation.NewCoordinator(store, ops, opts...)

	service := bot.NewService(botAPI, botAPI.Self.ID, cfg.DefaultLanguage)
	bot.RegisterUpdateHandler("moderator", handlers.NewModerator(service, coordinator, ops, handlers.ModeratorConfig{
		OwnerID:      cfg.OwnerID,
		MentionChunk: cfg.Moderation.MentionChunk,
	}))
	poller := bot.NewPoller(botAPI, bot.NewUpdateProcessor(service, cfg.EnabledHandlers), cfg.UpdateWorkers)
	runtime.Register("poller", poller)

	if err := runtime.Start(ctx); err != nil {
		return err
	}
	log.WithField("bot", botAPI.Self.UserName).Infoln("moderation bot started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Infoln("shutdown signal received")
	case <-infra.MonitorExecutable(ctx):
		log.Errorln("executable file was modified")
	case runErr = <-poller.Err():
	}

	return finish(runErr, runtime.Shutdown(shutdownTimeout))
}

func finish(runErr, stopErr error) error {
	if runErr != nil {
		if stopErr != nil {
			log.WithError(stopErr).Warnln("shutdown incomplete")
		}
		return errors.WithMessage(runErr, "poller stopped")
	}
	return stopErr
}
