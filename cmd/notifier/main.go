package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	notifhandler "github.com/pushcore/notifier/internal/api/handlers/notification"
	schedulehandler "github.com/pushcore/notifier/internal/api/handlers/schedule"
	"github.com/pushcore/notifier/internal/api/router"
	"github.com/pushcore/notifier/internal/api/server"
	"github.com/pushcore/notifier/internal/config"
	"github.com/pushcore/notifier/internal/executor"
	"github.com/pushcore/notifier/internal/rabbitmq/queue"
	channelrepo "github.com/pushcore/notifier/internal/repository/channel"
	notifrepo "github.com/pushcore/notifier/internal/repository/notification"
	schedulerepo "github.com/pushcore/notifier/internal/repository/schedule"
	templaterepo "github.com/pushcore/notifier/internal/repository/template"
	userrepo "github.com/pushcore/notifier/internal/repository/user"
	"github.com/pushcore/notifier/internal/scheduler"
	"github.com/pushcore/notifier/internal/sender"
	notifsvc "github.com/pushcore/notifier/internal/service/notification"
	schedulesvc "github.com/pushcore/notifier/internal/service/schedule"
	"github.com/pushcore/notifier/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewTriggerQueue(ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create trigger queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	notifications := notifrepo.NewRepository(db)
	schedules := schedulerepo.NewRepository(db)
	channels := channelrepo.NewRepository(db)
	templates := templaterepo.NewRepository(db)
	users := userrepo.NewRepository(db)

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	dispatcher := sender.NewDispatcher(cfg.Scheduler.SendTimeout)
	dispatcher.Register(sender.ChannelEmail, sender.NewEmailSender(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.From,
	))
	dispatcher.Register(sender.ChannelSMS, sender.NewTwilioSMS(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
	))
	dispatcher.Register(sender.ChannelWhatsApp, sender.NewTwilioWhatsApp(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.WhatsAppFrom,
	))
	dispatcher.Register(sender.ChannelPush, sender.NewPushSender(
		cfg.Push.GatewayURL,
		cfg.Push.APIKey,
	))

	loc, err := time.LoadLocation(cfg.Scheduler.Location)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load scheduler location")
	}

	registry := scheduler.NewCronRegistry(loc)
	lifecycle := scheduler.NewLifecycle(registry, schedules, notifications, func(id uuid.UUID) {
		if err := q.Publish(queue.TriggerMessage{NotificationID: id}, cfg.Retry); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to publish trigger")
		}
	})

	if err := lifecycle.Rebuild(ctx); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to rebuild job registry")
	}

	exec := executor.New(notifications, channels, templates, users, dispatcher, executor.Config{
		MaxRetries: cfg.Scheduler.MaxRetries,
		Backoff:    cfg.Scheduler.RetryBackoff(),
	})

	pool := worker.NewPool(q, exec, lifecycle)
	go pool.Run(ctx, cfg.Retry, cfg.Workers.Count)

	notifService := notifsvc.NewService(notifications, lifecycle, q, rdb)
	scheduleService := schedulesvc.NewService(schedules, notifications, lifecycle)

	notifHandler := notifhandler.NewHandler(notifService, val, cfg)
	scheduleHandler := schedulehandler.NewHandler(scheduleService, val)

	r := router.New(notifHandler, scheduleHandler)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	registry.Stop()

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
