package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"raffle-service/cache"
	"raffle-service/config"
	"raffle-service/controller"
	"raffle-service/notification"
	"raffle-service/routes"
	"raffle-service/service"
	"raffle-service/storage"
	"raffle-service/store"
	"raffle-service/utils"
)

func main() {
	utils.InitializeViper("config", "yml")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	utils.InitializeLogger(cfg.LogLevel, cfg.LogFile)
	config.ServiceName = cfg.ServiceName
	ctx := context.Background()

	var db store.Store = store.NewMemory()
	if cfg.StoreDriver == "postgres" {
		pool, err := config.ConnectDb(ctx, config.LoadDatabaseConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("database unavailable")
		}
		defer pool.Close()
		db = store.NewPostgres(pool)
	} else {
		log.Warn().Msg("using the in-memory store, data is lost on restart")
	}

	var locker service.Locker
	var events service.TicketEvents
	if cfg.Redis.Enabled {
		client := config.NewRedis(cfg.Redis)
		defer client.Close()
		locker = cache.NewRedisLocker(client)
		events = cache.NewRedisPublisher(client)
	}

	renderer, err := notification.NewRenderer(cfg.Notification.Locale, cfg.Location)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load notification templates")
	}
	var channel notification.Channel
	switch cfg.Notification.Driver {
	case "email":
		channel = notification.NewMailer(notification.MailerConfig{
			ApiKey:   cfg.Resend.ApiKey,
			From:     cfg.Resend.From,
			Endpoint: cfg.Resend.Endpoint,
		}, renderer)
	case "sms":
		tx, err := config.InitializeSMPP(cfg.SMPP)
		if err != nil {
			log.Fatal().Err(err).Msg("sms gateway unavailable")
		}
		defer tx.Close()
		channel = notification.NewSMSChannel(tx, cfg.SMPP.Source, renderer)
	default:
		channel = notification.NewLogChannel(renderer)
	}

	receipts, err := storage.NewDiskReceiptStorage(cfg.Receipts.Dir, cfg.Receipts.PublicURL, cfg.Receipts.MaxSize)
	if err != nil {
		log.Fatal().Err(err).Msg("receipt storage unavailable")
	}

	window := service.WindowPolicy{Cutoff: cfg.Cutoff, MinDuration: cfg.MinDuration}
	links := service.Links{BaseURL: cfg.BaseURL}
	dispatcher := service.NewDispatcher(channel, cfg.Notification.Delay)
	ctl := &controller.Controller{
		ServiceName:  cfg.ServiceName,
		Lotteries:    service.NewLotteryService(db, window, cfg.Location),
		Reservations: service.NewReservationService(db, window, events),
		Verification: service.NewVerificationService(db, dispatcher, receipts, links),
		Draws:        service.NewDrawEngine(db, dispatcher, locker, links),
		Receipts:     receipts,
	}
	server := routes.InitRoutes(ctl, routes.Options{
		AllowOrigins: cfg.AllowOrigins,
		BodyLimit:    int(cfg.Receipts.MaxSize) + 1024*1024,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		if err := server.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("Service", cfg.ServiceName).Str("port", cfg.Port).Msg("listening")
	if err := server.Listen("0.0.0.0:" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
