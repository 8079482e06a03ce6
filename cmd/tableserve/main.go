package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tableserve/internal/api"
	"tableserve/internal/config"
	"tableserve/internal/logging"
	"tableserve/internal/notifier"
	"tableserve/internal/order"
	"tableserve/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("service failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := storage.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Str("host", cfg.Database.Host).Msg("database connected")

	hub := notifier.NewHub()
	targets := []notifier.Publisher{hub}

	if cfg.RabbitMQ.Enabled {
		amqpPub, err := notifier.NewAMQPPublisher(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		targets = append(targets, amqpPub)
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("rabbitmq connected")
	}

	store := storage.NewOrderStore(pool)
	orders := order.NewService(store, notifier.NewFanout(targets...))
	auth := api.NewStaticTokens(cfg.Staff.Tokens)
	server := api.NewServer(cfg.Server.Addr(), orders, hub, auth, pool)

	go func() {
		_ = hub.Run(ctx)
	}()

	return server.Run(ctx, cfg.Server.ShutdownTimeout)
}
