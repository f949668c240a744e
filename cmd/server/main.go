package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/app"
	"github.com/iliyamo/box-office/internal/config"
	"github.com/iliyamo/box-office/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("read .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log := logrus.WithFields(logrus.Fields{"env": cfg.Env, "store": cfg.StoreDriver})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, cfg.AutoMigrate)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and metrics cache disabled")
	}

	a := app.New(cfg, log, app.Options{Store: store, Redis: rdb})
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("close")
		}
	}()

	if err := a.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped")
		return
	}
	log.Info("server stopped")
}
