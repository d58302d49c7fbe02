package main

import (
	"context"
	"kaja/app/api"
	"kaja/app/client/dexscreener"
	"kaja/app/client/raydium"
	"kaja/app/client/trader"
	"kaja/app/client/twitter"
	"kaja/app/config"
	"kaja/app/service/catalog"
	"kaja/app/service/conversation"
	"kaja/app/service/executor"
	"kaja/app/service/portfolio"
	"kaja/app/service/session"
	"kaja/app/service/social"
	"kaja/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, dexscreener.NewClient)
	do.Provide(di, raydium.NewClient)
	do.Provide(di, trader.NewClient)
	do.Provide(di, twitter.NewClient)
	do.Provide(di, session.NewRedisStore)
	do.Provide(di, session.New)
	do.Provide(di, portfolio.New)
	do.Provide(di, catalog.New)
	do.Provide(di, executor.New)
	do.Provide(di, conversation.New)
	do.Provide(di, social.New)
	do.Provide(di, api.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	if err = do.MustInvoke[*api.Server](di).Run(appCtx); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
