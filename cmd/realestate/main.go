package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omar4917/real-estate-project/internal/catalog"
	"github.com/omar4917/real-estate-project/internal/config"
	"github.com/omar4917/real-estate-project/internal/events"
	"github.com/omar4917/real-estate-project/internal/http/handlers"
	applog "github.com/omar4917/real-estate-project/internal/log"
	"github.com/omar4917/real-estate-project/internal/obs"
	"github.com/omar4917/real-estate-project/internal/repos"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
			applog.SetOutput(mw)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := must(obs.InitTracer(ctx, "realestate", cfg.OTLPEndpoint))

	db := must(repos.OpenDB(cfg.DBDSN))
	defer db.Close()

	// Category graph cache: Redis when configured, else in-process
	var cache catalog.Cache = catalog.NewMemoryCache()
	if cfg.RedisURL != "" {
		rc := must(catalog.NewRedisCache(cfg.RedisURL))
		if err := rc.Ping(ctx); err != nil {
			log.Printf("[warn] redis unreachable, using in-process cache: %v", err)
		} else {
			defer rc.Close()
			cache = rc
			log.Printf("[cache] category graph -> redis")
		}
	}

	// Domain events: RabbitMQ when configured, else dropped
	var pub events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			log.Printf("[warn] rabbitmq unavailable, events disabled: %v", err)
		} else {
			pub = p
			log.Printf("[events] publishing to exchange %s", cfg.EventsExchange)
		}
	}
	defer pub.Close()

	deps := must(handlers.NewDeps(db, cfg, handlers.Infra{Cache: cache, Events: pub}))
	app := handlers.NewApp(deps)

	go func() {
		<-ctx.Done()
		log.Println("[http] shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Printf("[http] listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("[http] listen: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(sctx); err != nil {
		log.Printf("[otel] shutdown: %v", err)
	}
}
