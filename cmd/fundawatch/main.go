package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jeffrey/fundawatch/internal/fetcher"
	"github.com/jeffrey/fundawatch/internal/notifier"
	"github.com/jeffrey/fundawatch/internal/orchestrator"
	"github.com/jeffrey/fundawatch/internal/ratelimit"
	"github.com/jeffrey/fundawatch/internal/scheduler"
	"github.com/jeffrey/fundawatch/internal/store"
	"github.com/jeffrey/fundawatch/pkg/config"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log.Info("starting fundawatch")

	constrained := config.IsConstrained()
	if constrained {
		log.Info("running in resource-constrained mode")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Warn("failed to connect to redis, manual-trigger rate limiting falls back to in-process")
			redisClient = nil
		} else {
			log.Info("connected to redis")
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	st := store.New(cfg.Store.DBPath, log)

	browserPool, err := fetcher.NewBrowserPool(cfg.Scraper.BrowserPoolSize, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start browser pool")
	}
	defer browserPool.Close()

	f := fetcher.New(browserPool, fetcher.Config{
		MaxRetries: cfg.Scraper.MaxRetries,
		Timeout:    cfg.FetchTimeout(constrained),
	}, log)

	n, err := notifier.New(cfg.SMTP, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build notifier")
	}

	orch := orchestrator.New(st, f, n, log)

	sched := scheduler.New(cfg, st, orch, constrained, log)
	limiter := ratelimit.New(redisClient, cfg.ManualTriggerInterval(constrained))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}

	manual := make(chan os.Signal, 1)
	signal.Notify(manual, syscall.SIGUSR1)
	go handleManualTriggers(ctx, manual, st, sched, limiter, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	sched.Stop()
	log.Info("fundawatch stopped")
}

// handleManualTriggers fires an immediate run of every live profile
// when the process receives SIGUSR1, gated by the manual-trigger rate
// limiter. This is the process's only manual-trigger surface; the
// HTTP control plane that would normally front it is out of scope here.
// The limiter's in-flight flag is released as soon as the triggers are
// enqueued, not when the triggered cycles finish, so it does not stop a
// later manual trigger from enqueuing runs while earlier ones are still
// executing.
func handleManualTriggers(ctx context.Context, sig <-chan os.Signal, st *store.Store, sched *scheduler.Scheduler, limiter *ratelimit.Limiter, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := limiter.Allow(ctx, "local"); err != nil {
				log.WithError(err).Warn("manual trigger rejected")
				continue
			}
			doc, err := st.Load()
			if err != nil {
				log.WithError(err).Error("loading document for manual trigger")
				limiter.Release()
				continue
			}
			for id := range doc.Profiles {
				sched.Trigger(id)
			}
			log.Infof("manual trigger dispatched for %d profile(s)", len(doc.Profiles))
			limiter.Release()
		}
	}
}
