package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/config"
	"github.com/iliyamo/seat-inventory/internal/database"
	"github.com/iliyamo/seat-inventory/internal/handler"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/pricing"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/repository/memory"
	"github.com/iliyamo/seat-inventory/internal/router"
	"github.com/iliyamo/seat-inventory/internal/service"
)

// stores groups the storage views the services need; both drivers fill it.
type stores struct {
	inventory service.Inventory
	catalog   service.Catalog
	prices    pricing.Source
	admin     interface {
		service.ExpiredHoldLister
		handler.StatusReporter
	}
	db *sql.DB
}

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rc := config.LoadRedisConfig()
	rdb := config.NewRedisClient(rc)
	if rdb == nil {
		log.Warn("redis unavailable; using in-process pricing cache, response cache and rate limit disabled", "redis", rc.String())
	} else {
		defer rdb.Close()
	}

	clk := clock.NewSystem()
	resolverOpts := []pricing.Option{pricing.WithClock(clk), pricing.WithLogger(log)}
	if rdb != nil {
		resolverOpts = append(resolverOpts, pricing.WithCache(pricing.NewRedisCache(rdb, cfg.Pricing.CachePrefix, cfg.Pricing.CacheTTL)))
	} else {
		// per-process cache: a worker that misses an invalidation converges within the TTL
		resolverOpts = append(resolverOpts, pricing.WithCache(pricing.NewMemoryCache(cfg.Pricing.CacheTTL, clk)))
	}
	prices := pricing.NewResolver(st.prices, resolverOpts...)

	holdOpts := []service.HoldOption{
		service.WithHoldTTL(cfg.Hold.TTL),
		service.WithMaxPerSession(cfg.Hold.MaxPerSession),
		service.WithClock(clk),
		service.WithPriceQuoter(prices),
		service.WithLogger(log),
	}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		holdOpts = append(holdOpts, service.WithPublisher(pub))

		consumer := queue.NewInvalidationConsumer(cfg.RabbitURL, prices, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("pricing consumer stopped", "error", err)
			}
		}()
	} else {
		log.Warn("RABBITMQ_URL not set; seats.confirmed events are not published")
	}
	holds := service.NewHoldService(st.inventory, holdOpts...)
	seating := service.NewSeatingService(st.catalog, prices, clk, log)

	sweeper := service.NewSweeper(st.inventory, st.admin, clk, log, cfg.Hold.SweepInterval, cfg.Hold.SweepBatchSize)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	e := router.New(router.Deps{
		Seating:   handler.NewSeatingHandler(seating, log),
		Holds:     handler.NewHoldHandler(holds, log),
		Admin:     handler.NewAdminHandler(seating, holds, prices, st.admin, log),
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		m := memory.New(nil)
		return stores{inventory: m, catalog: m, prices: m, admin: m}, nil
	case "mysql":
		db, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return stores{}, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		return stores{
			inventory: repository.NewInventory(db),
			catalog:   repository.NewCatalog(db),
			prices:    repository.NewPricingRepo(db),
			admin:     repository.NewAdminRepo(db),
			db:        db,
		}, nil
	}
	return stores{}, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
}
