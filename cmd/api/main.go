package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callserver/internal/audit"
	"callserver/internal/auth"
	"callserver/internal/blocklist"
	"callserver/internal/cache"
	"callserver/internal/callflow"
	"callserver/internal/campaign"
	"callserver/internal/config"
	"callserver/internal/httpapi"
	"callserver/internal/political"
	"callserver/internal/political/geocode"
	"callserver/internal/reporting"
	"callserver/internal/schedule"
	"callserver/internal/session"
	"callserver/internal/telephony"
	"callserver/pkg/logger"
	"callserver/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	// Political data cache backend.
	var dataCache cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		dataCache = cache.NewRedis(rdb, "political")
	case "badger":
		bdb, err := cache.OpenBadger(cfg.Cache.BadgerDir)
		if err != nil {
			log.Error("badger init failed", "err", err)
			os.Exit(1)
		}
		defer bdb.Close()
		dataCache = bdb
	default:
		dataCache = cache.NewMemory()
	}

	registry := political.NewRegistry(political.Deps{
		Cache: dataCache,
		Geo: geocode.Config{
			Provider: cfg.Geocoder.Provider,
			APIKey:   cfg.Geocoder.APIKey,
			Timeout:  cfg.Geocoder.Timeout,
		},
		DataDir:       cfg.Political.DataDir,
		OpenStatesKey: cfg.Political.OpenStatesKey,
		Log:           log,
	})

	catalog := campaign.DefaultCatalog()
	if cfg.Political.PromptFile != "" {
		catalog, err = campaign.LoadCatalog(cfg.Political.PromptFile)
		if err != nil {
			log.Error("prompt catalog load failed", "err", err, "path", cfg.Political.PromptFile)
			os.Exit(1)
		}
	}

	carrier := telephony.NewTwilio(telephony.Config{
		AccountSID: cfg.Carrier.AccountSID,
		AuthToken:  cfg.Carrier.AuthToken,
		BaseURL:    cfg.Carrier.BaseURL,
		Timeout:    cfg.Carrier.Timeout,
	})

	var limiter callflow.Limiter = callflow.NoLimiter{}
	if cfg.Calls.ConcurrencyLimit > 0 && rdb != nil {
		limiter = callflow.NewRedisLimiter(rdb, cfg.Calls.ConcurrencyLimit, cfg.Calls.LimiterTTL)
	}

	campaigns := campaign.NewPGStore(db)
	blocked := blocklist.NewPGStore(db)

	flow := &callflow.Handlers{
		Campaigns: campaigns,
		Targets:   campaign.NewPGTargetStore(db),
		Sessions:  session.NewPGStore(db),
		Cache:     dataCache,
		Political: registry,
		Carrier:   carrier,
		Blocklist: blocked,
		Schedules: schedule.NewService(schedule.NewPGStore(db), log),
		Prompts:   catalog,
		Limiter:   limiter,
		Cfg: callflow.Config{
			BaseURL:         cfg.App.BaseURL,
			RingTimeout:     cfg.Carrier.RingTimeout,
			TimeLimit:       cfg.Carrier.TimeLimit,
			LogPhoneNumbers: cfg.Calls.LogPhoneNumbers,
		},
		Log:  log,
		Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	api := httpapi.Handlers{
		Auth:          authManager,
		AdminUser:     cfg.Auth.AdminUser,
		AdminPassword: cfg.Auth.AdminPassword,
		Campaigns:     campaigns,
		Reporting:     reporting.NewService(reporting.NewPGRepo(db)),
		Blocklist:     blocked,
		Audit:         audit.NewService(audit.NewPGRepo(db)),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, flow, api, registry, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
