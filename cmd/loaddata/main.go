// Command loaddata warms the political data cache from the bundled
// CSV datasets. Run it after deploys that ship updated legislator or
// district files, and on first boot of a fresh cache backend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"callserver/internal/cache"
	"callserver/internal/config"
	"callserver/internal/political"
	"callserver/internal/political/geocode"
	"callserver/pkg/logger"
	"callserver/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	var dataCache cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
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
		// An in-memory cache dies with the process; loading into it
		// from a one-shot command would be useless.
		log.Error("loaddata requires CACHE_BACKEND=redis or badger")
		os.Exit(1)
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

	n, err := registry.LoadAll(ctx)
	if err != nil {
		log.Error("data load failed", "err", err, "keys_loaded", n)
		os.Exit(1)
	}
	log.Info("data load complete", "keys_loaded", n, "countries", registry.Countries())
}
