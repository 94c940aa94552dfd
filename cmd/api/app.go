package main

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/logger"
	"vital-route-api-server/internal/store"
	"vital-route-api-server/internal/store/memstore"
	"vital-route-api-server/internal/store/mongostore"
)

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigDir)
	if err != nil {
		return cfg, fmt.Errorf("could not load config: %w", err)
	}
	if err := logger.Setup(cfg.Log); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openStore connects the backend named by storage.driver.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		log.Warn("Using the in-memory store. Data is lost on restart.")
		return memstore.New(), nil
	case "", "mongo":
		st, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			st.Close(ctx)
			return nil, err
		}
		log.WithField("db", cfg.Mongo.DBName).Info("Connected to MongoDB")
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}
