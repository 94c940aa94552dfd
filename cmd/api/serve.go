package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/api/handlers"
	"vital-route-api-server/internal/api/routes"
	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/cache"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/events"
	"vital-route-api-server/internal/feed"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/s3"
	"vital-route-api-server/internal/socket"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Start the HTTP and websocket server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newBus(cfg config.NATSConfig) (events.Bus, error) {
	if cfg.URL == "" {
		return events.NewLocalBus(), nil
	}
	bus, err := events.NewNATSBus(cfg.URL, cfg.Subject)
	if err != nil {
		return nil, err
	}
	log.WithField("subject", cfg.Subject).Info("Sharing alert changes over NATS")
	return bus, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	gin.SetMode(cfg.Server.Mode)

	tokens, err := auth.NewManagerFromConfig(cfg.JWT)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}()

	bus, err := newBus(cfg.NATS)
	if err != nil {
		return err
	}
	defer bus.Close()

	nameCache, err := cache.NewCache(cfg.Cache, cfg.Redis)
	if err != nil {
		return err
	}
	defer nameCache.Close()
	ttl, err := cache.ParseTTL(cfg.Cache.TTL)
	if err != nil {
		return err
	}

	live := feed.New(st, bus, dispatch.NewProfileNames(st, nameCache, ttl))
	defer live.Close()

	mapsClient := maps.NewClient(cfg.Maps)
	if !mapsClient.Configured() {
		log.Warn("MAPS_API_KEY is not set. Hospital lookup and directions are disabled.")
	}

	hub := socket.NewHub()
	svc := dispatch.NewService(dispatch.Deps{
		Store:    st,
		Bus:      bus,
		Feed:     live,
		Places:   mapsClient,
		Notifier: hub,
	})

	var uploader handlers.PhotoUploader
	if cfg.S3.Enabled() {
		u, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			return err
		}
		uploader = u
	} else {
		log.Warn("S3 is not configured. Profile photos are disabled.")
	}

	router, err := routes.SetupRouter(cfg, routes.Dependencies{
		Users:    st,
		Tokens:   tokens,
		Dispatch: svc,
		Hub:      hub,
		Uploader: uploader,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down API server")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
