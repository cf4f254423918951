// Package app assembles the server from config: logger, hub, auth gate,
// gateway, and the HTTP listener with graceful shutdown.
package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"gridwalk/server/internal/auth"
	"gridwalk/server/internal/config"
	servernet "gridwalk/server/internal/net"
	"gridwalk/server/internal/net/ws"
	"gridwalk/server/internal/realtime"
	"gridwalk/server/internal/telemetry"
	"gridwalk/server/logging"
)

const shutdownTimeout = 10 * time.Second

// Run blocks until ctx is cancelled or the listener fails.
func Run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("GRIDWALK_CONFIG"))
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	logging.Setup(cfg.Log)
	defer logging.Sync()

	if cfg.Auth.Secret == "" {
		return errors.New("auth secret is required; set GRIDWALK_JWT_SECRET or auth.secret")
	}

	hub := realtime.NewHub(realtime.Config{
		Sync: realtime.SyncConfig{
			ThrottleInterval: cfg.Sync.ThrottleInterval,
			PositionEpsilon:  cfg.Sync.PositionEpsilon,
			RotationEpsilon:  cfg.Sync.RotationEpsilon,
			VelocityEpsilon:  cfg.Sync.VelocityEpsilon,
		},
		Rate: realtime.LimiterConfig{
			GeneralMax:     cfg.Rate.GeneralMax,
			GeneralWindow:  cfg.Rate.GeneralWindow,
			PositionMax:    cfg.Rate.PositionMax,
			PositionWindow: cfg.Rate.PositionWindow,
		},
	})

	gate := auth.NewHMACGate([]byte(cfg.Auth.Secret))
	counters := telemetry.NewCounters()
	gateway := ws.NewGateway(hub, gate, counters, ws.Config{
		AuthTimeout: cfg.Auth.Timeout,
		ClientTTL:   cfg.ClientTTL,
	})

	gin.SetMode(gin.ReleaseMode)
	router := servernet.NewRouter(gateway, hub, counters)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
