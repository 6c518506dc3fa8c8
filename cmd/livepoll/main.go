package main

import (
	"context"
	"errors"
	"net/http"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/di"
	"github.com/zhulik/livepoll/internal/gateway"
	"github.com/zhulik/livepoll/internal/lifecycle"
)

func main() {
	godotenv.Load() //nolint:errcheck

	injector := di.New()
	logger := do.MustInvoke[logrus.FieldLogger](injector).WithField("component", "main")

	logger.Info("Starting...")

	server := do.MustInvoke[*gateway.Server](injector)
	manager := do.MustInvoke[*lifecycle.Manager](injector)

	for service, err := range injector.HealthCheck() {
		if err != nil {
			logger.WithFields(logrus.Fields{
				"component": service,
			}).WithError(err).Fatal("Health check failed")
		}
	}

	// A poll left ACTIVE by a previous run gets its auto-close timer
	// re-armed, or is closed right away if its time already elapsed.
	if err := manager.RestoreSchedule(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to restore poll schedule")
	}

	go func() {
		err := server.Run()

		if errors.Is(err, http.ErrServerClosed) {
			return
		}

		logger.WithError(err).Fatal("Failed to run server")
	}()

	logger.Info("Running...")

	err := injector.ShutdownOnSignals(syscall.SIGINT, syscall.SIGTERM)
	if err != nil {
		logger.WithError(err).Fatal("Failed to shutdown")
	}
}
