package testhelpers

import (
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/config"
	"github.com/zhulik/livepoll/internal/core"
)

// NewInjector builds an injector with a quiet logger and an in-memory
// database. Suites register the services they exercise on top.
func NewInjector() *do.Injector {
	injector := do.New()

	do.ProvideValue[core.Config](injector, config.Config{
		DatabasePath_: ":memory:",
		Loglevel:      "warn",
	})

	do.Provide[logrus.FieldLogger](injector, func(_ *do.Injector) (logrus.FieldLogger, error) {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)

		return logger, nil
	})

	return injector
}
