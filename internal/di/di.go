package di

import (
	"github.com/samber/do"
	"github.com/zhulik/livepoll/internal/config"
	"github.com/zhulik/livepoll/internal/gateway"
	"github.com/zhulik/livepoll/internal/hub"
	"github.com/zhulik/livepoll/internal/lifecycle"
	"github.com/zhulik/livepoll/internal/logging"
	"github.com/zhulik/livepoll/internal/registry"
	"github.com/zhulik/livepoll/internal/storage"
)

func New() *do.Injector {
	injector := do.New()

	config.Register(injector)
	logging.Register(injector)
	storage.Register(injector)
	hub.Register(injector)
	registry.Register(injector)
	lifecycle.Register(injector)
	gateway.Register(injector)

	return injector
}
