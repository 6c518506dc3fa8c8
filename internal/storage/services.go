package storage

import (
	"github.com/samber/do"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/storage/sqlite"
)

func Register(injector *do.Injector) {
	do.Provide(injector, func(injector *do.Injector) (core.Storage, error) {
		return sqlite.NewStorage(injector)
	})
}
