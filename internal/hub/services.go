package hub

import (
	"github.com/samber/do"
	"github.com/zhulik/livepoll/internal/core"
)

func Register(injector *do.Injector) {
	do.Provide(injector, NewHub)
	do.Provide(injector, func(injector *do.Injector) (core.Broadcaster, error) {
		return do.Invoke[*Hub](injector)
	})
}
