package lifecycle

import (
	"github.com/samber/do"
)

func Register(injector *do.Injector) {
	do.Provide(injector, NewManager)
}
