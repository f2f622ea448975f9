package planlimit

import (
	"github.com/roamio/atlas/internal/planlimit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("planlimit.service",
	fx.Provide(service.NewService),
)
