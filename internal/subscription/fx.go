package subscription

import (
	"github.com/roamio/atlas/internal/subscription/repository"
	"github.com/roamio/atlas/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
