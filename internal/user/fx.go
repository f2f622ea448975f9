package user

import (
	"github.com/roamio/atlas/internal/user/repository"
	"github.com/roamio/atlas/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
