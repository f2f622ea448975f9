package apikey

import (
	"github.com/roamio/atlas/internal/apikey/repository"
	"github.com/roamio/atlas/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
