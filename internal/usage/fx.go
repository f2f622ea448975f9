package usage

import (
	"github.com/roamio/atlas/internal/usage/recorder"
	"github.com/roamio/atlas/internal/usage/repository"
	"github.com/roamio/atlas/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(recorder.NewRecorder),
)
