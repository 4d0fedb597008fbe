package vendors

import (
	"github.com/smallbiznis/procura/internal/vendors/repository"
	"github.com/smallbiznis/procura/internal/vendors/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vendor.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
