package identity

import (
	"github.com/smallbiznis/procura/internal/identity/repository"
	"github.com/smallbiznis/procura/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
