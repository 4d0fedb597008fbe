package purchaserequest

import (
	"github.com/smallbiznis/procura/internal/purchaserequest/repository"
	"github.com/smallbiznis/procura/internal/purchaserequest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("purchaserequest.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
