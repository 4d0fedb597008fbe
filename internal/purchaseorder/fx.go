package purchaseorder

import (
	"github.com/smallbiznis/procura/internal/purchaseorder/domain"
	"github.com/smallbiznis/procura/internal/purchaseorder/repository"
	"github.com/smallbiznis/procura/internal/purchaseorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("purchaseorder.service",
	fx.Provide(domain.NewNumberGenerator),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
