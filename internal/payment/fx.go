package payment

import (
	"github.com/smallbiznis/procura/internal/payment/adapters/razorpay"
	"github.com/smallbiznis/procura/internal/payment/repository"
	"github.com/smallbiznis/procura/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(razorpay.New),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
