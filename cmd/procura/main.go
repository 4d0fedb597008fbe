package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/audit"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/company"
	"github.com/smallbiznis/procura/internal/config"
	"github.com/smallbiznis/procura/internal/distlock"
	"github.com/smallbiznis/procura/internal/identity"
	"github.com/smallbiznis/procura/internal/invoice"
	"github.com/smallbiznis/procura/internal/migration"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/internal/observability"
	"github.com/smallbiznis/procura/internal/payment"
	"github.com/smallbiznis/procura/internal/purchaseorder"
	"github.com/smallbiznis/procura/internal/purchaserequest"
	"github.com/smallbiznis/procura/internal/ratelimit"
	"github.com/smallbiznis/procura/internal/scheduler"
	"github.com/smallbiznis/procura/internal/server"
	"github.com/smallbiznis/procura/internal/vendors"
	"github.com/smallbiznis/procura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		distlock.Module,
		ratelimit.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Functional Domains
		authorization.Module,
		audit.Module,
		identity.Module,
		company.Module,
		vendors.Module,
		purchaserequest.Module,
		purchaseorder.Module,
		invoice.Module,
		payment.Module,
		notification.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
