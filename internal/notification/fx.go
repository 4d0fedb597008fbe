package notification

import (
	"github.com/smallbiznis/procura/internal/providers/email"
	"github.com/smallbiznis/procura/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	email.Module,
	pdf.Module,
	fx.Provide(
		NewDispatcher,
		func(d *Dispatcher) Notifier { return d },
	),
)
