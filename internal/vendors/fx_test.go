package vendors_test

import (
	"context"
	"testing"

	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/smallbiznis/procura/internal/vendors"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleResolvesService(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")

	var svc vendordomain.Service
	app := fx.New(
		fx.NopLogger,
		fx.Supply(env.DB, env.Log, env.Node),
		fx.Provide(
			func() clock.Clock { return env.Clock },
			func() authorization.Service { return env.Authz },
			func() auditdomain.Service { return env.Audit },
		),
		vendors.Module,
		fx.Populate(&svc),
	)
	require.NoError(t, app.Err())

	created, err := svc.Create(context.Background(), tenant.Admin, vendordomain.CreateVendorRequest{Name: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, tenant.CompanyID, created.CompanyID)
}

