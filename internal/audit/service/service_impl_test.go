package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/auditcontext"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCapturesRequestContext(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")

	ctx := auditcontext.WithRequestID(context.Background(), "req-123")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.7")
	ctx = auditcontext.WithUserAgent(ctx, "procura-test")

	entityID := env.Node.Generate()
	actorID := tenant.Admin.ProfileID
	require.NoError(t, env.Audit.Record(ctx, domain.Entry{
		CompanyID: tenant.CompanyID,
		ActorID:   &actorID,
		Action:    " " + domain.ActionIssuePO + " ",
		Entity:    "purchase_order",
		EntityID:  entityID,
		Metadata:  map[string]any{"po_number": "PO-20260302-0001", "": "dropped"},
	}))

	var row domain.AuditLog
	require.NoError(t, env.DB.Where("entity_id = ?", entityID.String()).First(&row).Error)
	assert.Equal(t, domain.ActionIssuePO, row.Action)
	assert.Equal(t, string(domain.ActorTypeUser), row.ActorType)
	assert.Equal(t, "req-123", row.Metadata["request_id"])
	assert.Equal(t, "PO-20260302-0001", row.Metadata["po_number"])
	assert.NotContains(t, row.Metadata, "")
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "10.0.0.7", *row.IPAddress)
	require.NotNil(t, row.UserAgent)
	assert.Equal(t, "procura-test", *row.UserAgent)
}

func TestRecordValidatesEntry(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	err := env.Audit.Record(ctx, domain.Entry{CompanyID: env.Node.Generate()})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	err = env.Audit.Record(ctx, domain.Entry{Action: domain.ActionCreatePR})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}

func TestListScopedToCompanyAndAdmin(t *testing.T) {
	env := testenv.New(t)
	acme := env.NewTenant(t, "acme")
	globex := env.NewTenant(t, "globex")
	ctx := context.Background()

	env.Vendor(t, acme.Admin, "one")
	env.Vendor(t, acme.Admin, "two")
	env.Vendor(t, acme.Admin, "three")
	env.Vendor(t, globex.Admin, "other")

	resp, err := env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{Action: domain.ActionCreateVendor})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 3)
	for _, log := range resp.AuditLogs {
		assert.Equal(t, acme.CompanyID, log.CompanyID)
	}

	page, err := env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		Action:     domain.ActionCreateVendor,
	})
	require.NoError(t, err)
	assert.Len(t, page.AuditLogs, 2)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextPageToken)

	_, err = env.Audit.List(ctx, acme.Finance, domain.ListAuditLogRequest{})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	start := env.Clock.Now()
	end := start.Add(-time.Hour)
	_, err = env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	_, err = env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestListFiltersByActor(t *testing.T) {
	env := testenv.New(t)
	acme := env.NewTenant(t, "acme")
	ctx := context.Background()

	env.Vendor(t, acme.Admin, "one")
	env.Vendor(t, acme.Procurer, "two")

	resp, err := env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{
		Action:  domain.ActionCreateVendor,
		ActorID: acme.Procurer.ProfileID.String(),
	})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	require.NotNil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, acme.Procurer.ProfileID, *resp.AuditLogs[0].ActorID)

	_, err = env.Audit.List(ctx, acme.Admin, domain.ListAuditLogRequest{ActorID: "someone"})
	assert.ErrorIs(t, err, domain.ErrInvalidActorID)
}
