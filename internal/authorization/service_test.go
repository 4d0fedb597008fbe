package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer}), db
}

func TestPermits_RoleTable(t *testing.T) {
	svc, _ := newTestService(t)

	admin := identitydomain.RoleAdmin
	procurement := identitydomain.RoleProcurement
	manager := identitydomain.RoleManager
	finance := identitydomain.RoleFinance

	cases := []struct {
		object  string
		action  string
		allowed []identitydomain.Role
	}{
		{ObjectVendor, ActionVendorCreate, []identitydomain.Role{admin, procurement}},
		{ObjectVendor, ActionVendorUpdate, []identitydomain.Role{admin, procurement}},
		{ObjectVendor, ActionVendorToggle, []identitydomain.Role{admin}},
		{ObjectVendor, ActionVendorView, []identitydomain.Role{admin, procurement, manager, finance}},
		{ObjectPurchaseRequest, ActionPurchaseRequestCreate, []identitydomain.Role{admin, procurement}},
		{ObjectPurchaseRequest, ActionPurchaseRequestSubmit, []identitydomain.Role{admin, procurement}},
		{ObjectPurchaseRequest, ActionPurchaseRequestReview, []identitydomain.Role{admin, manager}},
		{ObjectPurchaseRequest, ActionPurchaseRequestApprove, []identitydomain.Role{admin, manager}},
		{ObjectPurchaseRequest, ActionPurchaseRequestReject, []identitydomain.Role{admin, manager}},
		{ObjectPurchaseOrder, ActionPurchaseOrderCreate, []identitydomain.Role{admin, procurement}},
		{ObjectPurchaseOrder, ActionPurchaseOrderEdit, []identitydomain.Role{admin, procurement}},
		{ObjectPurchaseOrder, ActionPurchaseOrderIssue, []identitydomain.Role{admin}},
		{ObjectInvoice, ActionInvoiceUpload, []identitydomain.Role{admin}},
		{ObjectInvoice, ActionInvoiceVerify, []identitydomain.Role{finance}},
		{ObjectInvoice, ActionInvoiceMismatch, []identitydomain.Role{finance}},
		{ObjectInvoice, ActionInvoiceReject, []identitydomain.Role{finance}},
		{ObjectPayment, ActionPaymentInitiate, []identitydomain.Role{finance}},
		{ObjectMember, ActionMemberInvite, []identitydomain.Role{admin}},
		{ObjectAuditLog, ActionAuditLogView, []identitydomain.Role{admin}},
	}

	for _, tc := range cases {
		allowed := make(map[identitydomain.Role]bool, len(tc.allowed))
		for _, role := range tc.allowed {
			allowed[role] = true
		}
		for _, role := range identitydomain.Roles {
			assert.Equal(t, allowed[role], svc.Permits(role, tc.object, tc.action), "%s %s", role, tc.action)
		}
	}
}

func TestPermits_UnknownRoleOrAction(t *testing.T) {
	svc, _ := newTestService(t)

	assert.False(t, svc.Permits("", ObjectVendor, ActionVendorView))
	assert.False(t, svc.Permits("AUDITOR", ObjectVendor, ActionVendorView))
	assert.False(t, svc.Permits(identitydomain.RoleAdmin, ObjectVendor, "vendor.delete"))
}

func TestAuthorize(t *testing.T) {
	svc, db := newTestService(t)
	companyID := snowflake.ID(42)

	var before int64
	require.NoError(t, db.Table("casbin_rule").Count(&before).Error)

	t.Run("no company", func(t *testing.T) {
		err := svc.Authorize(context.Background(), identitydomain.Actor{ProfileID: 1}, ObjectVendor, ActionVendorView)
		assert.ErrorIs(t, err, identitydomain.ErrNeedsCompany)
		assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		err := svc.Authorize(context.Background(), identitydomain.Actor{}, ObjectVendor, ActionVendorView)
		assert.ErrorIs(t, err, identitydomain.ErrUnauthenticated)
	})

	t.Run("forbidden", func(t *testing.T) {
		actor := identitydomain.Actor{ProfileID: 1, CompanyID: &companyID, Role: identitydomain.RoleFinance}
		err := svc.Authorize(context.Background(), actor, ObjectPurchaseOrder, ActionPurchaseOrderIssue)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("allowed", func(t *testing.T) {
		actor := identitydomain.Actor{ProfileID: 1, CompanyID: &companyID, Role: identitydomain.RoleAdmin}
		assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectPurchaseOrder, ActionPurchaseOrderIssue))
	})

	var after int64
	require.NoError(t, db.Table("casbin_rule").Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestNewEnforcer_SeedIsIdempotent(t *testing.T) {
	_, db := newTestService(t)

	_, err := NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("casbin_rule").Count(&count).Error)
	assert.Equal(t, int64(len(DefaultPolicies())), count)
}
