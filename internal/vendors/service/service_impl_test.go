package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestCreateNormalizesIdentifiers(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")

	vendor, err := env.Vendors.Create(context.Background(), tenant.Procurer, domain.CreateVendorRequest{
		Name:        "  Sharma Office Supplies ",
		Email:       ptr("Accounts@Sharma.test"),
		Phone:       ptr("+91 98450-12345"),
		GSTIN:       ptr("29abcde1234f1z5"),
		PAN:         ptr("abcde1234f"),
		BankAccount: ptr("1234 5678 9012"),
		IFSC:        ptr("hdfc0001234"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sharma Office Supplies", vendor.Name)
	assert.Equal(t, "accounts@sharma.test", *vendor.Email)
	assert.Equal(t, "+919845012345", *vendor.Phone)
	assert.Equal(t, "29ABCDE1234F1Z5", *vendor.GSTIN)
	assert.Equal(t, "ABCDE1234F", *vendor.PAN)
	assert.Equal(t, "123456789012", *vendor.BankAccount)
	assert.Equal(t, "HDFC0001234", *vendor.IFSC)
	assert.Equal(t, domain.VendorTypeGoods, vendor.VendorType)
	assert.True(t, vendor.IsActive)

	var logs []auditdomain.AuditLog
	require.NoError(t, env.DB.Where("entity_id = ?", vendor.ID.String()).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionCreateVendor, logs[0].Action)
	assert.NotEqual(t, "ABCDE1234F", logs[0].Metadata["pan"])
	assert.NotEqual(t, "123456789012", logs[0].Metadata["bank_account"])
	assert.Equal(t, "Sharma Office Supplies", logs[0].Metadata["name"])
}

func TestCreateValidation(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")

	cases := []struct {
		name string
		req  domain.CreateVendorRequest
		want error
	}{
		{"blank name", domain.CreateVendorRequest{Name: " "}, domain.ErrInvalidName},
		{"bad email", domain.CreateVendorRequest{Name: "V", Email: ptr("nope")}, domain.ErrInvalidEmail},
		{"short phone", domain.CreateVendorRequest{Name: "V", Phone: ptr("12345")}, domain.ErrInvalidPhone},
		{"bad gstin", domain.CreateVendorRequest{Name: "V", GSTIN: ptr("29ABCDE1234F")}, domain.ErrInvalidGSTIN},
		{"bad pan", domain.CreateVendorRequest{Name: "V", PAN: ptr("1234567890")}, domain.ErrInvalidPAN},
		{"bad ifsc", domain.CreateVendorRequest{Name: "V", IFSC: ptr("HDFC1001234")}, domain.ErrInvalidIFSC},
		{"bad account", domain.CreateVendorRequest{Name: "V", BankAccount: ptr("12ab")}, domain.ErrInvalidBankAccount},
		{"bad type", domain.CreateVendorRequest{Name: "V", VendorType: "RENTAL"}, domain.ErrInvalidVendorType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Vendors.Create(context.Background(), tenant.Admin, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	env := testenv.New(t)
	acme := env.NewTenant(t, "acme")
	globex := env.NewTenant(t, "globex")
	ctx := context.Background()

	_, err := env.Vendors.Create(ctx, acme.Admin, domain.CreateVendorRequest{Name: "Infra Co", GSTIN: ptr("27AAPFU0939F1ZV")})
	require.NoError(t, err)

	_, err = env.Vendors.Create(ctx, acme.Admin, domain.CreateVendorRequest{Name: "Infra Co 2", GSTIN: ptr("27aapfu0939f1zv")})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.ErrorIs(t, err, domain.DuplicateFieldError("gstin"))

	_, err = env.Vendors.Create(ctx, acme.Admin, domain.CreateVendorRequest{Name: "Infra Co"})
	assert.ErrorIs(t, err, domain.DuplicateFieldError("name"))

	_, err = env.Vendors.Create(ctx, globex.Admin, domain.CreateVendorRequest{Name: "Infra Co", GSTIN: ptr("27AAPFU0939F1ZV")})
	assert.NoError(t, err)
}

func TestUpdateAndToggle(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "wipro")

	updated, err := env.Vendors.Update(ctx, tenant.Procurer, vendor.ID, domain.UpdateVendorRequest{
		ContactPerson: ptr("Priya Nair"),
		VendorType:    ptr("SERVICES"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Priya Nair", *updated.ContactPerson)
	assert.Equal(t, domain.VendorTypeServices, updated.VendorType)

	_, err = env.Vendors.ToggleActive(ctx, tenant.Procurer, vendor.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	toggled, err := env.Vendors.ToggleActive(ctx, tenant.Admin, vendor.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	_, err = env.Vendors.RequireSelectable(ctx, tenant.CompanyID, vendor.ID)
	assert.ErrorIs(t, err, domain.ErrVendorInactive)

	active, err := env.Vendors.List(ctx, tenant.Finance, domain.ListVendorRequest{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active.Vendors)

	all, err := env.Vendors.List(ctx, tenant.Finance, domain.ListVendorRequest{Search: "wip"})
	require.NoError(t, err)
	require.Len(t, all.Vendors, 1)

	assert.Equal(t, []string{
		auditdomain.ActionCreateVendor,
		auditdomain.ActionUpdateVendor,
		auditdomain.ActionToggleVendor,
	}, env.AuditActions(t, vendor.ID))
}
