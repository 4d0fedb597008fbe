package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/purchaseorder/domain"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedNumbers hands out a fixed sequence of candidates, repeating the last one.
type scriptedNumbers struct {
	mu    sync.Mutex
	seq   []int
	calls int
}

func (s *scriptedNumbers) Next(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.seq) {
		idx = len(s.seq) - 1
	}
	s.calls++
	return domain.FormatNumber(now, s.seq[idx])
}

func TestCreateFromApprovedRequest(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "dell")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "118000")

	po, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{
		PurchaseRequestID: pr.ID,
		PaymentTerms:      " Net 30 ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, po.Status)
	assert.Equal(t, vendor.ID, po.VendorID)
	assert.True(t, po.TotalAmount.Equal(decimal.NewFromInt(118000)))
	assert.Equal(t, "INR", po.Currency)
	assert.Equal(t, "Net 30", po.PaymentTerms)
	assert.Regexp(t, `^PO-20260302-\d{4}$`, po.PONumber)

	assert.Equal(t, []string{auditdomain.ActionCreatePO}, env.AuditActions(t, po.ID))
}

func TestCreateRequiresVendorAndApproval(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	withoutVendor := env.ApprovedPR(t, tenant, nil, "500")
	_, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: withoutVendor.ID})
	assert.ErrorIs(t, err, domain.ErrVendorRequired)

	vendor := env.Vendor(t, tenant.Admin, "hp")
	submitted := env.SubmittedPR(t, tenant, &vendor.ID, "500")
	_, err = env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: submitted.ID})
	assert.ErrorIs(t, err, domain.ErrNotApproved)

	_, err = env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: env.Node.Generate()})
	assert.ErrorIs(t, err, domain.ErrPurchaseRequestMissing)

	_, err = env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidPurchaseRequest)
}

func TestCreateSecondOrderConflicts(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "lenovo")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "2000")

	_, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	_, err = env.POs.Create(ctx, tenant.Admin, domain.CreateRequest{PurchaseRequestID: pr.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestConcurrentCreateYieldsOneOrder(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")

	vendor := env.Vendor(t, tenant.Admin, "acer")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "64000")

	const callers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.POs.Create(context.Background(), tenant.Procurer, domain.CreateRequest{PurchaseRequestID: pr.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			created++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	require.Len(t, errs, callers-1)
	for _, err := range errs {
		assert.True(t, apperror.IsKind(err, apperror.KindConflict), "unexpected error: %v", err)
	}

	var count int64
	require.NoError(t, env.DB.Model(&domain.PurchaseOrder{}).Where("purchase_request_id = ?", pr.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateRetriesNumberCollision(t *testing.T) {
	numbers := &scriptedNumbers{seq: []int{7, 7, 7, 8}}
	env := testenv.New(t, testenv.WithNumberGenerator(numbers))
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "asus")
	first := env.ApprovedPR(t, tenant, &vendor.ID, "100")
	second := env.ApprovedPR(t, tenant, &vendor.ID, "200")

	po1, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, "PO-20260302-0007", po1.PONumber)

	po2, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, "PO-20260302-0008", po2.PONumber)
	assert.Equal(t, 4, numbers.calls)
}

func TestCreateGivesUpAfterBoundedAttempts(t *testing.T) {
	numbers := &scriptedNumbers{seq: []int{42}}
	env := testenv.New(t, testenv.WithNumberGenerator(numbers))
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "msi")
	first := env.ApprovedPR(t, tenant, &vendor.ID, "100")
	second := env.ApprovedPR(t, tenant, &vendor.ID, "200")

	_, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: first.ID})
	require.NoError(t, err)

	_, err = env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: second.ID})
	assert.ErrorIs(t, err, domain.ErrNumberExhausted)
	assert.Equal(t, 1+env.Policy.Get().PONumberMaxAttempts, numbers.calls)
}

func TestEditOnlyDraft(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "apple")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "300000")
	po, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	notes := "Deliver to the Pune office"
	po, err = env.POs.Edit(ctx, tenant.Procurer, po.ID, domain.EditRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, po.Notes)

	_, err = env.POs.Issue(ctx, tenant.Admin, po.ID)
	require.NoError(t, err)

	terms := "Net 15"
	_, err = env.POs.Edit(ctx, tenant.Procurer, po.ID, domain.EditRequest{PaymentTerms: &terms})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))
	assert.EqualError(t, err, "Only DRAFT POs can be edited")
}

func TestIssueNotifiesVendorOnce(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	vendor := env.Vendor(t, tenant.Admin, "samsung")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "59000")
	po, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	_, err = env.POs.Issue(ctx, tenant.Procurer, po.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	issued, err := env.POs.Issue(ctx, tenant.Admin, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIssued, issued.Status)
	require.NotNil(t, issued.IssuedByID)
	assert.Equal(t, tenant.Admin.ProfileID, *issued.IssuedByID)
	require.NotNil(t, issued.IssuedAt)

	_, err = env.POs.Issue(ctx, tenant.Admin, po.ID)
	assert.ErrorIs(t, err, domain.ErrNotIssuable)

	notices := env.Notifier.PurchaseOrders()
	require.Len(t, notices, 1)
	assert.Equal(t, po.PONumber, notices[0].PONumber)
	assert.Equal(t, "billing@samsung.test", notices[0].Vendor.Email)
	assert.Equal(t, pr.Title, notices[0].Title)
	assert.True(t, notices[0].TotalAmount.Equal(decimal.NewFromInt(59000)))

	assert.Equal(t, []string{auditdomain.ActionCreatePO, auditdomain.ActionIssuePO}, env.AuditActions(t, po.ID))
}

func TestListByStatusAndVendor(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	issued := env.IssuedPO(t, tenant, "1000")

	vendor := env.Vendor(t, tenant.Admin, "brother")
	pr := env.ApprovedPR(t, tenant, &vendor.ID, "2000")
	_, err := env.POs.Create(ctx, tenant.Procurer, domain.CreateRequest{PurchaseRequestID: pr.ID})
	require.NoError(t, err)

	resp, err := env.POs.List(ctx, tenant.Finance, domain.ListRequest{Status: "ISSUED"})
	require.NoError(t, err)
	require.Len(t, resp.PurchaseOrders, 1)
	assert.Equal(t, issued.ID, resp.PurchaseOrders[0].ID)

	resp, err = env.POs.List(ctx, tenant.Finance, domain.ListRequest{VendorID: vendor.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.PurchaseOrders, 1)
	assert.Equal(t, domain.StatusDraft, resp.PurchaseOrders[0].Status)

	_, err = env.POs.List(ctx, tenant.Finance, domain.ListRequest{VendorID: "not-an-id"})
	assert.ErrorIs(t, err, domain.ErrInvalidVendor)
}
