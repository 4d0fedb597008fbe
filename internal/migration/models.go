package migration

import (
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	companydomain "github.com/smallbiznis/procura/internal/company/domain"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/procura/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	podomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
	prdomain "github.com/smallbiznis/procura/internal/purchaserequest/domain"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
)

// Models lists every persisted table in dependency order.
func Models() []any {
	return []any{
		&identitydomain.Profile{},
		&companydomain.Company{},
		&companydomain.CompanyMember{},
		&companydomain.Invitation{},
		&vendordomain.Vendor{},
		&prdomain.PurchaseRequest{},
		&prdomain.Approval{},
		&podomain.PurchaseOrder{},
		&invoicedomain.Invoice{},
		&paymentdomain.Payment{},
		&paymentdomain.Event{},
		&auditdomain.AuditLog{},
	}
}
