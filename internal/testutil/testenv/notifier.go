package testenv

import (
	"context"
	"sync"

	"github.com/smallbiznis/procura/internal/notification"
)

// RecordingNotifier keeps every notice it receives.
type RecordingNotifier struct {
	mu             sync.Mutex
	invitations    []notification.InvitationNotice
	purchaseOrders []notification.PurchaseOrderNotice
	payments       []notification.PaymentNotice
}

var _ notification.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) InvitationCreated(_ context.Context, notice notification.InvitationNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invitations = append(n.invitations, notice)
}

func (n *RecordingNotifier) PurchaseOrderIssued(_ context.Context, notice notification.PurchaseOrderNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchaseOrders = append(n.purchaseOrders, notice)
}

func (n *RecordingNotifier) PaymentCompleted(_ context.Context, notice notification.PaymentNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, notice)
}

func (n *RecordingNotifier) Invitations() []notification.InvitationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.InvitationNotice(nil), n.invitations...)
}

func (n *RecordingNotifier) PurchaseOrders() []notification.PurchaseOrderNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.PurchaseOrderNotice(nil), n.purchaseOrders...)
}

func (n *RecordingNotifier) Payments() []notification.PaymentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.PaymentNotice(nil), n.payments...)
}
