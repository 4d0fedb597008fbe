package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePurchaseOrder(t *testing.T) {
	doc, err := New().GeneratePurchaseOrder(context.Background(), PurchaseOrderData{
		PONumber:  "PO-20260101-0042",
		IssueDate: "2026-01-01",
		Buyer:     Party{Name: "Buyer Co"},
		Vendor:    Party{Name: "Acme Supplies", TaxID: "27ABCDE1234F1Z5"},
		Currency:  "INR",
		Items:     []LineItem{{Description: "Laptops", Amount: "118000.00"}},
		Total:     "118000.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerateReceipt(t *testing.T) {
	doc, err := New().GenerateReceipt(context.Background(), ReceiptData{
		ReceiptNumber: "RCPT-01J0000000000000000000000",
		InvoiceNumber: "INV-1",
		PONumber:      "PO-20260101-0042",
		DatePaid:      "2026-01-05",
		Currency:      "INR",
		Subtotal:      "100000.00",
		CGST:          "9000.00",
		SGST:          "9000.00",
		Total:         "118000.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GenerateReceipt(ctx, ReceiptData{})
	assert.ErrorIs(t, err, context.Canceled)
}
