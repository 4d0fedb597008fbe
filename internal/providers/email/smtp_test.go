package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPProvider_SendTemplate(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.test", Port: 2525, From: "noreply@procura.test"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	provider.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := provider.SendTemplate(context.Background(), []string{"vendor@acme.test"}, "purchase_order_issued", map[string]any{
		"vendor_name":  "Acme",
		"company_name": "Buyer Co",
		"po_number":    "PO-20260101-0042",
		"currency":     "INR",
		"total_amount": "118000.00",
	}, Attachment{Filename: "PO-20260101-0042.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")})
	require.NoError(t, err)

	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.Equal(t, []string{"vendor@acme.test"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: New purchase order")
	assert.Contains(t, gotMsg, "PO-20260101-0042")
	assert.Contains(t, gotMsg, `filename="PO-20260101-0042.pdf"`)
	assert.True(t, strings.Contains(gotMsg, "multipart/mixed"))
}

func TestSMTPProvider_NoRecipients(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.test", Port: 25})
	err := provider.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSMTPProvider_UnknownTemplate(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.test", Port: 25})
	err := provider.SendTemplate(context.Background(), []string{"a@b.test"}, "missing", nil)
	assert.Error(t, err)
}
