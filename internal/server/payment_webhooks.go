package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
)

const (
	headerRazorpaySignature = "X-Razorpay-Signature"
	headerRazorpayEventID   = "X-Razorpay-Event-Id"
)

// HandleRazorpayWebhook verifies the signature over the raw body, so the payload is read unparsed.
func (s *Server) HandleRazorpayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.HandleWebhook(c.Request.Context(), paymentdomain.WebhookRequest{
		Payload:   payload,
		Signature: c.GetHeader(headerRazorpaySignature),
		EventID:   c.GetHeader(headerRazorpayEventID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
