package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// HandleWebhook applies a signed gateway event. Unknown orders and repeated deliveries are acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, req domain.WebhookRequest) error {
	provider := s.gateway.Provider()
	if err := s.gateway.VerifyWebhook(req.Payload, req.Signature); err != nil {
		s.metrics.RecordPaymentEvent(ctx, provider, "signature_invalid")
		return err
	}
	event, err := s.gateway.ParseWebhook(req.Payload)
	if err != nil {
		return err
	}
	s.metrics.RecordPaymentEvent(ctx, provider, event.Type)

	switch event.Type {
	case domain.EventPaymentCaptured, domain.EventOrderPaid, domain.EventPaymentFailed:
	default:
		s.log.Debug("ignoring webhook event", zap.String("event", event.Type))
		return nil
	}

	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		eventID = event.ID
	}
	if eventID == "" || event.OrderID == "" {
		return domain.ErrInvalidWebhook
	}

	seen, err := s.repo.EventExists(ctx, provider, eventID)
	if err != nil {
		return apperror.Internal(err)
	}
	if seen {
		s.log.Info("duplicate webhook delivery", zap.String("event_id", eventID))
		return nil
	}

	payment, err := s.repo.FindByOrderIDAnyCompany(ctx, event.OrderID)
	if err != nil {
		return apperror.Internal(err)
	}
	if payment == nil {
		s.log.Warn("webhook for unknown order", zap.String("order_id", event.OrderID), zap.String("event", event.Type))
		return nil
	}

	switch event.Type {
	case domain.EventPaymentFailed:
		reason := strings.TrimSpace(event.ErrorDescription)
		if reason == "" {
			reason = "payment failed at gateway"
		}
		err = s.markFailed(ctx, payment, reason, nil)
	default:
		_, err = s.settle(ctx, payment, event.PaymentID, "", nil)
	}
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindConflict, apperror.KindInvalidTransition:
			// Retrying the delivery cannot change the outcome.
			s.log.Warn("webhook not applied",
				zap.String("event_id", eventID),
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err),
			)
		default:
			return err
		}
	}

	_, err = s.repo.InsertEvent(ctx, &domain.Event{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       event.Type,
		OrderID:         event.OrderID,
		Payload:         datatypes.JSONMap(event.Raw),
		ReceivedAt:      s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("store webhook event", zap.String("event_id", eventID), zap.Error(err))
	}
	return nil
}
