package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
)

// handlerTimeout bounds processing of a single delivery.
const handlerTimeout = 15 * time.Second

// PaymentEventConsumer handles payment.confirmed deliveries from the queue.
type PaymentEventConsumer struct {
	svc *Service
}

func NewPaymentEventConsumer(svc *Service) *PaymentEventConsumer {
	return &PaymentEventConsumer{svc: svc}
}

// HandleMessage processes one payment-confirmation delivery. Returning true
// acks the message. Malformed payloads and data-integrity failures are acked
// after logging: redelivery can never fix them and would poison the queue.
// Everything else (transient failures exhausted) is nacked for redelivery.
func (c *PaymentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentConfirmedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=payment_consumer msg=\"failed to unmarshal payload\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := c.svc.OnPaymentConfirmed(ctx, event); err != nil {
		if errors.Is(err, ErrInvalidPaymentEvent) || errors.Is(err, store.ErrContributionNotFound) || errors.Is(err, store.ErrGroupNotFound) {
			log.Printf("level=error component=payment_consumer msg=\"unprocessable payment event dropped\" reference=%s group_id=%s err=%v",
				event.Reference, event.GroupID, err)
			return true
		}
		var gapErr *RotationGapError
		if errors.As(err, &gapErr) {
			log.Printf("level=error component=payment_consumer msg=\"rotation gap; event dropped for operator review\" group_id=%s position=%d",
				gapErr.GroupID, gapErr.Position)
			return true
		}
		log.Printf("level=error component=payment_consumer msg=\"processing error; re-queuing\" reference=%s group_id=%s err=%v",
			event.Reference, event.GroupID, err)
		return false
	}

	return true
}

// PayoutStatusConsumer handles payout.status.* deliveries from the
// disbursement service.
type PayoutStatusConsumer struct {
	svc *Service
}

func NewPayoutStatusConsumer(svc *Service) *PayoutStatusConsumer {
	return &PayoutStatusConsumer{svc: svc}
}

func (c *PayoutStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.PayoutStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=payout_consumer msg=\"failed to unmarshal payload\" err=%v", err)
		return true
	}
	event.Status = strings.TrimSpace(strings.ToLower(event.Status))

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := c.svc.OnPayoutStatus(ctx, event); err != nil {
		if errors.Is(err, ErrInvalidPayoutStatus) || errors.Is(err, store.ErrPayoutNotFound) {
			log.Printf("level=error component=payout_consumer msg=\"unprocessable payout status dropped\" group_id=%s cycle=%d status=%s err=%v",
				event.GroupID, event.CycleNumber, event.Status, err)
			return true
		}
		log.Printf("level=error component=payout_consumer msg=\"processing error; re-queuing\" group_id=%s cycle=%d err=%v",
			event.GroupID, event.CycleNumber, err)
		return false
	}

	return true
}
