package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

func TestPaymentEventConsumer_AcksMalformedPayload(t *testing.T) {
	fs := newFakeStore()
	consumer := NewPaymentEventConsumer(newTestService(fs, &fakePublisher{}))

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Fatal("expected malformed payload to be acked, not re-queued")
	}
}

func TestPaymentEventConsumer_AcksUnprocessableEvent(t *testing.T) {
	fs := newFakeStore()
	consumer := NewPaymentEventConsumer(newTestService(fs, &fakePublisher{}))

	// A structurally valid event for a group that does not exist: redelivery
	// can never fix it, so it must be dropped.
	body, _ := json.Marshal(domain.PaymentConfirmedEvent{
		Reference:   "pay-123",
		GroupID:     uuid.New(),
		UserID:      uuid.New(),
		CycleNumber: 1,
		PaidAt:      time.Now().UTC(),
	})
	if !consumer.HandleMessage(body) {
		t.Fatal("expected unprocessable event to be acked, not re-queued")
	}
}

func TestPaymentEventConsumer_ProcessesValidEvent(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &fakePublisher{})
	consumer := NewPaymentEventConsumer(svc)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	group := seedActiveGroup(fs, 3, start)

	body, _ := json.Marshal(paymentFor(fs, group, 1, 1))
	if !consumer.HandleMessage(body) {
		t.Fatal("expected valid event to be acked")
	}

	paid, _ := fs.CountPaidContributions(context.Background(), group.ID, 1)
	if paid != 1 {
		t.Fatalf("expected 1 paid contribution, got %d", paid)
	}
}

func TestPaymentEventConsumer_RequeuesOnTransientExhaustion(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &fakePublisher{})
	consumer := NewPaymentEventConsumer(svc)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	group := seedActiveGroup(fs, 3, start)
	fs.transientFailures = 10

	body, _ := json.Marshal(paymentFor(fs, group, 1, 1))
	if consumer.HandleMessage(body) {
		t.Fatal("expected transient exhaustion to be nacked for redelivery")
	}
}

func TestPayoutStatusConsumer_NormalizesAndApplies(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &fakePublisher{})
	consumer := NewPayoutStatusConsumer(svc)
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	group := seedActiveGroup(fs, 2, start)

	fs.payouts = append(fs.payouts, &domain.Payout{
		ID:          uuid.New(),
		GroupID:     group.ID,
		CycleNumber: 1,
		RecipientID: fs.members[group.ID][0].UserID,
		Status:      domain.PayoutStatusPending,
	})

	body, _ := json.Marshal(map[string]any{
		"group_id":     group.ID,
		"cycle_number": 1,
		"status":       " Completed ",
		"reference":    "disb-9",
	})
	if !consumer.HandleMessage(body) {
		t.Fatal("expected valid status event to be acked")
	}
	if fs.payouts[0].Status != domain.PayoutStatusCompleted {
		t.Fatalf("expected payout completed, got %s", fs.payouts[0].Status)
	}
	if fs.payouts[0].Reference == nil || *fs.payouts[0].Reference != "disb-9" {
		t.Fatal("expected disbursement reference to be recorded")
	}
}

func TestPayoutStatusConsumer_AcksUnknownStatus(t *testing.T) {
	fs := newFakeStore()
	consumer := NewPayoutStatusConsumer(newTestService(fs, &fakePublisher{}))

	body, _ := json.Marshal(domain.PayoutStatusEvent{
		GroupID:     uuid.New(),
		CycleNumber: 1,
		Status:      "refunded",
	})
	if !consumer.HandleMessage(body) {
		t.Fatal("expected unknown status to be acked, not re-queued")
	}
}
