/**
 * @description
 * This file contains the core orchestration logic for the cycle engine. The
 * `Service` struct consumes payment-confirmation events and scheduler ticks,
 * drives the cycle state machine against the ledger store, and publishes
 * outbound events for the rest of the platform.
 *
 * Key properties:
 * - Every mutation runs inside a per-group advisory-lock transaction, so the
 *   engine tolerates concurrent, out-of-order and redelivered events, and
 *   multiple engine instances can run side by side.
 * - Transient storage failures (serialization conflicts, deadlocks, dropped
 *   connections) are retried with backoff before surfacing.
 * - Logical duplicates (already-paid contribution, already-settled cycle,
 *   already-penalized contribution) are absorbed as successful no-ops.
 * - Data-integrity failures (rotation gap, unknown contribution) propagate to
 *   the caller so operators can be alerted.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - github.com/jackc/pgx/v5/pgconn: SQLSTATE classification for retries.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
	"github.com/Olamability/SmartAjo-sub002/pkg/rabbitmq"
)

// Routing keys for outbound events, one per event kind.
const (
	routingKeyPayoutReady    = "cycle.payout.ready"
	routingKeyPenaltyApplied = "cycle.penalty.applied"
	routingKeyCycleAdvanced  = "cycle.advanced"
	routingKeyGroupCompleted = "group.completed"
)

var (
	// ErrCycleLimitExceeded is a policy violation: a cycle beyond
	// total_cycles can never open.
	ErrCycleLimitExceeded = errors.New("cycle number exceeds total cycles")
	// ErrInvalidPaymentEvent rejects malformed payment events at the boundary.
	ErrInvalidPaymentEvent = errors.New("invalid payment confirmation event")
	// ErrInvalidPayoutStatus rejects unknown payout delivery statuses.
	ErrInvalidPayoutStatus = errors.New("invalid payout status")
)

// outboundEvent buffers an event emitted during a transaction; events are
// published only after the transaction commits.
type outboundEvent struct {
	routingKey string
	payload    any
}

// Service provides the orchestration logic of the cycle engine.
type Service struct {
	repo                 store.Repository
	producer             rabbitmq.Publisher
	exchange             string
	retryAttempts        int
	retryBackoff         time.Duration
	defaultPenaltyPolicy domain.PenaltyPolicy
	sweepConcurrency     int
}

// NewService creates a new cycle engine service instance.
func NewService(
	repo store.Repository,
	producer rabbitmq.Publisher,
	exchange string,
	retryAttempts int,
	retryBackoff time.Duration,
	defaultPenaltyPolicy domain.PenaltyPolicy,
	sweepConcurrency int,
) *Service {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	if retryBackoff <= 0 {
		retryBackoff = 150 * time.Millisecond
	}
	if sweepConcurrency <= 0 {
		sweepConcurrency = 8
	}
	return &Service{
		repo:                 repo,
		producer:             producer,
		exchange:             exchange,
		retryAttempts:        retryAttempts,
		retryBackoff:         retryBackoff,
		defaultPenaltyPolicy: defaultPenaltyPolicy,
		sweepConcurrency:     sweepConcurrency,
	}
}

// OnPaymentConfirmed processes a payment-confirmation event: mark the
// matching contribution paid, then re-run the completeness check and settle
// the cycle if it just completed. Re-processing an already-paid contribution
// is a successful no-op.
func (s *Service) OnPaymentConfirmed(ctx context.Context, event domain.PaymentConfirmedEvent) error {
	if strings.TrimSpace(event.Reference) == "" || event.GroupID == uuid.Nil || event.UserID == uuid.Nil || event.CycleNumber < 1 {
		return fmt.Errorf("%w: reference=%q group_id=%s cycle=%d", ErrInvalidPaymentEvent, event.Reference, event.GroupID, event.CycleNumber)
	}

	var events []outboundEvent
	err := s.runGroupTx(ctx, event.GroupID, func(cs store.CycleStore) error {
		events = events[:0]
		emit := func(routingKey string, payload any) {
			events = append(events, outboundEvent{routingKey: routingKey, payload: payload})
		}

		group, err := cs.GetGroupForUpdate(ctx, event.GroupID)
		if err != nil {
			return err
		}

		result, err := cs.MarkContributionPaid(ctx, event.GroupID, event.UserID, event.CycleNumber, event.Reference, event.PaidAt)
		if err != nil {
			return fmt.Errorf("mark contribution paid: %w", err)
		}
		switch result {
		case store.PaymentNotFound:
			// Upstream metadata corruption; surfaced, never retried blindly.
			return fmt.Errorf("%w: group_id=%s user_id=%s cycle=%d", store.ErrContributionNotFound, event.GroupID, event.UserID, event.CycleNumber)
		case store.PaymentDuplicate:
			log.Printf("level=info component=orchestrator flow=payment_confirmed msg=\"duplicate payment event absorbed\" reference=%s group_id=%s user_id=%s cycle=%d",
				event.Reference, event.GroupID, event.UserID, event.CycleNumber)
		}

		// The settle check runs even for duplicates: it is side-effect-free
		// unless the cycle is genuinely complete and unsettled, which covers
		// recovery from a crash between payment and settlement.
		return s.evaluateCycle(ctx, cs, group, emit)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// OnSchedulerTick re-evaluates every group: forming groups are activated when
// full, active groups get the penalty sweep and a completeness/settle pass.
// Groups are independent and processed in parallel (bounded); a failure in
// one group never aborts the others.
func (s *Service) OnSchedulerTick(ctx context.Context, now time.Time) error {
	var groupErrors atomic.Int64

	formingIDs, err := s.repo.ListGroupIDsByStatus(ctx, domain.GroupStatusForming)
	if err != nil {
		return fmt.Errorf("list forming groups: %w", err)
	}
	activeIDs, err := s.repo.ListGroupIDsByStatus(ctx, domain.GroupStatusActive)
	if err != nil {
		return fmt.Errorf("list active groups: %w", err)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.sweepConcurrency)

	run := func(groupID uuid.UUID, work func(groupID uuid.UUID) error) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := work(groupID); err != nil {
				groupErrors.Add(1)
				log.Printf("level=error component=orchestrator flow=scheduler_tick msg=\"group sweep failed\" group_id=%s err=%v", groupID, err)
			}
		}()
	}

	for _, id := range formingIDs {
		run(id, func(groupID uuid.UUID) error {
			return s.activateGroupIfReady(ctx, groupID, now)
		})
	}
	for _, id := range activeIDs {
		run(id, func(groupID uuid.UUID) error {
			return s.sweepActiveGroup(ctx, groupID, now)
		})
	}
	wg.Wait()

	if n := groupErrors.Load(); n > 0 {
		return fmt.Errorf("scheduler tick finished with %d group errors", n)
	}
	return nil
}

// OnPayoutStatus records a delivery-status update from the disbursement
// service. Terminal statuses are sticky; repeated updates are no-ops.
func (s *Service) OnPayoutStatus(ctx context.Context, event domain.PayoutStatusEvent) error {
	switch event.Status {
	case domain.PayoutStatusProcessing, domain.PayoutStatusCompleted, domain.PayoutStatusFailed:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPayoutStatus, event.Status)
	}

	updated, err := s.repo.MarkPayoutStatus(ctx, event.GroupID, event.CycleNumber, event.Status, event.Reference)
	if err != nil {
		return err
	}
	if !updated {
		log.Printf("level=info component=orchestrator flow=payout_status msg=\"payout already terminal; update absorbed\" group_id=%s cycle=%d status=%s",
			event.GroupID, event.CycleNumber, event.Status)
	}
	return nil
}

// activateGroupIfReady moves a full forming group to active and opens cycle 1.
func (s *Service) activateGroupIfReady(ctx context.Context, groupID uuid.UUID, now time.Time) error {
	var events []outboundEvent
	err := s.runGroupTx(ctx, groupID, func(cs store.CycleStore) error {
		events = events[:0]
		emit := func(routingKey string, payload any) {
			events = append(events, outboundEvent{routingKey: routingKey, payload: payload})
		}

		group, err := cs.GetGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status != domain.GroupStatusForming {
			return nil
		}

		members, err := cs.GetActiveMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if len(members) < group.TotalMembers {
			return nil
		}
		for _, m := range members {
			if !m.HasPaidSecurityDeposit {
				return nil
			}
		}

		if err := cs.ActivateGroup(ctx, groupID, now); err != nil {
			return err
		}
		group.Status = domain.GroupStatusActive
		group.CurrentCycle = 1
		group.StartDate = &now

		if err := s.openCycle(ctx, cs, group, 1); err != nil {
			return err
		}
		emit(routingKeyCycleAdvanced, domain.CycleAdvancedEvent{GroupID: groupID, NewCycleNumber: 1})
		log.Printf("level=info component=orchestrator flow=group_activation msg=\"group activated\" group_id=%s members=%d", groupID, len(members))
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// sweepActiveGroup runs the penalty sweep and the completeness/settle pass
// for one active group inside a single transaction.
func (s *Service) sweepActiveGroup(ctx context.Context, groupID uuid.UUID, now time.Time) error {
	var events []outboundEvent
	err := s.runGroupTx(ctx, groupID, func(cs store.CycleStore) error {
		events = events[:0]
		emit := func(routingKey string, payload any) {
			events = append(events, outboundEvent{routingKey: routingKey, payload: payload})
		}

		group, err := cs.GetGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status != domain.GroupStatusActive {
			return nil
		}

		if err := s.applyLatePenalties(ctx, cs, group, now, emit); err != nil {
			return err
		}
		return s.evaluateCycle(ctx, cs, group, emit)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// applyLatePenalties assesses one late_payment penalty per overdue pending
// contribution. The partial unique index on penalties makes re-runs no-ops.
func (s *Service) applyLatePenalties(ctx context.Context, cs store.CycleStore, group *domain.Group, now time.Time, emit func(string, any)) error {
	overdue, err := cs.ListOverduePendingContributions(ctx, group.ID, now)
	if err != nil {
		return fmt.Errorf("list overdue contributions: %w", err)
	}

	policy := group.PenaltyPolicy(s.defaultPenaltyPolicy)
	for _, c := range overdue {
		amount := CalculatePenalty(c, policy, now)
		if amount.IsZero() {
			// Past due but not yet a whole day late.
			continue
		}

		contributionID := c.ID
		penalty := &domain.Penalty{
			ID:             uuid.New(),
			UserID:         c.UserID,
			GroupID:        group.ID,
			ContributionID: &contributionID,
			Amount:         amount,
			Type:           domain.PenaltyTypeLatePayment,
			Status:         domain.PenaltyStatusApplied,
		}
		created, err := cs.InsertLatePenalty(ctx, penalty)
		if err != nil {
			return fmt.Errorf("insert late penalty: %w", err)
		}
		if !created {
			continue
		}
		if err := cs.MarkContributionOverdue(ctx, c.ID); err != nil {
			return fmt.Errorf("mark contribution overdue: %w", err)
		}
		emit(routingKeyPenaltyApplied, domain.PenaltyAppliedEvent{
			UserID:         c.UserID,
			GroupID:        group.ID,
			ContributionID: c.ID,
			Amount:         amount,
		})
	}
	return nil
}

// runGroupTx wraps WithGroupCycleLock with transient-error retries. Anything
// that is not a serialization conflict, deadlock or connection failure
// surfaces on the first attempt.
func (s *Service) runGroupTx(ctx context.Context, groupID uuid.UUID, fn func(cs store.CycleStore) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		lastErr = s.repo.WithGroupCycleLock(ctx, groupID, fn)
		if lastErr == nil {
			return nil
		}
		if !isTransientStorageError(lastErr) || attempt == s.retryAttempts {
			break
		}
		log.Printf("level=warn component=orchestrator msg=\"transient storage error; retrying group transaction\" group_id=%s attempt=%d err=%v", groupID, attempt, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

// isTransientStorageError classifies errors that are worth retrying:
// serialization failures, deadlocks, and connection-class SQLSTATEs.
func isTransientStorageError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "57P03" {
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

// publish delivers buffered events after a successful commit. Publish
// failures are logged, not fatal: the ledger is the source of truth and
// collaborators reconcile from it.
func (s *Service) publish(ctx context.Context, events []outboundEvent) {
	if s.producer == nil {
		return
	}
	for _, ev := range events {
		if err := s.producer.Publish(ctx, s.exchange, ev.routingKey, ev.payload); err != nil {
			log.Printf("level=warn component=orchestrator msg=\"event publish failed\" routing_key=%s err=%v", ev.routingKey, err)
		}
	}
}
