/**
 * @description
 * This file contains the cycle state machine transitions: completeness check
 * and settle on the current cycle, payout creation, advancement to the next
 * cycle, and group completion. All transitions run inside the caller's
 * per-group transaction; the database uniqueness constraints make every
 * mutation safe to re-run.
 *
 * @dependencies
 * - context, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
)

// evaluateCycle settles the group's current cycle if, and only if, every
// active member's contribution is paid. A complete cycle produces exactly one
// payout, then either advances the group or completes it when this was the
// final cycle. Incomplete cycles are left untouched.
func (s *Service) evaluateCycle(ctx context.Context, cs store.CycleStore, group *domain.Group, emit func(string, any)) error {
	if group.Status != domain.GroupStatusActive {
		return nil
	}
	if group.CurrentCycle < 1 || group.CurrentCycle > group.TotalCycles {
		return fmt.Errorf("%w: group_id=%s current_cycle=%d total_cycles=%d", ErrCycleLimitExceeded, group.ID, group.CurrentCycle, group.TotalCycles)
	}

	paid, err := cs.CountPaidContributions(ctx, group.ID, group.CurrentCycle)
	if err != nil {
		return fmt.Errorf("count paid contributions: %w", err)
	}
	if paid < group.TotalMembers {
		return nil
	}

	members, err := cs.GetActiveMembers(ctx, group.ID)
	if err != nil {
		return err
	}
	recipientID, err := NextRecipient(members, group.CurrentCycle, group.ID)
	if err != nil {
		return err
	}

	amount := CalculatePayout(group)
	payout := &domain.Payout{
		ID:          uuid.New(),
		GroupID:     group.ID,
		CycleNumber: group.CurrentCycle,
		RecipientID: recipientID,
		Amount:      amount,
		Status:      domain.PayoutStatusPending,
	}
	created, err := cs.InsertPayout(ctx, payout)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	if created {
		emit(routingKeyPayoutReady, domain.PayoutReadyEvent{
			GroupID:     group.ID,
			CycleNumber: group.CurrentCycle,
			RecipientID: recipientID,
			Amount:      amount,
		})
		log.Printf("level=info component=orchestrator flow=cycle_settle msg=\"cycle settled\" group_id=%s cycle=%d recipient_id=%s amount=%s",
			group.ID, group.CurrentCycle, recipientID, amount.StringFixed(2))
	} else {
		log.Printf("level=info component=orchestrator flow=cycle_settle msg=\"payout already exists; settle absorbed\" group_id=%s cycle=%d",
			group.ID, group.CurrentCycle)
	}

	if group.CurrentCycle == group.TotalCycles {
		if err := cs.SetGroupStatus(ctx, group.ID, domain.GroupStatusCompleted); err != nil {
			return fmt.Errorf("complete group: %w", err)
		}
		group.Status = domain.GroupStatusCompleted
		emit(routingKeyGroupCompleted, domain.GroupCompletedEvent{GroupID: group.ID})
		log.Printf("level=info component=orchestrator flow=cycle_settle msg=\"final cycle settled; group completed\" group_id=%s total_cycles=%d",
			group.ID, group.TotalCycles)
		return nil
	}

	next := group.CurrentCycle + 1
	if err := cs.AdvanceGroupCycle(ctx, group.ID, next); err != nil {
		return fmt.Errorf("advance group cycle: %w", err)
	}
	group.CurrentCycle = next
	if err := s.openCycle(ctx, cs, group, next); err != nil {
		return err
	}
	emit(routingKeyCycleAdvanced, domain.CycleAdvancedEvent{GroupID: group.ID, NewCycleNumber: next})
	return nil
}

// openCycle creates the pending contribution set for a cycle, one row per
// active member, each carrying the member's service-fee share and the cycle
// due date. Rows that already exist are skipped.
func (s *Service) openCycle(ctx context.Context, cs store.CycleStore, group *domain.Group, cycleNumber int) error {
	if cycleNumber < 1 || cycleNumber > group.TotalCycles {
		return fmt.Errorf("%w: group_id=%s cycle=%d total_cycles=%d", ErrCycleLimitExceeded, group.ID, cycleNumber, group.TotalCycles)
	}

	members, err := cs.GetActiveMembers(ctx, group.ID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("group %s has no active members to open cycle %d for", group.ID, cycleNumber)
	}

	feeShare := MemberServiceFeeShare(group)
	dueDate := group.CycleDueDate(cycleNumber)

	contributions := make([]domain.Contribution, 0, len(members))
	for _, m := range members {
		contributions = append(contributions, domain.Contribution{
			ID:          uuid.New(),
			GroupID:     group.ID,
			UserID:      m.UserID,
			CycleNumber: cycleNumber,
			Amount:      group.ContributionAmount,
			ServiceFee:  feeShare,
			Status:      domain.ContributionStatusPending,
			DueDate:     dueDate,
		})
	}

	created, err := cs.InsertContributions(ctx, contributions)
	if err != nil {
		return fmt.Errorf("open cycle %d: %w", cycleNumber, err)
	}
	log.Printf("level=info component=orchestrator flow=cycle_open msg=\"cycle opened\" group_id=%s cycle=%d contributions_created=%d contributions_existing=%d",
		group.ID, cycleNumber, created, len(contributions)-created)
	return nil
}

// CycleState is a read-only snapshot of a group's current cycle for the
// internal operations API.
type CycleState struct {
	Group             *domain.Group   `json:"group"`
	PaidContributions int             `json:"paid_contributions"`
	Payouts           []domain.Payout `json:"payouts"`
}

// GetGroupCycleState assembles a consistent snapshot of the group, the paid
// count for its current cycle, and its payout history.
func (s *Service) GetGroupCycleState(ctx context.Context, groupID uuid.UUID) (*CycleState, error) {
	state := &CycleState{}
	err := s.runGroupTx(ctx, groupID, func(cs store.CycleStore) error {
		group, err := cs.GetGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		state.Group = group
		if group.Status == domain.GroupStatusActive {
			paid, err := cs.CountPaidContributions(ctx, groupID, group.CurrentCycle)
			if err != nil {
				return err
			}
			state.PaidContributions = paid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payouts, err := s.repo.ListPayoutsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	state.Payouts = payouts
	return state, nil
}
