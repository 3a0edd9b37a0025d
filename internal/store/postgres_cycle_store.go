/**
 * @description
 * Transaction-scoped implementation of the CycleStore interface. A
 * txCycleStore is only ever handed out by WithGroupCycleLock, so every method
 * here runs under the group's advisory lock and commits atomically with the
 * rest of the decide-and-write step.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

type txCycleStore struct {
	tx pgx.Tx
}

// GetGroupForUpdate re-reads the group row with a row lock so the state the
// decision is based on cannot change under the transaction.
func (s *txCycleStore) GetGroupForUpdate(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	query := "SELECT " + groupColumns + " FROM groups WHERE id = $1 FOR UPDATE"
	return scanGroup(s.tx.QueryRow(ctx, query, groupID))
}

func (s *txCycleStore) GetActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	return queryActiveMembers(ctx, s.tx, groupID)
}

// MarkContributionPaid flips a pending or overdue contribution to paid. A
// contribution that is already paid (or waived) makes the call a duplicate
// no-op rather than an error; a missing row is reported as PaymentNotFound.
func (s *txCycleStore) MarkContributionPaid(ctx context.Context, groupID, userID uuid.UUID, cycleNumber int, reference string, paidAt time.Time) (PaymentApplyResult, error) {
	query := `
		UPDATE contributions
		SET status = 'paid', paid_date = $4, payment_reference = $5, updated_at = NOW()
		WHERE group_id = $1 AND user_id = $2 AND cycle_number = $3
		  AND status IN ('pending', 'overdue')
	`
	result, err := s.tx.Exec(ctx, query, groupID, userID, cycleNumber, paidAt, reference)
	if err != nil {
		return PaymentNotFound, err
	}
	if result.RowsAffected() == 1 {
		return PaymentApplied, nil
	}

	var status string
	err = s.tx.QueryRow(ctx,
		"SELECT status FROM contributions WHERE group_id = $1 AND user_id = $2 AND cycle_number = $3",
		groupID, userID, cycleNumber,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return PaymentNotFound, nil
		}
		return PaymentNotFound, err
	}
	return PaymentDuplicate, nil
}

// InsertContributions batch-creates the contribution rows for a cycle.
// Re-running after a partial failure only creates the missing rows; the
// returned count is the number of rows actually inserted.
func (s *txCycleStore) InsertContributions(ctx context.Context, contributions []domain.Contribution) (int, error) {
	query := `
		INSERT INTO contributions (id, group_id, user_id, cycle_number, amount, service_fee, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (group_id, user_id, cycle_number) DO NOTHING
	`
	created := 0
	for _, c := range contributions {
		result, err := s.tx.Exec(ctx, query, c.ID, c.GroupID, c.UserID, c.CycleNumber, c.Amount, c.ServiceFee, c.DueDate, c.Status)
		if err != nil {
			return created, err
		}
		created += int(result.RowsAffected())
	}
	return created, nil
}

// CountPaidContributions is the completeness check: cheap and side-effect
// free so callers can run it speculatively on every event and tick.
func (s *txCycleStore) CountPaidContributions(ctx context.Context, groupID uuid.UUID, cycleNumber int) (int, error) {
	var count int
	err := s.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM contributions WHERE group_id = $1 AND cycle_number = $2 AND status = 'paid'",
		groupID, cycleNumber,
	).Scan(&count)
	return count, err
}

// ListOverduePendingContributions returns pending contributions past their
// due date that carry no late_payment penalty yet.
func (s *txCycleStore) ListOverduePendingContributions(ctx context.Context, groupID uuid.UUID, asOf time.Time) ([]domain.Contribution, error) {
	query := `
		SELECT c.id, c.group_id, c.user_id, c.cycle_number, c.amount, c.service_fee, c.due_date,
		       c.status, c.paid_date, c.payment_reference, c.created_at, c.updated_at
		FROM contributions c
		WHERE c.group_id = $1
		  AND c.status IN ('pending', 'overdue')
		  AND c.due_date < $2
		  AND NOT EXISTS (
			SELECT 1 FROM penalties p
			WHERE p.contribution_id = c.id AND p.type = 'late_payment'
		  )
		ORDER BY c.due_date ASC
	`
	rows, err := s.tx.Query(ctx, query, groupID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ID, &c.GroupID, &c.UserID, &c.CycleNumber, &c.Amount, &c.ServiceFee, &c.DueDate,
			&c.Status, &c.PaidDate, &c.PaymentReference, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func (s *txCycleStore) MarkContributionOverdue(ctx context.Context, contributionID uuid.UUID) error {
	_, err := s.tx.Exec(ctx,
		"UPDATE contributions SET status = 'overdue', updated_at = NOW() WHERE id = $1 AND status = 'pending'",
		contributionID,
	)
	return err
}

func (s *txCycleStore) GetPayout(ctx context.Context, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error) {
	return getPayout(ctx, s.tx, groupID, cycleNumber)
}

// InsertPayout creates the unique payout row for a cycle. The (group_id,
// cycle_number) constraint is the settlement guard: a concurrent settle that
// lost the race observes created=false and must not emit anything.
func (s *txCycleStore) InsertPayout(ctx context.Context, payout *domain.Payout) (bool, error) {
	query := `
		INSERT INTO payouts (id, group_id, cycle_number, recipient_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (group_id, cycle_number) DO NOTHING
	`
	result, err := s.tx.Exec(ctx, query, payout.ID, payout.GroupID, payout.CycleNumber, payout.RecipientID, payout.Amount, payout.Status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// InsertLatePenalty creates at most one late_payment penalty per
// contribution, enforced by the partial unique index on contribution_id.
func (s *txCycleStore) InsertLatePenalty(ctx context.Context, penalty *domain.Penalty) (bool, error) {
	query := `
		INSERT INTO penalties (id, user_id, group_id, contribution_id, amount, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'late_payment', $6, NOW())
		ON CONFLICT (contribution_id) WHERE type = 'late_payment' DO NOTHING
	`
	result, err := s.tx.Exec(ctx, query, penalty.ID, penalty.UserID, penalty.GroupID, penalty.ContributionID, penalty.Amount, penalty.Status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ActivateGroup moves a full forming group to active and pins its start date.
func (s *txCycleStore) ActivateGroup(ctx context.Context, groupID uuid.UUID, startDate time.Time) error {
	query := `
		UPDATE groups
		SET status = 'active', start_date = $2, current_cycle = 1, updated_at = NOW()
		WHERE id = $1 AND status = 'forming'
	`
	result, err := s.tx.Exec(ctx, query, groupID, startDate)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (s *txCycleStore) AdvanceGroupCycle(ctx context.Context, groupID uuid.UUID, newCycle int) error {
	result, err := s.tx.Exec(ctx,
		"UPDATE groups SET current_cycle = $2, updated_at = NOW() WHERE id = $1",
		groupID, newCycle,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (s *txCycleStore) SetGroupStatus(ctx context.Context, groupID uuid.UUID, status string) error {
	result, err := s.tx.Exec(ctx,
		"UPDATE groups SET status = $2, updated_at = NOW() WHERE id = $1",
		groupID, status,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}
