/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL queries to interact with the groups,
 * group_members, contributions, payouts and penalties tables.
 *
 * The uniqueness constraints declared in scripts/schema.sql are load-bearing:
 * inserts that might race use `ON CONFLICT ... DO NOTHING` and report whether
 * a row was created, so concurrent or retried orchestrator runs observe
 * "already done" instead of an error.
 *
 * @dependencies
 * - context, errors, hash/fnv, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

var (
	ErrGroupNotFound        = errors.New("group not found")
	ErrContributionNotFound = errors.New("contribution not found")
	ErrPayoutNotFound       = errors.New("payout not found")
)

const groupColumns = `id, name, contribution_amount, frequency, total_members, current_members,
	security_deposit_percentage, service_fee_percentage, penalty_daily_rate_percent, penalty_cap_percent,
	status, current_cycle, total_cycles, start_date, created_at, updated_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID, &g.Name, &g.ContributionAmount, &g.Frequency, &g.TotalMembers, &g.CurrentMembers,
		&g.SecurityDepositPercentage, &g.ServiceFeePercentage, &g.PenaltyDailyRatePercent, &g.PenaltyCapPercent,
		&g.Status, &g.CurrentCycle, &g.TotalCycles, &g.StartDate, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &g, nil
}

func queryActiveMembers(ctx context.Context, q rowQuerier, groupID uuid.UUID) ([]domain.Member, error) {
	query := `
		SELECT id, group_id, user_id, position, has_paid_security_deposit, status, joined_at
		FROM group_members
		WHERE group_id = $1 AND status = 'active'
		ORDER BY position ASC
	`
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Position, &m.HasPaidSecurityDeposit, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetGroupByID retrieves a group by its ID.
func (r *PostgresRepository) GetGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	query := fmt.Sprintf("SELECT %s FROM groups WHERE id = $1", groupColumns)
	return scanGroup(r.db.QueryRow(ctx, query, groupID))
}

// ListGroupIDsByStatus returns the ids of all groups in the given status.
// The scheduler sweep uses ids instead of full rows so each group is re-read
// fresh inside its own lock.
func (r *PostgresRepository) ListGroupIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, "SELECT id FROM groups WHERE status = $1 ORDER BY created_at ASC", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActiveMembers returns the active members of a group ordered by position.
func (r *PostgresRepository) GetActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	return queryActiveMembers(ctx, r.db, groupID)
}

// GetPayout retrieves the payout row for a (group, cycle) pair.
func (r *PostgresRepository) GetPayout(ctx context.Context, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error) {
	return getPayout(ctx, r.db, groupID, cycleNumber)
}

func getPayout(ctx context.Context, q rowQuerier, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error) {
	var p domain.Payout
	query := `
		SELECT id, group_id, cycle_number, recipient_id, amount, status, reference, created_at, updated_at
		FROM payouts
		WHERE group_id = $1 AND cycle_number = $2
	`
	err := q.QueryRow(ctx, query, groupID, cycleNumber).Scan(
		&p.ID, &p.GroupID, &p.CycleNumber, &p.RecipientID, &p.Amount, &p.Status, &p.Reference, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPayoutsByGroup returns all payouts for a group in cycle order.
func (r *PostgresRepository) ListPayoutsByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payout, error) {
	query := `
		SELECT id, group_id, cycle_number, recipient_id, amount, status, reference, created_at, updated_at
		FROM payouts
		WHERE group_id = $1
		ORDER BY cycle_number ASC
	`
	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.ID, &p.GroupID, &p.CycleNumber, &p.RecipientID, &p.Amount, &p.Status, &p.Reference, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// MarkPayoutStatus records a delivery-status update from the disbursement
// service. Completed and failed are terminal; a repeated or out-of-order
// update for a terminal payout is a no-op and reports false.
func (r *PostgresRepository) MarkPayoutStatus(ctx context.Context, groupID uuid.UUID, cycleNumber int, status, reference string) (bool, error) {
	query := `
		UPDATE payouts
		SET status = $3,
		    reference = COALESCE(NULLIF($4, ''), reference),
		    updated_at = NOW()
		WHERE group_id = $1 AND cycle_number = $2
		  AND status NOT IN ('completed', 'failed')
	`
	result, err := r.db.Exec(ctx, query, groupID, cycleNumber, status, reference)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		// Distinguish "already terminal" from "no such payout".
		if _, getErr := r.GetPayout(ctx, groupID, cycleNumber); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}

// advisoryLockKey maps a group id onto the 64-bit advisory lock keyspace.
func advisoryLockKey(groupID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(groupID[:])
	return int64(h.Sum64())
}

// WithGroupCycleLock runs fn inside a transaction holding the group's
// advisory lock. pg_advisory_xact_lock releases automatically on commit or
// rollback, so a crashed engine instance can never leave a group wedged.
func (r *PostgresRepository) WithGroupCycleLock(ctx context.Context, groupID uuid.UUID, fn func(cs CycleStore) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin group transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(groupID)); err != nil {
		return fmt.Errorf("acquire group lock: %w", err)
	}

	if err := fn(&txCycleStore{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
