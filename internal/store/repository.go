/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the cycle engine. By defining an
 * interface, we decouple the orchestration logic from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier
 * to test.
 *
 * The engine's concurrency discipline lives here: every per-group mutation
 * runs inside `WithGroupCycleLock`, which hands the callback a
 * transaction-scoped `CycleStore`. The lock is a Postgres advisory lock keyed
 * by the group id, so multiple engine instances coordinate through the
 * database alone.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the engine's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

// PaymentApplyResult reports what marking a contribution paid actually did.
type PaymentApplyResult int

const (
	// PaymentApplied means the contribution flipped to paid in this call.
	PaymentApplied PaymentApplyResult = iota
	// PaymentDuplicate means the contribution was already paid (or waived);
	// the call is a successful no-op.
	PaymentDuplicate
	// PaymentNotFound means no contribution row matches the event.
	PaymentNotFound
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Group reads
	GetGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error)
	ListGroupIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error)

	// Membership snapshot, owned by the membership service; position-ordered.
	GetActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)

	// Payout reads and delivery-status updates
	GetPayout(ctx context.Context, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error)
	ListPayoutsByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payout, error)
	MarkPayoutStatus(ctx context.Context, groupID uuid.UUID, cycleNumber int, status, reference string) (bool, error)

	// WithGroupCycleLock opens a transaction, acquires the group's advisory
	// lock, and runs fn against the transaction-scoped store. The transaction
	// commits iff fn returns nil; otherwise everything rolls back.
	WithGroupCycleLock(ctx context.Context, groupID uuid.UUID, fn func(cs CycleStore) error) error
}

// CycleStore is the transaction-scoped view of the ledger used for one
// decide-and-write step. All mutations the cycle state machine performs go
// through it so they commit or roll back as a unit.
type CycleStore interface {
	GetGroupForUpdate(ctx context.Context, groupID uuid.UUID) (*domain.Group, error)
	GetActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)

	// Contribution mutations
	MarkContributionPaid(ctx context.Context, groupID, userID uuid.UUID, cycleNumber int, reference string, paidAt time.Time) (PaymentApplyResult, error)
	InsertContributions(ctx context.Context, contributions []domain.Contribution) (int, error)
	CountPaidContributions(ctx context.Context, groupID uuid.UUID, cycleNumber int) (int, error)
	ListOverduePendingContributions(ctx context.Context, groupID uuid.UUID, asOf time.Time) ([]domain.Contribution, error)
	MarkContributionOverdue(ctx context.Context, contributionID uuid.UUID) error

	// Payout mutations. InsertPayout reports whether a row was created; an
	// existing row for (group_id, cycle_number) is not an error.
	GetPayout(ctx context.Context, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error)
	InsertPayout(ctx context.Context, payout *domain.Payout) (bool, error)

	// Penalty mutations. InsertLatePenalty reports whether a row was created;
	// an existing late_payment penalty for the contribution is not an error.
	InsertLatePenalty(ctx context.Context, penalty *domain.Penalty) (bool, error)

	// Group lifecycle mutations
	ActivateGroup(ctx context.Context, groupID uuid.UUID, startDate time.Time) error
	AdvanceGroupCycle(ctx context.Context, groupID uuid.UUID, newCycle int) error
	SetGroupStatus(ctx context.Context, groupID uuid.UUID, status string) error
}
