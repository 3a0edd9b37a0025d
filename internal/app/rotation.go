/**
 * @description
 * Rotation resolution for payout recipients. The recipient of cycle N is the
 * member at position N; this is a pure, total function over an
 * already-validated membership snapshot. A missing position means the ledger
 * is corrupt upstream, and the cycle must not settle until an operator looks
 * at it.
 */

package app

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

// RotationGapError reports that no active member occupies the payout position
// a cycle requires. It is a data-integrity failure, never retried blindly.
type RotationGapError struct {
	GroupID  uuid.UUID
	Position int
}

func (e *RotationGapError) Error() string {
	return fmt.Sprintf("no active member at position %d in group %s", e.Position, e.GroupID)
}

// NextRecipient returns the user who receives the payout for the given cycle.
func NextRecipient(members []domain.Member, cycleNumber int, groupID uuid.UUID) (uuid.UUID, error) {
	for _, m := range members {
		if m.Position == cycleNumber {
			return m.UserID, nil
		}
	}
	return uuid.Nil, &RotationGapError{GroupID: groupID, Position: cycleNumber}
}
