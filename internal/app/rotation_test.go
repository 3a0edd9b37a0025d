package app

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

func memberAt(position int) domain.Member {
	return domain.Member{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Position: position,
		Status:   domain.MemberStatusActive,
	}
}

func TestNextRecipient_ResolvesByPosition(t *testing.T) {
	groupID := uuid.New()
	members := []domain.Member{memberAt(1), memberAt(2), memberAt(3)}

	for cycle := 1; cycle <= 3; cycle++ {
		got, err := NextRecipient(members, cycle, groupID)
		if err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", cycle, err)
		}
		if got != members[cycle-1].UserID {
			t.Fatalf("cycle %d: expected recipient %s, got %s", cycle, members[cycle-1].UserID, got)
		}
	}
}

func TestNextRecipient_OrderIndependent(t *testing.T) {
	groupID := uuid.New()
	first := memberAt(1)
	second := memberAt(2)
	members := []domain.Member{second, first}

	got, err := NextRecipient(members, 1, groupID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != first.UserID {
		t.Fatalf("expected recipient %s, got %s", first.UserID, got)
	}
}

func TestNextRecipient_GapIsDataIntegrityError(t *testing.T) {
	groupID := uuid.New()
	members := []domain.Member{memberAt(1), memberAt(3)}

	_, err := NextRecipient(members, 2, groupID)
	if err == nil {
		t.Fatal("expected an error for a missing position")
	}

	var gapErr *RotationGapError
	if !errors.As(err, &gapErr) {
		t.Fatalf("expected RotationGapError, got %T: %v", err, err)
	}
	if gapErr.Position != 2 || gapErr.GroupID != groupID {
		t.Fatalf("unexpected gap details: %+v", gapErr)
	}
}

func TestNextRecipient_EmptyMembership(t *testing.T) {
	_, err := NextRecipient(nil, 1, uuid.New())
	var gapErr *RotationGapError
	if !errors.As(err, &gapErr) {
		t.Fatalf("expected RotationGapError, got %T: %v", err, err)
	}
}
