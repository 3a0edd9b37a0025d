package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Olamability/SmartAjo-sub002/internal/app"
	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
)

// emptyRepo satisfies store.Repository with an empty ledger; enough to boot
// the service for routing and auth tests.
type emptyRepo struct{}

func (emptyRepo) GetGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	return nil, store.ErrGroupNotFound
}

func (emptyRepo) ListGroupIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error) {
	return nil, nil
}

func (emptyRepo) GetActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	return nil, nil
}

func (emptyRepo) GetPayout(ctx context.Context, groupID uuid.UUID, cycleNumber int) (*domain.Payout, error) {
	return nil, store.ErrPayoutNotFound
}

func (emptyRepo) ListPayoutsByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payout, error) {
	return nil, nil
}

func (emptyRepo) MarkPayoutStatus(ctx context.Context, groupID uuid.UUID, cycleNumber int, status, reference string) (bool, error) {
	return false, store.ErrPayoutNotFound
}

func (emptyRepo) WithGroupCycleLock(ctx context.Context, groupID uuid.UUID, fn func(cs store.CycleStore) error) error {
	return store.ErrGroupNotFound
}

func newTestRouter(t *testing.T, internalKey string) http.Handler {
	t.Helper()
	svc := app.NewService(emptyRepo{}, nil, "smartajo.events", 1, time.Millisecond, domain.PenaltyPolicy{
		DailyRatePercent: decimal.NewFromInt(5),
		CapPercent:       decimal.NewFromInt(50),
	}, 1)
	return NewRouter(NewHandler(svc), internalKey)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInternalRoutes_RequireAPIKey(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/ticks/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/ticks/run", nil)
	req.Header.Set("X-Internal-API-Key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestRunTick_EmptyLedgerSucceeds(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/ticks/run", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "completed") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestConfirmPayment_RejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/payments/confirm", strings.NewReader("{not json"))
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmPayment_RejectsInvalidEvent(t *testing.T) {
	router := newTestRouter(t, "secret")

	// Structurally valid JSON missing the reference.
	body := `{"group_id":"` + uuid.New().String() + `","user_id":"` + uuid.New().String() + `","cycle_number":1}`
	req := httptest.NewRequest(http.MethodPost, "/internal/payments/confirm", strings.NewReader(body))
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetCycleState_InvalidGroupID(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/internal/groups/not-a-uuid/cycle", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCycleState_UnknownGroup(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/internal/groups/"+uuid.New().String()+"/cycle", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInternalAuth_DisabledWhenKeyUnset(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/ticks/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when auth disabled, got %d", rec.Code)
	}
}
