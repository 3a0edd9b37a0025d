/**
 * @description
 * This file contains the HTTP handlers for the cycle engine's internal API.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. The surface is operator-facing: a manual tick trigger, a
 * payment-confirmation backdoor for recovery, and a read-only cycle snapshot.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Olamability/SmartAjo-sub002/internal/app"
	"github.com/Olamability/SmartAjo-sub002/internal/domain"
	"github.com/Olamability/SmartAjo-sub002/internal/store"
)

// Handler holds the application service that handlers will use.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

type tickRunResponse struct {
	Status string `json:"status"`
	RanAt  string `json:"ran_at"`
}

// handleRunTick triggers a full cycle sweep immediately, outside the cron
// schedule. Used by operators after incidents.
func (h *Handler) handleRunTick(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if err := h.service.OnSchedulerTick(r.Context(), now); err != nil {
		log.Printf("level=error component=api msg=\"manual tick failed\" err=%v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, tickRunResponse{Status: "completed", RanAt: now.Format(time.RFC3339)})
}

// handleConfirmPayment replays a payment-confirmation event through the
// orchestrator. It exists for recovery when the queue delivery was lost.
func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var event domain.PaymentConfirmedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if event.PaidAt.IsZero() {
		event.PaidAt = time.Now().UTC()
	}

	if err := h.service.OnPaymentConfirmed(r.Context(), event); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPaymentEvent):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrGroupNotFound), errors.Is(err, store.ErrContributionNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.Printf("level=error component=api msg=\"payment confirmation failed\" reference=%s group_id=%s err=%v", event.Reference, event.GroupID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleGetCycleState returns the group's cycle snapshot: the group row, the
// paid count for the current cycle, and the payout history.
func (h *Handler) handleGetCycleState(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	state, err := h.service.GetGroupCycleState(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			http.Error(w, "Group not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api msg=\"cycle state lookup failed\" group_id=%s err=%v", groupID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
