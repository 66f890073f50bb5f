package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/malwarebo/switchboard/models"
)

// RoutingEventLister reads captured routing events.
type RoutingEventLister interface {
	ListByPayment(ctx context.Context, paymentID string) ([]*models.RoutingEvent, error)
}

// EventsHandler exposes the per-payment routing audit trail.
type EventsHandler struct {
	events RoutingEventLister
}

func NewEventsHandler(events RoutingEventLister) *EventsHandler {
	return &EventsHandler{events: events}
}

func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["payment_id"]

	events, err := h.events.ListByPayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id": paymentID,
		"events":     events,
		"count":      len(events),
	})
}
