package http

import (
	"fmt"
	"net/http"

	"blog-lab/errors"
	"blog-lab/hub"
	"blog-lab/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// OpsHandler is the admin-only operational surface: runtime stats and
// forced disconnects.
type OpsHandler struct {
	notifications *hub.NotificationHub
	rooms         *hub.RoomRegistry
	monitoring    *observability.MonitoringManager
}

func NewOpsHandler(notifications *hub.NotificationHub, rooms *hub.RoomRegistry, monitoring *observability.MonitoringManager) *OpsHandler {
	return &OpsHandler{notifications: notifications, rooms: rooms, monitoring: monitoring}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.adminOnly)
	r.Get("/stats", h.Stats)
	r.Post("/connections/{id}/disconnect", h.Disconnect)
	return r
}

func (h *OpsHandler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).Role.IsAdmin() {
			renderError(w, r, fmt.Errorf("%w: admin only", errors.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.monitoring.GetLatest())
}

// Disconnect force-closes one connection wherever it lives; unknown ids
// are a no-op by design of the hubs, so the endpoint is idempotent.
func (h *OpsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, fmt.Errorf("%w: invalid connection id", errors.ErrInvalidInput))
		return
	}
	h.notifications.Disconnect(id)
	h.rooms.Disconnect(id)
	render.NoContent(w, r)
}
