package health

import (
	"log/slog"
	"net/http"

	apphealth "abitudini/gridrange/internal/application/health"
	httperrors "abitudini/gridrange/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the health application service.
type Handler struct {
	service *apphealth.Service
	log     *slog.Logger
}

func NewHandler(service *apphealth.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Status answers 200 while the service can plan ranges, even with degraded dependencies.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, h.service.Status(r.Context()), h.log)
}
