package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	coreaudit "abitudini/gridrange/internal/core/audit"
	httperrors "abitudini/gridrange/internal/infrastructure/http"
	"abitudini/gridrange/internal/infrastructure/http/middleware"
)

// Handler serves the habit API calls recorded while handling one inbound request.
type Handler struct {
	repo coreaudit.Repository
	log  *slog.Logger
}

func NewHandler(repo coreaudit.Repository, log *slog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// FetchResponse is one audited habit API call. Headers and bodies stay in the database.
type FetchResponse struct {
	Upstream   string    `json:"upstream"`
	Operation  string    `json:"operation"`
	HabitID    *int      `json:"habitId,omitempty"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     *int      `json:"status,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	Failed     bool      `json:"failed"`
	CreatedAt  time.Time `json:"createdAt"`
}

type TrailResponse struct {
	CorrelationID string          `json:"correlationId"`
	Fetches       []FetchResponse `json:"fetches"`
}

// Trail answers GET /api/v1/audit/{correlationID}.
func (h *Handler) Trail(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(chi.URLParam(r, "correlationID"))
	if correlationID == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"correlation id is required"}, h.log)
		return
	}

	logs, err := h.repo.FindByCorrelationID(r.Context(), correlationID)
	if err != nil {
		h.log.Error("Failed to read audit trail", "correlation_id", correlationID, "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Audit trail unavailable", []string{"the audit trail could not be read"}, h.log)
		return
	}
	if len(logs) == 0 {
		httperrors.WriteError(w, http.StatusNotFound, "Audit trail not found", []string{"no habit API calls recorded for " + correlationID}, h.log)
		return
	}

	resp := TrailResponse{CorrelationID: correlationID, Fetches: make([]FetchResponse, len(logs))}
	for i, entry := range logs {
		resp.Fetches[i] = FetchResponse{
			Upstream:   entry.Upstream,
			Operation:  entry.Operation,
			HabitID:    entry.HabitID,
			Method:     entry.RequestMethod,
			URL:        entry.RequestURL,
			Status:     entry.ResponseStatus,
			DurationMs: entry.DurationMs,
			Error:      entry.ErrorMessage,
			Failed:     entry.Failed(),
			CreatedAt:  entry.CreatedAt,
		}
	}

	attrs := []any{"correlation_id", correlationID, "fetches", len(logs)}
	if token, ok := middleware.TokenFromContext(r.Context()); ok {
		if subject, err := token.Claims.GetSubject(); err == nil && subject != "" {
			attrs = append(attrs, "subject", subject)
		}
	}
	h.log.Info("Audit trail read", attrs...)

	httperrors.WriteJSON(w, http.StatusOK, resp, h.log)
}
