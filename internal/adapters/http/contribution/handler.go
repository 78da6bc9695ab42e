package contribution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	appcontribution "abitudini/gridrange/internal/application/contribution"
	corecontribution "abitudini/gridrange/internal/core/contribution"
	"abitudini/gridrange/internal/core/daterange"
	ctxutil "abitudini/gridrange/internal/infrastructure/context"
	httperrors "abitudini/gridrange/internal/infrastructure/http"
)

const maxLoadBodySize = 64 << 10

// Handler bridges HTTP traffic with the contribution planner.
type Handler struct {
	service *appcontribution.Service
	log     *slog.Logger
}

// NewHandler creates a new contribution HTTP handler.
func NewHandler(service *appcontribution.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RangeResponse is the grid window chosen for a width.
type RangeResponse struct {
	Width  int    `json:"width"`
	Months int    `json:"months"`
	From   string `json:"from"`
	To     string `json:"to"`
	Days   int    `json:"days"`
}

// RequestsResponse lists the per-habit fetches planned for a width.
type RequestsResponse struct {
	RangeResponse
	Requests []corecontribution.Request `json:"requests"`
}

// LoadRequest is the body of POST /api/v1/contribution/load.
type LoadRequest struct {
	Width    *int  `json:"width"`
	HabitIDs []int `json:"habitIds"`
}

// LoadResponse carries the fetched grids in request order.
type LoadResponse struct {
	RangeResponse
	Grids []corecontribution.Grid `json:"grids"`
}

// NewRangeResponse summarizes plan for clients.
func NewRangeResponse(plan corecontribution.Plan) RangeResponse {
	return RangeResponse{
		Width:  plan.Width,
		Months: plan.Months,
		From:   daterange.FormatDate(plan.Range.From),
		To:     daterange.FormatDate(plan.Range.To),
		Days:   plan.Range.Days(),
	}
}

// Range handles GET /api/v1/contribution/range requests.
func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.planFromQuery(w, r)
	if !ok {
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, NewRangeResponse(plan), h.log)
}

// Requests handles GET /api/v1/contribution/requests requests.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.planFromQuery(w, r)
	if !ok {
		return
	}

	ids, err := appcontribution.ParseHabitIDs(r.URL.Query().Get("habits"))
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{err.Error()}, h.log)
		return
	}

	requests, err := h.service.Requests(plan, ids)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, RequestsResponse{
		RangeResponse: NewRangeResponse(plan),
		Requests:      requests,
	}, h.log)
}

// Load handles POST /api/v1/contribution/load requests.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var body LoadRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoadBodySize))
	if err := decoder.Decode(&body); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"request body is not valid JSON"}, h.log)
		return
	}
	if body.Width == nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"width is required"}, h.log)
		return
	}

	plan, grids, err := h.service.Load(r.Context(), *body.Width, body.HabitIDs)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, LoadResponse{
		RangeResponse: NewRangeResponse(plan),
		Grids:         grids,
	}, h.log)
}

// planFromQuery reads width and the optional today override. It writes the error response itself.
func (h *Handler) planFromQuery(w http.ResponseWriter, r *http.Request) (corecontribution.Plan, bool) {
	query := r.URL.Query()

	raw := strings.TrimSpace(query.Get("width"))
	if raw == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"width is required"}, h.log)
		return corecontribution.Plan{}, false
	}
	width, err := strconv.Atoi(raw)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"width must be an integer"}, h.log)
		return corecontribution.Plan{}, false
	}

	if rawToday := strings.TrimSpace(query.Get("today")); rawToday != "" {
		today, err := daterange.ParseDate(rawToday)
		if err != nil {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{err.Error()}, h.log)
			return corecontribution.Plan{}, false
		}
		return h.service.PlanAt(today, width), true
	}

	return h.service.Plan(width), true
}

// handleError maps service errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, appcontribution.ErrNoHabits), errors.Is(err, appcontribution.ErrInvalidHabitID):
		status = http.StatusBadRequest
		httperrors.WriteError(w, status, "Validation error", []string{err.Error()}, h.log)
	case errors.Is(err, appcontribution.ErrFetcherNotReady), errors.Is(err, corecontribution.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
		httperrors.WriteError(w, status, "Habit API unavailable", []string{err.Error()}, h.log)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		httperrors.WriteError(w, status, "Habit API timeout", []string{"the habit API did not answer in time"}, h.log)
	default:
		status = http.StatusBadGateway
		httperrors.WriteError(w, status, "Habit API error", []string{"contribution grids could not be fetched"}, h.log)
	}

	logAttrs := []any{
		"error", err,
		"status_code", status,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if correlationID := ctxutil.GetCorrelationID(r.Context()); correlationID != "" {
		logAttrs = append(logAttrs, "correlation_id", correlationID)
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", logAttrs...)
	} else {
		h.log.Warn("Request failed", logAttrs...)
	}
}
