package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	coreaudit "abitudini/gridrange/internal/core/audit"
	"abitudini/gridrange/internal/infrastructure/http/middleware"
	"abitudini/gridrange/internal/testutil"
)

func intPtr(v int) *int { return &v }

func serveTrail(handler *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/audit/{correlationID}", handler.Trail)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Trail(t *testing.T) {
	createdAt := time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)
	repo := &testutil.MockAuditRepository{
		FindByCorrelationIDFunc: func(_ context.Context, correlationID string) ([]coreaudit.FetchLog, error) {
			if correlationID != "req-123" {
				t.Errorf("expected correlation id req-123, got %q", correlationID)
			}
			return []coreaudit.FetchLog{
				{
					CorrelationID:  correlationID,
					Upstream:       "habit-api",
					Operation:      "GetContributionGrid",
					HabitID:        intPtr(3),
					RequestMethod:  http.MethodGet,
					RequestURL:     "https://habits.example.com/api/habits/3/contribution?from=2024-10-15&to=2025-01-15",
					ResponseStatus: intPtr(http.StatusOK),
					DurationMs:     12,
					CreatedAt:      createdAt,
				},
				{
					CorrelationID: correlationID,
					Upstream:      "habit-api",
					Operation:     "GetContributionGrid",
					HabitID:       intPtr(4),
					RequestMethod: http.MethodGet,
					RequestURL:    "https://habits.example.com/api/habits/4/contribution?from=2024-10-15&to=2025-01-15",
					ErrorMessage:  "connection refused",
					CreatedAt:     createdAt,
				},
			}, nil
		},
	}

	w := serveTrail(NewHandler(repo, testutil.NewNullLogger()), httptest.NewRequest(http.MethodGet, "/api/v1/audit/req-123", nil))

	var got TrailResponse
	testutil.DecodeJSON(t, w, http.StatusOK, &got)

	if got.CorrelationID != "req-123" {
		t.Errorf("expected correlation id req-123, got %q", got.CorrelationID)
	}
	if len(got.Fetches) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(got.Fetches))
	}
	if first := got.Fetches[0]; first.Failed || first.Status == nil || *first.Status != http.StatusOK || *first.HabitID != 3 {
		t.Errorf("unexpected first fetch %+v", first)
	}
	if second := got.Fetches[1]; !second.Failed || second.Error != "connection refused" || second.Status != nil {
		t.Errorf("unexpected second fetch %+v", second)
	}
	if !got.Fetches[0].CreatedAt.Equal(createdAt) {
		t.Errorf("expected createdAt %v, got %v", createdAt, got.Fetches[0].CreatedAt)
	}
}

func TestHandler_Trail_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		find       func(context.Context, string) ([]coreaudit.FetchLog, error)
		wantStatus int
	}{
		{name: "blank id", path: "/api/v1/audit/%20", wantStatus: http.StatusBadRequest},
		{name: "unknown id", path: "/api/v1/audit/req-missing", wantStatus: http.StatusNotFound},
		{
			name: "repository failure",
			path: "/api/v1/audit/req-123",
			find: func(context.Context, string) ([]coreaudit.FetchLog, error) {
				return nil, errors.New("connection reset")
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &testutil.MockAuditRepository{FindByCorrelationIDFunc: tt.find}
			w := serveTrail(NewHandler(repo, testutil.NewNullLogger()), httptest.NewRequest(http.MethodGet, tt.path, nil))

			body := testutil.DecodeError(t, w, tt.wantStatus)
			if body.Message == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestHandler_Trail_LogsTokenSubject(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	repo := &testutil.MockAuditRepository{
		FindByCorrelationIDFunc: func(_ context.Context, correlationID string) ([]coreaudit.FetchLog, error) {
			return []coreaudit.FetchLog{{CorrelationID: correlationID, RequestMethod: http.MethodGet}}, nil
		},
	}

	token := &jwt.Token{Claims: jwt.MapClaims{"sub": "ops@abitudini"}, Valid: true}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/req-123", nil)
	req = req.WithContext(middleware.WithToken(req.Context(), token))

	w := serveTrail(NewHandler(repo, log), req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), "subject=ops@abitudini") {
		t.Errorf("expected subject in log, got %q", buf.String())
	}
}
