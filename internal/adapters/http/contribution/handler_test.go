package contribution

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appcontribution "abitudini/gridrange/internal/application/contribution"
	corecontribution "abitudini/gridrange/internal/core/contribution"
	"abitudini/gridrange/internal/testutil"
)

var testNow = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

func newTestHandler(fetcher corecontribution.GridFetcher) *Handler {
	service := appcontribution.NewService(appcontribution.Options{
		Clock:   func() time.Time { return testNow },
		BaseURL: "https://habits.example.com",
		Fetcher: fetcher,
		Logger:  testutil.NewNullLogger(),
	})
	return NewHandler(service, testutil.NewNullLogger())
}

func TestHandler_Range(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMonths int
		wantFrom   string
		wantTo     string
		wantDays   int
	}{
		{name: "narrow", query: "width=200", wantMonths: 3, wantFrom: "2024-10-15", wantTo: "2025-01-15", wantDays: 93},
		{name: "negative clamps", query: "width=-50", wantMonths: 3, wantFrom: "2024-10-15", wantTo: "2025-01-15", wantDays: 93},
		{name: "midpoint rounds up", query: "width=928", wantMonths: 8, wantFrom: "2024-05-15", wantTo: "2025-01-15", wantDays: 246},
		{name: "wide", query: "width=2560", wantMonths: 12, wantFrom: "2024-01-15", wantTo: "2025-01-15", wantDays: 367},
		{name: "today override clamps day", query: "width=0&today=2024-05-31", wantMonths: 3, wantFrom: "2024-02-29", wantTo: "2024-05-31", wantDays: 93},
	}

	handler := newTestHandler(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/contribution/range?"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.Range(w, req)

			var got RangeResponse
			testutil.DecodeJSON(t, w, http.StatusOK, &got)

			if got.Months != tt.wantMonths {
				t.Errorf("expected %d months, got %d", tt.wantMonths, got.Months)
			}
			if got.From != tt.wantFrom || got.To != tt.wantTo {
				t.Errorf("expected %s..%s, got %s..%s", tt.wantFrom, tt.wantTo, got.From, got.To)
			}
			if got.Days != tt.wantDays {
				t.Errorf("expected %d days, got %d", tt.wantDays, got.Days)
			}
		})
	}
}

func TestHandler_Range_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantError string
	}{
		{name: "missing width", query: "", wantError: "width is required"},
		{name: "blank width", query: "width=%20", wantError: "width is required"},
		{name: "non integer width", query: "width=wide", wantError: "width must be an integer"},
		{name: "fractional width", query: "width=10.5", wantError: "width must be an integer"},
		{name: "bad today", query: "width=800&today=15/01/2025", wantError: "expected YYYY-MM-DD"},
	}

	handler := newTestHandler(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/contribution/range?"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.Range(w, req)

			body := testutil.DecodeError(t, w, http.StatusBadRequest)
			if len(body.Errors) != 1 || !strings.Contains(body.Errors[0], tt.wantError) {
				t.Errorf("expected error containing %q, got %v", tt.wantError, body.Errors)
			}
		})
	}
}

func TestHandler_Requests(t *testing.T) {
	handler := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contribution/requests?width=320&habits=2,1,2", nil)
	w := httptest.NewRecorder()

	handler.Requests(w, req)

	var got RequestsResponse
	testutil.DecodeJSON(t, w, http.StatusOK, &got)

	if len(got.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got.Requests))
	}
	want := "https://habits.example.com/api/habits/2/contribution?from=2024-10-15&to=2025-01-15"
	if got.Requests[0].HabitID != 2 || got.Requests[0].URL != want {
		t.Errorf("unexpected first request %+v", got.Requests[0])
	}
	if got.Requests[1].HabitID != 1 {
		t.Errorf("expected habit 1 second, got %d", got.Requests[1].HabitID)
	}
	if got.Months != 3 {
		t.Errorf("expected 3 months, got %d", got.Months)
	}
}

func TestHandler_Requests_InvalidHabits(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "missing habits", query: "width=320"},
		{name: "non numeric habit", query: "width=320&habits=1,x"},
		{name: "zero habit", query: "width=320&habits=0"},
	}

	handler := newTestHandler(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/contribution/requests?"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.Requests(w, req)

			testutil.DecodeError(t, w, http.StatusBadRequest)
		})
	}
}

func TestHandler_Load(t *testing.T) {
	fetcher := &testutil.MockGridFetcher{}
	handler := newTestHandler(fetcher)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/contribution/load", map[string]any{
		"width":    1536,
		"habitIds": []int{4, 9},
	})
	w := httptest.NewRecorder()

	handler.Load(w, req)

	var got LoadResponse
	testutil.DecodeJSON(t, w, http.StatusOK, &got)

	if got.Months != 12 || got.From != "2024-01-15" {
		t.Errorf("unexpected range %+v", got.RangeResponse)
	}
	if len(got.Grids) != 2 || got.Grids[0].HabitID != 4 || got.Grids[1].HabitID != 9 {
		t.Fatalf("unexpected grids %+v", got.Grids)
	}
	if !strings.Contains(got.Grids[0].HTML, "/api/habits/4/contribution?from=2024-01-15&to=2025-01-15") {
		t.Errorf("unexpected grid HTML %q", got.Grids[0].HTML)
	}
}

func TestHandler_Load_Errors(t *testing.T) {
	failing := func(err error) *testutil.MockGridFetcher {
		return &testutil.MockGridFetcher{
			FetchAllFunc: func(context.Context, []corecontribution.Request) ([]corecontribution.Grid, error) {
				return nil, err
			},
		}
	}

	tests := []struct {
		name       string
		fetcher    corecontribution.GridFetcher
		body       string
		wantStatus int
	}{
		{name: "invalid json", fetcher: &testutil.MockGridFetcher{}, body: `{"width":`, wantStatus: http.StatusBadRequest},
		{name: "missing width", fetcher: &testutil.MockGridFetcher{}, body: `{"habitIds":[1]}`, wantStatus: http.StatusBadRequest},
		{name: "no habits", fetcher: &testutil.MockGridFetcher{}, body: `{"width":800,"habitIds":[]}`, wantStatus: http.StatusBadRequest},
		{name: "invalid habit", fetcher: &testutil.MockGridFetcher{}, body: `{"width":800,"habitIds":[-1]}`, wantStatus: http.StatusBadRequest},
		{name: "no fetcher", body: `{"width":800,"habitIds":[1]}`, wantStatus: http.StatusServiceUnavailable},
		{name: "no fetcher and no habits", body: `{"width":800,"habitIds":[]}`, wantStatus: http.StatusBadRequest},
		{name: "no fetcher and invalid habit", body: `{"width":800,"habitIds":[-1]}`, wantStatus: http.StatusBadRequest},
		{name: "upstream failure", fetcher: failing(errors.New("habit 1: unexpected status code 500")), body: `{"width":800,"habitIds":[1]}`, wantStatus: http.StatusBadGateway},
		{name: "circuit open", fetcher: failing(corecontribution.ErrUpstreamUnavailable), body: `{"width":800,"habitIds":[1]}`, wantStatus: http.StatusServiceUnavailable},
		{name: "upstream timeout", fetcher: failing(context.DeadlineExceeded), body: `{"width":800,"habitIds":[1]}`, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(tt.fetcher)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/contribution/load", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Load(w, req)

			body := testutil.DecodeError(t, w, tt.wantStatus)
			if body.Message == "" {
				t.Error("expected error message")
			}
		})
	}
}
