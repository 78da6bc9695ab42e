package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_HOST", "")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("GRID_TIMEZONE", "UTC")

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func habitServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div data-range="` + r.URL.RawQuery + `"></div>`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRangeCommand(t *testing.T) {
	out, err := execute(t, "", "range", "--width", "928", "--today", "2025-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got contributionhttp.RangeResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}

	if got.Months != 8 || got.From != "2024-05-15" || got.To != "2025-01-15" {
		t.Errorf("unexpected range %+v", got)
	}
}

func TestRangeCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing width", args: []string{"range"}},
		{name: "bad today", args: []string{"range", "--width", "800", "--today", "yesterday"}},
		{name: "bad grid config", args: []string{"range", "--width", "800"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "bad grid config" {
				t.Setenv("GRID_MIN_WIDTH", "2000")
			}
			if _, err := execute(t, "", tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRequestsCommand(t *testing.T) {
	t.Setenv("HABIT_API_BASE_URL", "https://habits.example.com/")

	out, err := execute(t, "", "requests", "--width", "320", "--today", "2025-01-15", "--habits", "5,6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got contributionhttp.RequestsResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}

	want := "https://habits.example.com/api/habits/5/contribution?from=2024-10-15&to=2025-01-15"
	if len(got.Requests) != 2 || got.Requests[0].URL != want {
		t.Errorf("unexpected requests %+v", got.Requests)
	}
}

func TestRequestsCommand_InvalidHabits(t *testing.T) {
	if _, err := execute(t, "", "requests", "--width", "320", "--habits", "one"); err == nil {
		t.Error("expected error for non-numeric habit id")
	}
}

func TestLoadCommand(t *testing.T) {
	server := habitServer(t)
	t.Setenv("HABIT_API_BASE_URL", server.URL)

	out, err := execute(t, "", "load", "--width", "1536", "--today", "2025-01-15", "--habits", "1,2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got contributionhttp.LoadResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}

	if len(got.Grids) != 2 {
		t.Fatalf("expected 2 grids, got %d", len(got.Grids))
	}
	if got.Grids[1].HTML != `<div data-range="from=2024-01-15&to=2025-01-15"></div>` {
		t.Errorf("unexpected grid %q", got.Grids[1].HTML)
	}
}

func TestLoadCommand_NoHabitAPI(t *testing.T) {
	t.Setenv("HABIT_API_BASE_URL", "")

	if _, err := execute(t, "", "load", "--width", "800", "--habits", "1"); err == nil {
		t.Error("expected error when the habit API is not configured")
	}
}

func TestWatchCommand(t *testing.T) {
	server := habitServer(t)
	t.Setenv("HABIT_API_BASE_URL", server.URL)
	t.Setenv("GRID_INITIAL_DELAY", "1h")
	t.Setenv("GRID_RESIZE_DEBOUNCE", "1h")

	out, err := execute(t, "400\n\nnot-a-width\n1536\n", "watch", "--width", "320", "--habits", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got contributionhttp.LoadResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("expected a single load in output %q: %v", out, err)
	}

	if got.Width != 1536 || got.Months != 12 {
		t.Errorf("expected the last width to be loaded, got %+v", got.RangeResponse)
	}
	if len(got.Grids) != 1 || got.Grids[0].HabitID != 3 {
		t.Errorf("unexpected grids %+v", got.Grids)
	}
}

func TestReadWidths_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	widths, readErr := readWidths(ctx, strings.NewReader("800\n1024\n"))

	select {
	case err := <-readErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader kept blocking on an abandoned width channel")
	}

	for range widths {
	}
}
