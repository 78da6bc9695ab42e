package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"abitudini/gridrange/internal/core/audit"
	"abitudini/gridrange/internal/infrastructure/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestEncodeHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{"nil headers become empty object", nil, "{}"},
		{"empty headers", map[string]string{}, "{}"},
		{"single header", map[string]string{"Accept": "text/html"}, `{"Accept":"text/html"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeHeaders(tt.headers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDecodeHeaders(t *testing.T) {
	headers, err := decodeHeaders(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers == nil || len(headers) != 0 {
		t.Errorf("expected empty non-nil map, got %v", headers)
	}

	headers, err = decodeHeaders([]byte(`{"X-Correlation-ID":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers["X-Correlation-ID"] != "abc" {
		t.Errorf("expected correlation header, got %v", headers)
	}

	if _, err := decodeHeaders([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestNullableJSON(t *testing.T) {
	if nullableJSON(nil) != nil {
		t.Error("expected nil for empty body")
	}
	got, ok := nullableJSON(json.RawMessage(`{"_raw":"<div></div>"}`)).([]byte)
	if !ok || string(got) != `{"_raw":"<div></div>"}` {
		t.Errorf("expected raw bytes, got %v", got)
	}
}

// TestRepository_Integration runs against a real database when GRIDRANGE_TEST_DATABASE_URL is set.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("GRIDRANGE_TEST_DATABASE_URL")
	if dsn == "" || testing.Short() {
		t.Skip("Skipping integration test - GRIDRANGE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := database.RunMigrations(ctx, pool, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewRepository(pool, log)
	correlationID := "it-" + time.Now().Format("150405.000000000")
	status := 200
	habitID := 7

	err = repo.Save(ctx, audit.FetchLog{
		CorrelationID:  correlationID,
		Upstream:       "habit-api",
		Operation:      "Contribution",
		HabitID:        &habitID,
		RequestMethod:  "GET",
		RequestURL:     "http://habits.local/api/habits/7/contribution?from=2024-10-15&to=2025-01-15",
		RequestHeaders: map[string]string{"Accept": "text/html"},
		ResponseStatus: &status,
		DurationMs:     12,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	logs, err := repo.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].HabitID == nil || *logs[0].HabitID != 7 {
		t.Errorf("expected habit 7, got %v", logs[0].HabitID)
	}
	if logs[0].RequestHeaders["Accept"] != "text/html" {
		t.Errorf("expected Accept header, got %v", logs[0].RequestHeaders)
	}
	if logs[0].Failed() {
		t.Error("expected successful fetch log")
	}
}
