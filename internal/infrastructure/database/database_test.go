package database

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_ConnString(t *testing.T) {
	cfg := Config{
		Host:            "db.local",
		Port:            5432,
		Database:        "gridrange",
		User:            "grid",
		Password:        "secret",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}

	conn := cfg.ConnString()

	for _, part := range []string{
		"host=db.local",
		"port=5432",
		"dbname=gridrange",
		"pool_max_conns=10",
		"pool_min_conns=2",
		"pool_max_conn_lifetime=30m0s",
	} {
		if !strings.Contains(conn, part) {
			t.Errorf("expected connection string to contain %q, got %q", part, conn)
		}
	}
}

func TestMigrations(t *testing.T) {
	files, err := Migrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) == 0 {
		t.Fatal("expected embedded migrations")
	}

	if files[0] != "migrations/001_create_grid_fetch_audit_log.sql" {
		t.Errorf("unexpected first migration %s", files[0])
	}

	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("migrations out of order: %s before %s", files[i-1], files[i])
		}
	}
}
