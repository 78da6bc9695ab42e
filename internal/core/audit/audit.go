package audit

import (
	"context"
	"encoding/json"
	"time"
)

// FetchLog records one outbound call to the habit API made while loading contribution grids.
type FetchLog struct {
	ID              int64
	CorrelationID   string
	Upstream        string
	Operation       string
	HabitID         *int
	RequestMethod   string
	RequestURL      string
	RequestHeaders  map[string]string
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Failed reports whether the call errored or returned a non-2xx status.
func (l FetchLog) Failed() bool {
	if l.ErrorMessage != "" || l.ResponseStatus == nil {
		return true
	}
	return *l.ResponseStatus < 200 || *l.ResponseStatus > 299
}

// Repository persists and retrieves fetch logs.
type Repository interface {
	Save(ctx context.Context, log FetchLog) error

	// FindByCorrelationID returns every fetch made while serving one request, newest first.
	FindByCorrelationID(ctx context.Context, correlationID string) ([]FetchLog, error)
}
