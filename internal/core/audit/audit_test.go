package audit

import "testing"

func TestFetchLog_Failed(t *testing.T) {
	status := func(v int) *int { return &v }

	tests := []struct {
		name     string
		log      FetchLog
		expected bool
	}{
		{"ok", FetchLog{ResponseStatus: status(200)}, false},
		{"no content", FetchLog{ResponseStatus: status(204)}, false},
		{"not found", FetchLog{ResponseStatus: status(404)}, true},
		{"server error", FetchLog{ResponseStatus: status(502)}, true},
		{"transport error", FetchLog{ErrorMessage: "connection refused"}, true},
		{"missing status", FetchLog{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.log.Failed(); got != tt.expected {
				t.Errorf("expected Failed()=%v, got %v", tt.expected, got)
			}
		})
	}
}
