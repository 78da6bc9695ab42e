package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// DecodeJSON asserts the recorded status and decodes the body into v.
func DecodeJSON(t testing.TB, w *httptest.ResponseRecorder, status int, v any) {
	t.Helper()

	if w.Code != status {
		t.Fatalf("expected status %d, got %d (body: %s)", status, w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
}

// ErrorBody is the shape of every JSON error response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// DecodeError asserts the recorded status and decodes the standard error body.
func DecodeError(t testing.TB, w *httptest.ResponseRecorder, status int) ErrorBody {
	t.Helper()

	var body ErrorBody
	DecodeJSON(t, w, status, &body)
	return body
}

// NewJSONRequest builds a request carrying body encoded as JSON. A nil body sends no payload.
func NewJSONRequest(t testing.TB, method, path string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
