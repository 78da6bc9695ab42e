package security

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const redactedValue = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
}

// Substrings that mark a JSON field or query parameter as secret.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// SanitizeHeaders flattens headers into a map, redacting credentials.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
			continue
		}
		sanitized[key] = strings.Join(values, ", ")
	}
	return sanitized
}

// SanitizeURL redacts secret query parameters and embedded user info. Unparseable input is returned as is.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.User != nil {
		u.User = url.User(redactedValue)
	}

	if u.RawQuery != "" {
		query := u.Query()
		changed := false
		for key := range query {
			if isSensitiveField(key) {
				query.Set(key, redactedValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}

	return u.String()
}

// SanitizeBody turns a response body into JSON suitable for a JSONB column.
// JSON bodies get secret fields redacted, text bodies (grid HTML) are wrapped,
// anything larger than maxSize is truncated to a preview.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		decompressed, err := gunzip(body)
		if err != nil {
			return marshalRaw(map[string]any{"_format": "gzip", "_size": len(body)})
		}
		body = decompressed
	}

	if !utf8.Valid(body) {
		return marshalRaw(map[string]any{"_format": "binary", "_size": len(body)})
	}

	if maxSize > 0 && len(body) > maxSize {
		return marshalRaw(map[string]any{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   strings.ToValidUTF8(string(body[:maxSize]), ""),
		})
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return marshalRaw(map[string]any{"_raw": string(body), "_format": "text"})
	}

	return marshalRaw(redact(data))
}

func redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, inner := range val {
			if isSensitiveField(key) {
				out[key] = redactedValue
				continue
			}
			out[key] = redact(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redact(inner)
		}
		return out
	default:
		return val
	}
}

func gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func marshalRaw(v any) json.RawMessage {
	out, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return out
}
