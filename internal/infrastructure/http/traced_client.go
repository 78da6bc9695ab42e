package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"abitudini/gridrange/internal/core/audit"
	ctxutil "abitudini/gridrange/internal/infrastructure/context"
	"abitudini/gridrange/internal/infrastructure/security"
)

// CorrelationHeader carries the correlation ID to the habit API.
const CorrelationHeader = "X-Correlation-ID"

// TracedClient wraps an HTTP client with request/response logging and an audit trail.
type TracedClient struct {
	client       *http.Client
	log          *slog.Logger
	auditRepo    audit.Repository
	upstream     string
	auditEnabled bool
	logRespBody  bool
	maxBodySize  int
	maxBuffered  int64
	pending      sync.WaitGroup
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	AuditEnabled    bool
	LogResponseBody bool
	MaxBodySize     int
	MaxConnsPerHost int   // 0 uses 16
	MaxBuffered     int64 // bytes of each response held in memory for logging; 0 uses 1 MiB
	Transport       http.RoundTripper
}

// NewTracedClient creates a traced client. auditRepo may be nil, which disables auditing.
func NewTracedClient(cfg TracedClientConfig, log *slog.Logger, auditRepo audit.Repository, upstream string) *TracedClient {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 102400
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = 1 << 20
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newTransport(cfg.MaxConnsPerHost)
	}

	return &TracedClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log:          log,
		auditRepo:    auditRepo,
		upstream:     upstream,
		auditEnabled: cfg.AuditEnabled && auditRepo != nil,
		logRespBody:  cfg.LogResponseBody,
		maxBodySize:  cfg.MaxBodySize,
		maxBuffered:  cfg.MaxBuffered,
	}
}

func newTransport(maxConnsPerHost int) *http.Transport {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 16
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Do executes req, logs it and records an audit entry. Up to MaxBuffered bytes of the
// response body are buffered; the caller still reads the complete body.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	ctx, correlationID := ctxutil.EnsureCorrelationID(req.Context())
	req = req.WithContext(ctx)
	req.Header.Set(CorrelationHeader, correlationID)

	operation := extractOperation(req)
	start := time.Now()

	c.log.Debug("upstream_request",
		"correlation_id", correlationID,
		"upstream", c.upstream,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
	)

	resp, err := c.client.Do(req)
	duration := time.Since(start)

	var body []byte
	if resp != nil && resp.Body != nil {
		var readErr error
		body, resp.Body, readErr = bufferBody(resp.Body, c.maxBuffered)
		if readErr != nil && err == nil {
			err = readErr
		}
	}

	c.logResponse(correlationID, operation, req, resp, err, duration, body)

	if c.auditEnabled {
		entry := c.buildAuditLog(correlationID, operation, req, resp, err, duration, body)
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			// The request context ends with the inbound request; audit writes must outlive it.
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if saveErr := c.auditRepo.Save(saveCtx, entry); saveErr != nil {
				c.log.Error("Failed to persist fetch audit log",
					"correlation_id", correlationID,
					"operation", operation,
					"error", saveErr,
				)
			}
		}()
	}

	return resp, err
}

// bufferBody reads up to limit bytes of rc for logging and auditing. The returned body replays
// them followed by whatever rc still holds, so callers always see the full response.
func bufferBody(rc io.ReadCloser, limit int64) ([]byte, io.ReadCloser, error) {
	buf, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil || int64(len(buf)) < limit {
		rc.Close()
		return buf, io.NopCloser(bytes.NewReader(buf)), err
	}
	return buf, struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), rc), rc}, nil
}

// Flush blocks until in-flight audit writes finish.
func (c *TracedClient) Flush() {
	c.pending.Wait()
}

func (c *TracedClient) logResponse(correlationID, operation string, req *http.Request, resp *http.Response, err error, duration time.Duration, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"upstream", c.upstream,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		c.log.Error("upstream_request_failed", attrs...)
		return
	}

	attrs = append(attrs, "status", resp.StatusCode, "response_size_bytes", len(body))
	if c.logRespBody && len(body) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}

	switch {
	case resp.StatusCode >= 500:
		c.log.Error("upstream_response", attrs...)
	case resp.StatusCode >= 400:
		c.log.Warn("upstream_response", attrs...)
	default:
		c.log.Info("upstream_response", attrs...)
	}
}

func (c *TracedClient) buildAuditLog(correlationID, operation string, req *http.Request, resp *http.Response, err error, duration time.Duration, body []byte) audit.FetchLog {
	entry := audit.FetchLog{
		CorrelationID:  correlationID,
		Upstream:       c.upstream,
		Operation:      operation,
		HabitID:        extractHabitID(req.URL.Path),
		RequestMethod:  req.Method,
		RequestURL:     security.SanitizeURL(req.URL.String()),
		RequestHeaders: security.SanitizeHeaders(req.Header),
		DurationMs:     duration.Milliseconds(),
	}

	if resp != nil {
		status := resp.StatusCode
		entry.ResponseStatus = &status
		entry.ResponseHeaders = security.SanitizeHeaders(resp.Header)
		if len(body) > 0 {
			entry.ResponseBody = security.SanitizeBody(body, c.maxBodySize)
		}
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	return entry
}

// extractOperation names a call after the last path segment, e.g. "Contribution".
func extractOperation(req *http.Request) string {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" {
		return req.Method + "_root"
	}
	if _, err := strconv.Atoi(last); err == nil && len(parts) > 1 {
		last = parts[len(parts)-2]
	}
	return strings.ToUpper(last[:1]) + last[1:]
}

// extractHabitID pulls {id} out of /api/habits/{id}/... paths.
func extractHabitID(path string) *int {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "habits" {
			continue
		}
		if id, err := strconv.Atoi(parts[i+1]); err == nil {
			return &id
		}
	}
	return nil
}
