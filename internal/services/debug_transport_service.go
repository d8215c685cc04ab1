package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mychat/internal/logger"
)

// maxCapturedExchanges bounds the in-memory capture buffer.
const maxCapturedExchanges = 20

// HTTPExchange is one captured provider round trip.
type HTTPExchange struct {
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	Headers    map[string][]string `json:"headers"`
	StatusCode int                 `json:"status_code,omitempty"`
	Error      string              `json:"error,omitempty"`
	Started    time.Time           `json:"started"`
	DurationMS int64               `json:"duration_ms"`
}

// DebugTransportService provides an http.RoundTripper that logs provider traffic
// with credentials masked and keeps the most recent exchanges. Installing it is
// the opt-in, so exchanges are logged at info level.
type DebugTransportService struct {
	base   http.RoundTripper
	log    *log.Logger
	now    func() time.Time
	mu     sync.RWMutex
	recent []HTTPExchange
}

// NewDebugTransportService creates a debug transport wrapping base, or
// http.DefaultTransport when base is nil.
func NewDebugTransportService(base http.RoundTripper) *DebugTransportService {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransportService{
		base: base,
		log:  logger.NewStyledLogger("HTTP"),
		now:  time.Now,
	}
}

// Name returns the service name "debug_transport" for registration.
func (d *DebugTransportService) Name() string {
	return "debug_transport"
}

// Initialize clears any captured traffic.
func (d *DebugTransportService) Initialize() error {
	d.mu.Lock()
	d.recent = nil
	d.mu.Unlock()
	logger.ServiceOperation("debug_transport", "initialize", "completed")
	return nil
}

// Transport returns the capturing round tripper.
func (d *DebugTransportService) Transport() http.RoundTripper {
	return &debugTransport{service: d}
}

// Exchanges returns a copy of the captured exchanges, oldest first.
func (d *DebugTransportService) Exchanges() []HTTPExchange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]HTTPExchange, len(d.recent))
	copy(out, d.recent)
	return out
}

// CapturedJSON returns the captured exchanges encoded as JSON.
func (d *DebugTransportService) CapturedJSON() (string, error) {
	data, err := json.Marshal(d.Exchanges())
	if err != nil {
		return "", fmt.Errorf("failed to marshal captured exchanges: %w", err)
	}
	return string(data), nil
}

func (d *DebugTransportService) record(ex HTTPExchange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, ex)
	if len(d.recent) > maxCapturedExchanges {
		d.recent = d.recent[len(d.recent)-maxCapturedExchanges:]
	}
}

type debugTransport struct {
	service *DebugTransportService
}

// RoundTrip implements http.RoundTripper.
func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	d := dt.service
	start := d.now()

	resp, err := d.base.RoundTrip(req)

	ex := HTTPExchange{
		Method:     req.Method,
		URL:        req.URL.String(),
		Headers:    sanitizeHeaders(req.Header),
		Started:    start,
		DurationMS: d.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		ex.Error = err.Error()
		d.log.Warn("provider request failed", "method", ex.Method, "url", ex.URL, "error", err, "duration_ms", ex.DurationMS)
	} else {
		ex.StatusCode = resp.StatusCode
		d.log.Info("provider request", "method", ex.Method, "url", ex.URL, "status", ex.StatusCode, "duration_ms", ex.DurationMS)
	}
	d.record(ex)

	return resp, err
}

// sanitizeHeaders masks credentials, keeping a short prefix for identification.
func sanitizeHeaders(headers http.Header) map[string][]string {
	sanitized := make(map[string][]string, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "authorization") || strings.Contains(lower, "api-key") || strings.Contains(lower, "token") {
			masked := "***[MASKED]***"
			if len(values) > 0 && len(values[0]) > 10 {
				masked = values[0][:10] + masked
			}
			sanitized[name] = []string{masked}
			continue
		}
		sanitized[name] = append([]string(nil), values...)
	}
	return sanitized
}
