package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/auth"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func perform(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "abc-123"})
	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("Expected incoming request id to be kept, got %q", w.Body.String())
	}

	w = perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": strings.Repeat("x", 100)})
	if len(w.Body.String()) != 36 {
		t.Errorf("Expected a fresh uuid for oversized id, got %q", w.Body.String())
	}
}

func TestAuthPutsTokenInContext(t *testing.T) {
	r := gin.New()
	r.Use(Auth())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, auth.TokenFromContext(c.Request.Context())) })

	tests := []struct {
		name    string
		target  string
		headers map[string]string
		expect  string
	}{
		{name: "query", target: "/?token_auth=q1", expect: "q1"},
		{name: "bearer", target: "/", headers: map[string]string{"Authorization": "Bearer h1"}, expect: "h1"},
		{name: "anonymous", target: "/", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, tt.target, tt.headers)
			if w.Body.String() != tt.expect {
				t.Errorf("Expected %q, got %q", tt.expect, w.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://dash.example"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", map[string]string{"Origin": "https://dash.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-Id" && got != "X-Request-ID" {
		t.Errorf("Expected request id exposed, got %q", got)
	}

	w = perform(r, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Unexpected allow origin for foreign origin: %q", got)
	}

	w = perform(r, http.MethodOptions, "/", map[string]string{
		"Origin":                        "https://dash.example",
		"Access-Control-Request-Method": http.MethodGet,
	})
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Expected max age 3600, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, testLogger(), metrics.NewMetrics())
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, perform(r, http.MethodGet, "/", nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 200, 200, 429, got %v", codes)
	}

	stats := rl.GetStats()
	if stats["total_clients"] != 1 {
		t.Errorf("Expected 1 tracked client, got %v", stats["total_clients"])
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(testLogger()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("Expected structured error body, got %s", w.Body.String())
	}
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20*time.Millisecond, testLogger()))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := perform(r, http.MethodGet, "/slow", nil); w.Code != http.StatusGatewayTimeout {
		t.Errorf("Expected 504, got %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/fast", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Security())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	for _, h := range []string{"X-Frame-Options", "X-Content-Type-Options", "Content-Security-Policy", "Cache-Control"} {
		if w.Header().Get(h) == "" {
			t.Errorf("Missing header %s", h)
		}
	}
}

func TestRedactQuery(t *testing.T) {
	values := url.Values{"token_auth": {"secret"}, "idSite": {"1"}}
	got := redactQuery(values)
	if strings.Contains(got, "secret") {
		t.Errorf("Token leaked into log query: %s", got)
	}
	if !strings.Contains(got, "idSite=1") {
		t.Errorf("Expected other params preserved, got %s", got)
	}
}
