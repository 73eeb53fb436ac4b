package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	assert.Equal(t, http.StatusTeapot, serve(Auth("")(ok), httptest.NewRequest("GET", "/", nil)).Code)

	h := Auth("s3cret")(ok)
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest("GET", "/", nil)).Code)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusTeapot, serve(h, req).Code)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "s3cret")
	assert.Equal(t, http.StatusTeapot, serve(h, req).Code)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid API key"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = serve(h, httptest.NewRequest("GET", "/", nil))
	assert.JSONEq(t, `{"error":"missing API key"}`, rec.Body.String())

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic s3cret")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestAuthOpenRoutes(t *testing.T) {
	h := Auth("s3cret", "GET /health")(ok)
	assert.Equal(t, http.StatusTeapot, serve(h, httptest.NewRequest("GET", "/health", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest("POST", "/health", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest("GET", "/health/x", nil)).Code)
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(0.0001, 2)(ok)
	from := func(ip string) *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = ip + ":1234"
		return req
	}
	assert.Equal(t, http.StatusTeapot, serve(h, from("10.0.0.1")).Code)
	assert.Equal(t, http.StatusTeapot, serve(h, from("10.0.0.1")).Code)
	rec := serve(h, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusTeapot, serve(h, from("10.0.0.2")).Code)

	req := from("10.0.0.1")
	req.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.1")
	assert.Equal(t, http.StatusTeapot, serve(h, req).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, 0)(ok)
	for i := 0; i < 100; i++ {
		assert.Equal(t, http.StatusTeapot, serve(h, httptest.NewRequest("GET", "/", nil)).Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := serve(h, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	serve(Logging(logger)(ok), httptest.NewRequest("GET", "/status", nil))
	assert.Contains(t, buf.String(), `"path":"/status"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
