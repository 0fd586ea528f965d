package launcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func healthy() (interface{}, error) {
	return map[string]string{"status": "ok"}, nil
}

func post(router http.Handler, remote string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
	req.RemoteAddr = remote
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newLimiter(t *testing.T, perMinute int, trusted ...string) *ipRateLimiter {
	l, err := newIPRateLimiter(perMinute, trusted)
	require.NoError(t, err)
	return l
}

func TestRouter_rateLimit(t *testing.T) {
	calls := 0
	rpcHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	router := newRouter(rpcHandler, healthy, newLimiter(t, 1), quietLogger())

	first := post(router, "192.0.2.1:1000")
	require.Equal(t, http.StatusOK, first.Code)
	require.NotEmpty(t, first.Header().Get("X-Request-ID"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusTooManyRequests, post(router, "192.0.2.1:1001").Code)
	// buckets are per client IP
	require.Equal(t, http.StatusOK, post(router, "192.0.2.2:1000").Code)
	require.Equal(t, 2, calls)
}

// TestRouter_rateLimitIgnoresForwardedHeaders sends every request from one
// socket with a fresh forwarding header; only the first one is served.
func TestRouter_rateLimitIgnoresForwardedHeaders(t *testing.T) {
	calls := 0
	rpcHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	limiter := newLimiter(t, 1)
	router := newRouter(rpcHandler, healthy, limiter, quietLogger())

	for i := 0; i < 50; i++ {
		post(router, "192.0.2.1:1000",
			"X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
	}
	require.Equal(t, 1, calls)
	require.Equal(t, 1, limiter.size())
}

func TestRouter_rateLimitBehindTrustedProxy(t *testing.T) {
	calls := 0
	rpcHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	router := newRouter(rpcHandler, healthy, newLimiter(t, 1, "192.0.2.0/24"), quietLogger())

	// two clients behind the same proxy get their own buckets
	require.Equal(t, http.StatusOK, post(router, "192.0.2.1:1000", "X-Forwarded-For", "203.0.113.1").Code)
	require.Equal(t, http.StatusOK, post(router, "192.0.2.1:1000", "X-Forwarded-For", "203.0.113.2").Code)
	require.Equal(t, http.StatusTooManyRequests, post(router, "192.0.2.1:1000", "X-Forwarded-For", "203.0.113.1").Code)

	// a client cannot pick its bucket by prepending hops
	require.Equal(t, http.StatusTooManyRequests,
		post(router, "192.0.2.1:1000", "X-Forwarded-For", "198.51.100.9, 203.0.113.1").Code)
	require.Equal(t, 2, calls)
}

func TestRateLimiter_evictsIdleBuckets(t *testing.T) {
	limiter := newLimiter(t, 60)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	router := newRouter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), healthy, limiter, quietLogger())

	for i := 0; i < 10; i++ {
		post(router, fmt.Sprintf("198.51.100.%d:1000", i))
	}
	require.Equal(t, 10, limiter.size())

	now = now.Add(idleBucketTTL - time.Second)
	post(router, "198.51.100.0:1000")
	require.Equal(t, 10, limiter.size())

	now = now.Add(idleBucketTTL)
	post(router, "198.51.100.200:1000")
	require.Equal(t, 1, limiter.size())
}

func TestParseTrustedProxies(t *testing.T) {
	nets, err := parseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.7", "2001:db8::1"})
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.True(t, nets[1].Contains(net.ParseIP("192.0.2.7")))
	assert.False(t, nets[1].Contains(net.ParseIP("192.0.2.8")))
	assert.True(t, nets[2].Contains(net.ParseIP("2001:db8::1")))

	_, err = parseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
	_, err = parseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestRouter_unlimited(t *testing.T) {
	router := newRouter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), healthy, nil, quietLogger())
	for i := 0; i < 5; i++ {
		rec := post(router, "192.0.2.1:1000")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRouter_health(t *testing.T) {
	rpcHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	newRouter(rpcHandler, healthy, nil, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	failing := func() (interface{}, error) { return nil, errors.New("store closed") }
	rec = httptest.NewRecorder()
	newRouter(rpcHandler, failing, nil, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "store closed", body["error"])
}

func TestRouter_methods(t *testing.T) {
	router := newRouter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), healthy, nil, quietLogger())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:5555"
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	// untrusted peers are taken as they are
	assert.Equal(t, "192.0.2.9", newLimiter(t, 1).clientIP(req))

	behindProxy := newLimiter(t, 1, "192.0.2.0/24", "10.0.0.0/8")
	assert.Equal(t, "203.0.113.7", behindProxy.clientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.2", behindProxy.clientIP(req))

	req.Header.Del("X-Real-IP")
	assert.Equal(t, "192.0.2.9", behindProxy.clientIP(req))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(LoggingConfig{Verbosity: int(logrus.InfoLevel), Format: "json"}, &buf)
	require.NoError(t, err)
	log.Debug("hidden")
	log.WithField("chain", 137).Info("visible")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "visible", line["msg"])
	assert.Equal(t, float64(137), line["chain"])

	_, err = newLogger(LoggingConfig{Verbosity: 9}, &buf)
	assert.Error(t, err)
	_, err = newLogger(LoggingConfig{Verbosity: 4, Format: "xml"}, &buf)
	assert.Error(t, err)
	_, err = newLogger(LoggingConfig{Verbosity: 4, SentryDSN: "not-a-dsn"}, &buf)
	assert.Error(t, err)
}
