package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rony4d/go-opera-bridge/metrics"
)

// maxRequestBytes bounds a JSON-RPC request body.
const maxRequestBytes = 1 << 20

const (
	// idleBucketTTL is how long an unused bucket is kept. A bucket idle this
	// long has refilled, so dropping it loses nothing.
	idleBucketTTL = 3 * time.Minute
	// sweepInterval spaces the scans for idle buckets.
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP. The client IP is the
// socket peer unless that peer is a trusted proxy.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	trusted   []*net.IPNet
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(requestsPerMinute int, trustedProxies []string) (*ipRateLimiter, error) {
	trusted, err := parseTrustedProxies(trustedProxies)
	if err != nil {
		return nil, err
	}
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
		trusted:  trusted,
		now:      time.Now,
	}, nil
}

// parseTrustedProxies accepts CIDRs and bare IPs.
func parseTrustedProxies(proxies []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(proxies))
	for _, p := range proxies {
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// get returns the bucket of ip, sweeping idle buckets at most once per
// sweepInterval.
func (l *ipRateLimiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) >= idleBucketTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		limiter := l.get(l.clientIP(r), now)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		if !limiter.AllowN(now, 1) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ipRateLimiter) isTrusted(ip net.IP) bool {
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP is the socket peer. Proxy headers count only when the peer is a
// trusted proxy; then the client is the right-most X-Forwarded-For hop that
// is not itself a trusted proxy, falling back to X-Real-IP.
func (l *ipRateLimiter) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	peerIP := net.ParseIP(peer)
	if peerIP == nil || !l.isTrusted(peerIP) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := net.ParseIP(strings.TrimSpace(hops[i]))
			if hop == nil {
				break
			}
			if !l.isTrusted(hop) {
				return hop.String()
			}
		}
	}
	if xri := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); xri != nil {
		return xri.String()
	}
	return peer
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records every request by route template, and logs it at debug level.
func observe(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, path, wrapped.statusCode, elapsed)
			log.WithFields(logrus.Fields{
				"request": requestID(r.Context()),
				"method":  r.Method,
				"path":    path,
				"status":  wrapped.statusCode,
				"elapsed": elapsed,
			}).Debug("HTTP request served")
		})
	}
}

// HealthFunc reports the node status served on /healthz. A non-nil error
// turns the response into 503.
type HealthFunc func() (interface{}, error)

// newRouter serves JSON-RPC on POST / and the health probe on GET /healthz.
// A nil limiter leaves the RPC endpoint unthrottled.
func newRouter(rpcHandler http.Handler, health HealthFunc, limiter *ipRateLimiter, log logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, observe(log))

	var rpcRoute http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		rpcHandler.ServeHTTP(w, r)
	})
	if limiter != nil {
		rpcRoute = limiter.middleware(rpcRoute)
	}
	router.Handle("/", rpcRoute).Methods(http.MethodPost)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, err := health()
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)

	return router
}

// newMetricsRouter exposes the Prometheus registry on /metrics.
func newMetricsRouter() *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}
