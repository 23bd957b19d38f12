package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const latencySamplesPerRoute = 200

type telemetryRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// routeLatency keeps a ring of recent request durations per route.
type routeLatency struct {
	mu      sync.Mutex
	samples map[string]*latencyRing
}

type latencyRing struct {
	values []int64
	next   int
}

func (l *latencyRing) add(v int64) {
	if len(l.values) < latencySamplesPerRoute {
		l.values = append(l.values, v)
		return
	}
	l.values[l.next] = v
	l.next = (l.next + 1) % latencySamplesPerRoute
}

func (a *routeLatency) observe(route string, ms int64) (p50, p95 int64) {
	a.mu.Lock()
	ring, ok := a.samples[route]
	if !ok {
		ring = &latencyRing{}
		a.samples[route] = ring
	}
	ring.add(ms)
	sorted := append([]int64(nil), ring.values...)
	a.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentile(sorted, 50), percentile(sorted, 95)
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

var latency = &routeLatency{samples: make(map[string]*latencyRing)}

// Telemetry logs one line per request with route latency percentiles.
// Server errors are logged at warn level so failed number requests stand out.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &telemetryRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := r.URL.Path
			branchID := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					route = pattern
				}
				branchID = rc.URLParam("branchId")
			}
			p50, p95 := latency.observe(r.Method+" "+route, elapsed.Milliseconds())

			level := zapcore.InfoLevel
			if status >= 500 {
				level = zapcore.WarnLevel
			}
			if ce := logger.Check(level, "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.String("branchId", branchID),
					zap.String("requestId", RequestIDFromContext(r.Context())),
					zap.Int("status", status),
					zap.Int("bytes", rec.bytes),
					zap.Int64("duration_ms", elapsed.Milliseconds()),
					zap.Int64("p50_ms", p50),
					zap.Int64("p95_ms", p95),
				)
			}
		})
	}
}
