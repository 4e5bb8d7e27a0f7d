package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// BadgrRequests counts outbound credentialing API calls by operation and status code.
	BadgrRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badgr_requests_total",
			Help: "Total number of requests sent to the Badgr API.",
		},
		[]string{"op", "status"},
	)

	// BadgrRetries counts retried attempts by operation.
	BadgrRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badgr_request_retries_total",
			Help: "Total number of retried Badgr API requests.",
		},
		[]string{"op"},
	)

	// OwnerTokenExchanges counts password grant exchanges by result.
	OwnerTokenExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owner_token_exchanges_total",
			Help: "Total number of owner credential exchanges.",
		},
		[]string{"result"},
	)

	// RosterCacheRequests counts roster lookups by result (hit, miss).
	RosterCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_cache_requests_total",
			Help: "Total number of team roster cache lookups.",
		},
		[]string{"result"},
	)

	// BadgesAwarded counts assertions created through the bot.
	BadgesAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "badges_awarded_total",
		Help: "Total number of badge assertions created.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "BadgeBot build information.",
		},
		[]string{"version", "commit"},
	)

	initOnce sync.Once
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init(version, commit string) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			BadgrRequests, BadgrRetries, OwnerTokenExchanges,
			RosterCacheRequests, BadgesAwarded, buildInfo,
		)
	})
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records in-flight, count and latency of requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
