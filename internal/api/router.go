package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/wonny/p2pex/backend/internal/api/handlers"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Handlers bundles everything the router serves
type Handlers struct {
	Orders *handlers.OrderHandler
	Match  *handlers.MatchHandler
	Stream *handlers.StreamHandler

	Store          *orderbook.Store
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	// MaxSnapshotAge marks /health degraded when the snapshot is older (0 = never)
	MaxSnapshotAge time.Duration
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.Store, h.MaxSnapshotAge)).Methods("GET")
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Order book and lifecycle
	api.HandleFunc("/orders", h.Orders.List).Methods("GET")
	api.HandleFunc("/orders", h.Orders.Create).Methods("POST")
	api.HandleFunc("/orders/{id}", h.Orders.Get).Methods("GET")
	api.HandleFunc("/orders/{id}/transitions", h.Orders.Transition).Methods("POST")
	api.HandleFunc("/lifecycle/transitions", h.Orders.TransitionTable).Methods("GET")

	// Matching
	api.HandleFunc("/match", h.Match.Match).Methods("POST")
	api.HandleFunc("/estimate", h.Match.Estimate).Methods("POST")

	// Live estimates
	if h.Stream != nil {
		r.HandleFunc("/ws/estimate", h.Stream.Estimates).Methods("GET")
	}

	// Apply middleware (outermost first)
	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log, h.Metrics))

	c := cors.New(cors.Options{
		AllowedOrigins:   h.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})

	return c.Handler(r)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string    `json:"status"`
	Service        string    `json:"service"`
	SnapshotOrders int       `json:"snapshot_orders"`
	SnapshotSource string    `json:"snapshot_source"`
	SnapshotAt     time.Time `json:"snapshot_at"`
}

// healthCheckHandler reports "degraded" with 503 when the snapshot is missing or stale
func healthCheckHandler(store *orderbook.Store, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := store.Current()
		resp := HealthResponse{
			Status:         "ok",
			Service:        "p2pex-api",
			SnapshotOrders: snapshot.Len(),
			SnapshotSource: snapshot.Source(),
			SnapshotAt:     snapshot.FetchedAt(),
		}

		status := http.StatusOK
		if maxAge > 0 && (snapshot.FetchedAt().IsZero() || time.Since(snapshot.FetchedAt()) > maxAge) {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}
}

// requestIDMiddleware propagates or assigns X-Request-ID
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the hijacker
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is required for websocket upgrades through the middleware chain
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveHTTP(r.Method, route, strconv.Itoa(rec.status))

			log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start),
				"request_id": r.Header.Get(RequestIDHeader),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error":      err,
						"path":       r.URL.Path,
						"request_id": r.Header.Get(RequestIDHeader),
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
