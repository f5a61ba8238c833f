package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lexiguard/lexiguard/internal/agent"
	"github.com/lexiguard/lexiguard/internal/service"
	"github.com/lexiguard/lexiguard/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// Backend answers questions and reports dependency health.
type Backend interface {
	Ask(ctx context.Context, history []agent.Turn, query string) (*agent.Result, error)
	Health(ctx context.Context) (*service.Health, error)
}

type Server struct {
	backend  Backend
	gatherer prometheus.Gatherer

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithMetrics serves the collectors of g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func NewServer(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID assigns a request id unless the client sent one, echoes it
// in the response and logs the request.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(withID(r.Context(), id)))
		log.Info("%s %s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), id)
	})
}

type requestIDKey struct{}

func withID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
