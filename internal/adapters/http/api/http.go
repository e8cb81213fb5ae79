// Package api exposes the feature registry over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/logger"
)

const (
	defaultChangesLimit    = 50
	defaultMaxChangesLimit = 500
	maxBodyBytes           = 1 << 20
)

// Registry is the subset of registry operations the Dispatcher calls.
type Registry interface {
	Register(ctx context.Context, id int64, data string) (model.FeatureRecord, error)
	Get(ctx context.Context, id int64) (model.FeatureRecord, error)
	Update(ctx context.Context, id int64, fields model.Fields) (model.FeatureRecord, error)
	List(ctx context.Context) []model.FeatureRecord
	Delete(ctx context.Context, id int64) error
}

// ChangeFeed exposes recent registry changes.
type ChangeFeed interface {
	RecentChanges(ctx context.Context, n int) []model.Change
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Registry
	ChangeFeed
}

// Server wires HTTP routes for the feature API.
type Server struct {
	dispatcher    *Dispatcher
	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	limiter *rate.Limiter
	logger  logger.Logger

	now             func() time.Time
	maxChangesLimit int
	rateLimit       float64
	rateBurst       int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		logger:          logger.NewNop(),
		now:             func() time.Time { return time.Now().UTC() },
		maxChangesLimit: defaultMaxChangesLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimit > 0 {
		burst := s.rateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(s.rateLimit), burst)
	}

	s.dispatcher = NewDispatcher(deps, s)
	s.healthHandler = NewHealthHandler(s.now)
	s.statsHandler = NewStatsHandler(statsProvider)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.withMiddleware(s.healthHandler.HandleHealth, "healthz", false))
	mux.HandleFunc("/metrics", s.withMiddleware(HandleMetrics, "metrics", false))
	mux.HandleFunc("/stats", s.withMiddleware(s.statsHandler.HandleStats, "stats", false))
	mux.HandleFunc("/api/", s.withMiddleware(s.dispatcher.ServeHTTP, "api", true))
	mux.HandleFunc("/api", s.withMiddleware(s.dispatcher.ServeHTTP, "api", true))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err using its kind. Server errors never expose their
// cause to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errorKind(err)
	status, code := statusFor(kind)

	msg := "internal server error"
	if status < http.StatusInternalServerError {
		msg = detail(err)
	}
	writeJSON(w, status, errorResponse{
		Error:     kind.Error(),
		Code:      code,
		Message:   msg,
		RequestID: logger.RequestID(r.Context()),
	})
}

// fail logs server errors before rendering them.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(errorKind(err)); status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, r, err)
}

func detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Err != nil {
		return apiErr.Err.Error()
	}
	return err.Error()
}
