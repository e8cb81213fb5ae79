package api

import (
	"time"

	"github.com/okian/featreg/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxChangesLimit caps the limit accepted by GET /api/changes.
func WithMaxChangesLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxChangesLimit = n
		}
	}
}

// WithRateLimit enables a token bucket of limit requests per second on the
// /api routes. A non-positive limit disables rate limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = limit
		s.rateBurst = burst
	}
}

// WithNow replaces the clock used for synthesized timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}
