package registry

import (
	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithClock replaces the timestamp source.
func WithClock(c model.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithPublisher sets where change notifications go.
func WithPublisher(p Publisher) Option {
	return func(r *Registry) {
		r.publisher = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
