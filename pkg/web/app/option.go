package app

import (
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []Middleware
}

// WithMiddleware configures the app's HTTP server to use the provided middleware.
//
// Middleware is evaluated in addition order, and configured middleware is
// executed after the app's default middleware.
func WithMiddleware(m Middleware) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, m)
	}
}

func (o *opts) chain(handler http.Handler) http.Handler {
	for i := len(o.middleware) - 1; i >= 0; i-- {
		handler = o.middleware[i](handler)
	}
	return handler
}
