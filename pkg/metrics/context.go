package metrics

import (
	"context"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// WithNewRelicApp returns a copy of ctx carrying the New Relic application used
// by RecordEvent and RecordCount. A nil app is a no-op.
func WithNewRelicApp(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, newRelicContextKey{}, app)
}

func newRelicAppFromContext(ctx context.Context) (*newrelic.Application, bool) {
	nr, ok := ctx.Value(newRelicContextKey{}).(*newrelic.Application)
	return nr, ok && nr != nil
}

// WrapHttpHandler starts a New Relic web transaction for every request served
// by handler and makes the application available through the request context.
// When app is nil, handler is returned unchanged.
func WrapHttpHandler(app *newrelic.Application, pattern string, handler http.Handler) http.Handler {
	if app == nil {
		return handler
	}

	_, wrapped := newrelic.WrapHandle(app, pattern, handler)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(WithNewRelicApp(r.Context(), app)))
	})
}
