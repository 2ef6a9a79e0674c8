package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware = func(http.Handler) http.Handler

// System manages an ordered stack of HTTP middleware.
type System interface {
	Use(mw ...Middleware)
	Apply(handler http.Handler) http.Handler
}

type stack struct {
	entries []Middleware
}

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

func (s *stack) Use(mw ...Middleware) {
	s.entries = append(s.entries, mw...)
}

// Apply wraps the handler so the first registered middleware runs
// outermost.
func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.entries) - 1; i >= 0; i-- {
		handler = s.entries[i](handler)
	}
	return handler
}
