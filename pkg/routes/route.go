package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Endpoint returns the ServeMux registration pattern for this route
// under the given group prefix, e.g. "POST /documents/{id}/transition".
func (r Route) Endpoint(prefix string) string {
	return r.Method + " " + prefix + r.Pattern
}
