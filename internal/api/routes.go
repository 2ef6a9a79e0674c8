package api

import (
	"net/http"

	"github.com/courier-labs/courier/pkg/routes"
)

// registerRoutes mounts the read-side document routes, the pipeline
// command routes, and the party directory routes. Document reads and
// pipeline commands share the /documents prefix; patterns are disjoint
// by method.
func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Documents.Handler().Routes(),
		domain.Pipeline.Handler().Routes(),
		domain.Parties.Handler().Routes(),
	)
}
