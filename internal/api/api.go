// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/infrastructure"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/pkg/middleware"
	"github.com/courier-labs/courier/pkg/module"
	"github.com/courier-labs/courier/pkg/openapi"
)

// NewModule creates the API module with all domain handlers and middleware.
// The metrics registry is shared with the server so both the middleware
// and the /metrics endpoint observe the same series.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure, m *metrics.Metrics) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra, m)
	domain := NewDomain(cfg, runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain)

	specBytes, err := openapi.MarshalJSON(buildSpec(cfg))
	if err != nil {
		return nil, fmt.Errorf("openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(specBytes))

	mod := module.New(cfg.API.BasePath, mux)
	mod.Use(
		middleware.Recover(runtime.Logger),
		middleware.CORS(&cfg.API.CORS),
		middleware.Logger(runtime.Logger),
		runtime.Metrics.Middleware(),
	)

	return mod, nil
}
