package main

import (
	"encoding/json"
	"net/http"

	"github.com/courier-labs/courier/internal/api"
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/infrastructure"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/pkg/middleware"
	"github.com/courier-labs/courier/pkg/module"
	"github.com/courier-labs/courier/web/scalar"
)

type Modules struct {
	API  *module.Module
	Docs *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config, m *metrics.Metrics) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra, m)
	if err != nil {
		return nil, err
	}

	docsModule := scalar.NewModule("/docs", cfg.API.BasePath+"/openapi.json")
	docsModule.Use(middleware.Logger(infra.Logger))

	return &Modules{
		API:  apiModule,
		Docs: docsModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	router.Mount(m.Docs)
}

// buildRouter wires the operational endpoints outside the API module:
// liveness, per-subsystem readiness, and the metrics exposition.
func buildRouter(infra *infrastructure.Infrastructure, m *metrics.Metrics) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := infra.Lifecycle.Status()
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status":     "not ready",
				"subsystems": status,
			})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "ready",
			"subsystems": status,
		})
	})

	router.HandleNative("GET /metrics", m.Handler().ServeHTTP)

	return router
}
