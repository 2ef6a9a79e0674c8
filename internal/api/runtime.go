package api

import (
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/infrastructure"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration and
// the shared service metrics registry.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Metrics    *metrics.Metrics
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure, m *metrics.Metrics) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Queue:     infra.Queue,
		},
		Pagination: cfg.API.Pagination,
		Metrics:    m,
	}
}
