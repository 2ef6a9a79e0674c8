package api

import (
	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
	"github.com/courier-labs/courier/internal/match"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/pipeline"
	"github.com/courier-labs/courier/internal/suggest"
	"github.com/courier-labs/courier/pkg/resilience"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents documents.System
	Parties   parties.System
	Pipeline  pipeline.System
}

// NewDomain creates all domain systems from the API runtime. The
// classification and matching engines, ERP connector, and resilience
// executor are internal collaborators of the pipeline and are not
// exposed on the domain.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	partiesSystem := parties.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	var suggester classify.Suggester
	if cfg.Suggest.Enabled {
		suggester = suggest.New(&cfg.Suggest, runtime.Logger)
	}

	pipelineSystem := pipeline.New(pipeline.Deps{
		Documents:      docsSystem,
		Parties:        partiesSystem,
		Classifier:     classify.NewEngine(suggester, classify.DefaultAIThreshold, runtime.Logger),
		Matcher:        match.NewEngine(match.DefaultFuzzyThreshold, nil),
		Connector:      erp.NewMemory(),
		Executor:       resilience.NewExecutor(&cfg.Resilience, runtime.Logger),
		Storage:        runtime.Storage,
		Automation:     &cfg.Automation,
		Queue:          runtime.Queue,
		Metrics:        runtime.Metrics,
		Logger:         runtime.Logger,
		EventSubject:   cfg.Worker.EventSubject,
		BatchLimit:     cfg.API.BatchLimit,
		MaxUploadBytes: cfg.API.MaxUploadSizeBytes(),
	})

	return &Domain{
		Documents: docsSystem,
		Parties:   partiesSystem,
		Pipeline:  pipelineSystem,
	}
}
