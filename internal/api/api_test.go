package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courier-labs/courier/internal/api"
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/infrastructure"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/pkg/database"
	"github.com/courier-labs/courier/pkg/middleware"
	"github.com/courier-labs/courier/pkg/openapi"
	"github.com/courier-labs/courier/pkg/pagination"
	"github.com/courier-labs/courier/pkg/queue"
	"github.com/courier-labs/courier/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=courierstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/courierstore;"

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "1m",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "courier",
			User:            "courier",
			Password:        "courier",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "intake",
			ConnectionString: azuriteConnString,
		},
		Queue: queue.Config{
			URL:            "nats://localhost:4222",
			Name:           "courier",
			ConnectTimeout: "2s",
			ReconnectWait:  "2s",
			MaxReconnects:  60,
		},
		Worker: config.WorkerConfig{
			IntakeSubject:  "courier.intake",
			EventSubject:   "courier.events",
			QueueGroup:     "courier-intake",
			Concurrency:    4,
			MessageTimeout: "2m",
		},
		API: config.APIConfig{
			BasePath:      "/api",
			MaxUploadSize: "50MB",
			BatchLimit:    100,
			CORS: middleware.CORSConfig{
				Enabled: false,
			},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
			Docs: openapi.Config{
				Title:       "Courier API",
				Description: "Business document intake, classification, party matching, and workflow hub.",
			},
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

func TestNewModule(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	m, err := api.NewModule(cfg, infra, metrics.New("api"))
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}
}

func TestNewModuleServesSpec(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	m, err := api.NewModule(cfg, infra, metrics.New("api"))
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/openapi.json", nil)
	m.Serve(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", res.StatusCode)
	}

	var spec struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.NewDecoder(res.Body).Decode(&spec); err != nil {
		t.Fatalf("decode spec: %v", err)
	}

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Courier API" {
		t.Errorf("title: got %s, want Courier API", spec.Info.Title)
	}
	if spec.Info.Version != "0.1.0" {
		t.Errorf("version: got %s, want 0.1.0", spec.Info.Version)
	}

	paths := []string{
		"/documents",
		"/documents/upload",
		"/documents/batch",
		"/documents/search",
		"/documents/{id}",
		"/documents/{id}/history",
		"/documents/{id}/refs",
		"/documents/{id}/file",
		"/documents/{id}/transition",
		"/documents/{id}/reprocess",
		"/documents/{id}/match",
		"/documents/{id}/reclassify",
		"/parties",
		"/parties/search",
		"/parties/{id}",
		"/parties/{id}/aliases",
	}
	for _, path := range paths {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("missing path: %s", path)
		}
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	runtime := api.NewRuntime(cfg, infra, metrics.New("api"))

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max page size: got %d, want 100", runtime.Pagination.MaxPageSize)
	}
	if runtime.Logger == nil {
		t.Error("runtime logger is nil")
	}
	if runtime.Database == nil {
		t.Error("runtime database is nil")
	}
	if runtime.Storage == nil {
		t.Error("runtime storage is nil")
	}
	if runtime.Queue == nil {
		t.Error("runtime queue is nil")
	}
	if runtime.Lifecycle == nil {
		t.Error("runtime lifecycle is nil")
	}
	if runtime.Metrics == nil {
		t.Error("runtime metrics is nil")
	}
}

func TestNewDomain(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)
	runtime := api.NewRuntime(cfg, infra, metrics.New("api"))

	domain := api.NewDomain(cfg, runtime)
	if domain == nil {
		t.Fatal("NewDomain() returned nil")
	}

	if domain.Documents == nil {
		t.Error("domain documents system is nil")
	}
	if domain.Parties == nil {
		t.Error("domain parties system is nil")
	}
	if domain.Pipeline == nil {
		t.Error("domain pipeline system is nil")
	}
}
