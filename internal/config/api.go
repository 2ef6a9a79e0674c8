package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/courier-labs/courier/pkg/formatting"
	"github.com/courier-labs/courier/pkg/middleware"
	"github.com/courier-labs/courier/pkg/openapi"
	"github.com/courier-labs/courier/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "COURIER_CORS_ENABLED",
	Origins:          "COURIER_CORS_ORIGINS",
	AllowedMethods:   "COURIER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "COURIER_CORS_ALLOWED_HEADERS",
	AllowCredentials: "COURIER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "COURIER_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "COURIER_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "COURIER_PAGINATION_MAX_PAGE_SIZE",
}

var docsEnv = &openapi.ConfigEnv{
	Title:       "COURIER_API_DOCS_TITLE",
	Description: "COURIER_API_DOCS_DESCRIPTION",
}

// APIConfig holds API routing, CORS, pagination, and docs settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	BatchLimit    int                   `toml:"batch_limit"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	Docs          openapi.Config        `toml:"docs"`
}

func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 50 * 1024 * 1024 // 50MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.Docs.Finalize(docsEnv); err != nil {
		return fmt.Errorf("docs: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	if overlay.BatchLimit != 0 {
		c.BatchLimit = overlay.BatchLimit
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.Docs.Merge(&overlay.Docs)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
	if c.BatchLimit == 0 {
		c.BatchLimit = 100
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("COURIER_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("COURIER_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
	if v := os.Getenv("COURIER_API_BATCH_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.BatchLimit = limit
		}
	}
}

func (c *APIConfig) validate() error {
	if c.BatchLimit < 1 {
		return fmt.Errorf("invalid batch_limit: %d", c.BatchLimit)
	}
	if _, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	return nil
}
