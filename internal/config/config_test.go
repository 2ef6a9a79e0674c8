package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/courier-labs/courier/internal/automation"
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/documents"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "5m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "courier"
user = "courier"
password = "courier"
ssl_mode = "disable"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "15m"
conn_timeout = "5s"

[storage]
container_name = "intake"
connection_string = "DefaultEndpointsProtocol=http;AccountName=courierstore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/courierstore;"

[queue]
url = "nats://localhost:4222"
name = "courier"

[suggest]
enabled = false

[automation]
default_level = "manual"
confidence_threshold = 0.92
match_threshold = 0.92

[automation.levels]
AP_INVOICE = "auto_link"

[worker]
intake_subject = "courier.intake"
concurrency = 4

[api]
base_path = "/api"

[api.cors]
enabled = false

[api.pagination]
default_page_size = 25
max_page_size = 50
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"
`

// minimalConfig provides the minimum fields required for validation to
// pass (db name, db user, storage connection string). Everything else
// fills in from defaults.
const minimalConfig = `
shutdown_timeout = "30s"

[server]
port = 8080

[database]
name = "courier"
user = "courier"

[storage]
connection_string = "conn"

[api]
base_path = "/api"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.ContainerName != "intake" {
		t.Errorf("storage container: got %s, want intake", cfg.Storage.ContainerName)
	}
	if cfg.Queue.URL != "nats://localhost:4222" {
		t.Errorf("queue url: got %s, want nats://localhost:4222", cfg.Queue.URL)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("api base_path: got %s, want /api", cfg.API.BasePath)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("pagination max_page_size: got %d, want 50", cfg.API.Pagination.MaxPageSize)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("COURIER_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_VERSION", "2.0.0")
	t.Setenv("COURIER_SERVER_PORT", "3000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("COURIER_DB_NAME", "testdb")
	t.Setenv("COURIER_DB_USER", "testuser")
	t.Setenv("COURIER_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Storage.ConnectionString != "conn" {
		t.Errorf("storage conn from env: got %s, want conn", cfg.Storage.ConnectionString)
	}
	if cfg.Queue.URL != "nats://localhost:4222" {
		t.Errorf("queue url default: got %s, want nats://localhost:4222", cfg.Queue.URL)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `invalid = `)
	chdir(t, dir)

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnvDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
}

func TestEnvFromEnvVar(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_ENV", "production")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "production" {
		t.Errorf("env: got %s, want production", cfg.Env())
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
}

func TestServerAddr(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
}

func TestPaginationDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.API.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default_page_size: got %d, want 20", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.API.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max_page_size: got %d, want 100", cfg.API.Pagination.MaxPageSize)
	}
}

func TestPaginationEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_PAGINATION_DEFAULT_PAGE_SIZE", "10")
	t.Setenv("COURIER_PAGINATION_MAX_PAGE_SIZE", "200")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.API.Pagination.DefaultPageSize != 10 {
		t.Errorf("pagination default_page_size: got %d, want 10", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.API.Pagination.MaxPageSize != 200 {
		t.Errorf("pagination max_page_size: got %d, want 200", cfg.API.Pagination.MaxPageSize)
	}
}

func TestMaxUploadSizeBytes(t *testing.T) {
	tests := []struct {
		name string
		size string
		want int64
	}{
		{"valid 50MB", "50MB", 50 * 1024 * 1024},
		{"valid 10MB", "10MB", 10 * 1024 * 1024},
		{"valid 1GB", "1GB", 1024 * 1024 * 1024},
		{"invalid falls back to 50MB", "bad", 50 * 1024 * 1024},
		{"empty falls back to 50MB", "", 50 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.APIConfig{MaxUploadSize: tt.size}
			got := cfg.MaxUploadSizeBytes()
			if got != tt.want {
				t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMaxUploadSizeDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := int64(50 * 1024 * 1024)
	if got := cfg.API.MaxUploadSizeBytes(); got != want {
		t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, want)
	}
}

func TestMaxUploadSizeEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_API_MAX_UPLOAD_SIZE", "100MB")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := int64(100 * 1024 * 1024)
	if got := cfg.API.MaxUploadSizeBytes(); got != want {
		t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, want)
	}
}

func TestServerValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name: "invalid port",
			config: `
shutdown_timeout = "30s"

[server]
port = 99999

[database]
name = "courier"
user = "courier"

[storage]
connection_string = "conn"
`,
			wantErr: "invalid port",
		},
		{
			name: "invalid read_timeout",
			config: `
shutdown_timeout = "30s"

[server]
read_timeout = "bad"

[database]
name = "courier"
user = "courier"

[storage]
connection_string = "conn"
`,
			wantErr: "invalid read_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", tt.config)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWorkerDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Worker.IntakeSubject != "courier.intake" {
		t.Errorf("intake_subject: got %s, want courier.intake", cfg.Worker.IntakeSubject)
	}
	if cfg.Worker.EventSubject != "courier.events" {
		t.Errorf("event_subject: got %s, want courier.events", cfg.Worker.EventSubject)
	}
	if cfg.Worker.QueueGroup != "courier-intake" {
		t.Errorf("queue_group: got %s, want courier-intake", cfg.Worker.QueueGroup)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("concurrency: got %d, want 4", cfg.Worker.Concurrency)
	}
	if d := cfg.Worker.MessageTimeoutDuration(); d != 2*time.Minute {
		t.Errorf("message_timeout: got %v, want 2m", d)
	}
}

func TestWorkerEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_WORKER_INTAKE_SUBJECT", "courier.intake.test")
	t.Setenv("COURIER_WORKER_CONCURRENCY", "16")
	t.Setenv("COURIER_WORKER_MESSAGE_TIMEOUT", "5m")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Worker.IntakeSubject != "courier.intake.test" {
		t.Errorf("intake_subject: got %s, want courier.intake.test", cfg.Worker.IntakeSubject)
	}
	if cfg.Worker.Concurrency != 16 {
		t.Errorf("concurrency: got %d, want 16", cfg.Worker.Concurrency)
	}
	if d := cfg.Worker.MessageTimeoutDuration(); d != 5*time.Minute {
		t.Errorf("message_timeout: got %v, want 5m", d)
	}
}

func TestAutomationDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Automation.DefaultLevel != string(automation.LevelManual) {
		t.Errorf("default_level: got %s, want manual", cfg.Automation.DefaultLevel)
	}
	if cfg.Automation.ConfidenceThreshold != automation.DefaultThreshold {
		t.Errorf("confidence_threshold: got %v, want %v", cfg.Automation.ConfidenceThreshold, automation.DefaultThreshold)
	}
	if cfg.Automation.MatchThreshold != automation.DefaultThreshold {
		t.Errorf("match_threshold: got %v, want %v", cfg.Automation.MatchThreshold, automation.DefaultThreshold)
	}
	if cfg.Automation.DuplicateLookbackDays != 365 {
		t.Errorf("duplicate_lookback_days: got %d, want 365", cfg.Automation.DuplicateLookbackDays)
	}
}

func TestAutomationLevelsFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := cfg.Automation.LevelFor(documents.TypeAPInvoice); got != automation.LevelAutoLink {
		t.Errorf("LevelFor(AP_INVOICE) = %s, want auto_link", got)
	}
	if got := cfg.Automation.LevelFor(documents.TypeBankStatement); got != automation.LevelManual {
		t.Errorf("LevelFor(BANK_STATEMENT) = %s, want manual (default)", got)
	}
}

func TestAutomationEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("COURIER_AUTOMATION_DEFAULT_LEVEL", "auto_link")
	t.Setenv("COURIER_AUTOMATION_LEVELS", "AP_INVOICE=advanced,PURCHASE_ORDER=auto_create_draft")
	t.Setenv("COURIER_AUTOMATION_CONFIDENCE_THRESHOLD", "0.85")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Automation.DefaultLevel != "auto_link" {
		t.Errorf("default_level: got %s, want auto_link", cfg.Automation.DefaultLevel)
	}
	if got := cfg.Automation.LevelFor(documents.TypeAPInvoice); got != automation.LevelAdvanced {
		t.Errorf("LevelFor(AP_INVOICE) = %s, want advanced", got)
	}
	if got := cfg.Automation.LevelFor(documents.TypePurchaseOrder); got != automation.LevelAutoCreateDraft {
		t.Errorf("LevelFor(PURCHASE_ORDER) = %s, want auto_create_draft", got)
	}
	if cfg.Automation.ConfidenceThreshold != 0.85 {
		t.Errorf("confidence_threshold: got %v, want 0.85", cfg.Automation.ConfidenceThreshold)
	}
}

func TestAutomationInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig+`
[automation]
default_level = "bogus"
`)
	chdir(t, dir)

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for invalid automation level")
	}
	if !strings.Contains(err.Error(), "invalid default_level") {
		t.Errorf("error %q does not mention invalid default_level", err.Error())
	}
}

func TestSuggestDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Suggest.Enabled {
		t.Error("suggest should be disabled by default")
	}
	if cfg.Suggest.BaseURL == "" {
		t.Error("suggest base_url should have a default")
	}
}
