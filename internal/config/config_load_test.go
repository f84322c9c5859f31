package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testDSN = "postgres://visa@localhost/visa?sslmode=disable"

// clearEnvVars blanks every variable the loader reads for the duration of t.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODE", "HOST", "PORT", "TLS_CERT", "TLS_KEY", "CORS_ORIGINS", "RATE_LIMIT", "RATE_BURST",
		"MAX_BODY_SIZE", "TEMPLATE_DIR", "MAPPING_DIR", "OUTPUT_DIR", "TEMPLATE_CACHE_TTL", "FLATTEN",
		"DB_DSN", "DB_MAX_OPEN_CONNS", "DB_QUERY_TIMEOUT", "ENVIRONMENT", "LOG_LEVEL",
	} {
		name := EnvPrefix + "_" + key
		if old, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, old) })
		}
	}
}

func baseArgs(t *testing.T) []string {
	t.Helper()
	return []string{
		"--template-dir=" + t.TempDir(),
		"--output-dir=" + filepath.Join(t.TempDir(), "out"),
		"--db-dsn=" + testDSN,
	}
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromFlags(baseArgs(t))
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.QueryTimeout != 10*time.Second {
		t.Errorf("LoadFromFlags() QueryTimeout = %v, want %v", cfg.QueryTimeout, 10*time.Second)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("LoadFromFlags() CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
	if !filepath.IsAbs(cfg.TemplateDirectory) {
		t.Errorf("LoadFromFlags() TemplateDirectory = %v, want an absolute path", cfg.TemplateDirectory)
	}
	if _, err := os.Stat(cfg.OutputDirectory); err != nil {
		t.Errorf("LoadFromFlags() did not create the output directory: %v", err)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "stdio mode",
			args: []string{"--mode=stdio"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsStdioMode() {
					t.Errorf("Mode = %v, want stdio", cfg.Mode)
				}
			},
		},
		{
			name: "custom host and port",
			args: []string{"--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Address() != "0.0.0.0:9090" {
					t.Errorf("Address() = %v, want 0.0.0.0:9090", cfg.Address())
				}
			},
		},
		{
			name: "debug logging in development",
			args: []string{"--log-level=DEBUG", "--environment=development"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() || !cfg.IsDevelopment() {
					t.Errorf("LogLevel = %v, Environment = %v", cfg.LogLevel, cfg.Environment)
				}
			},
		},
		{
			name: "database tuning",
			args: []string{"--db-max-open-conns=25", "--db-query-timeout=3s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MaxOpenConns != 25 || cfg.QueryTimeout != 3*time.Second {
					t.Errorf("MaxOpenConns = %v, QueryTimeout = %v", cfg.MaxOpenConns, cfg.QueryTimeout)
				}
			},
		},
		{
			name: "cors origins and no flatten",
			args: []string{"--cors-origins=https://admin.example.com,https://app.example.com", "--flatten=false"},
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://app.example.com" {
					t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
				}
				if cfg.DefaultFlatten {
					t.Error("DefaultFlatten = true, want false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			cfg, err := LoadFromFlags(append(baseArgs(t), tt.args...))
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)
	templates := t.TempDir()

	t.Setenv("VISA_PDF_MODE", "stdio")
	t.Setenv("VISA_PDF_PORT", "3000")
	t.Setenv("VISA_PDF_TEMPLATE_DIR", templates)
	t.Setenv("VISA_PDF_OUTPUT_DIR", t.TempDir())
	t.Setenv("VISA_PDF_DB_DSN", testDSN)
	t.Setenv("VISA_PDF_LOG_LEVEL", "warn")
	t.Setenv("VISA_PDF_CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("VISA_PDF_DB_QUERY_TIMEOUT", "2s")

	cfg, err := LoadFromFlags(nil)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.TemplateDirectory != templates {
		t.Errorf("LoadFromFlags() TemplateDirectory = %v, want %v", cfg.TemplateDirectory, templates)
	}
	if cfg.DatabaseDSN != testDSN {
		t.Errorf("LoadFromFlags() DatabaseDSN = %v, want %v", cfg.DatabaseDSN, testDSN)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("LoadFromFlags() CORSOrigins = %v, want two origins", cfg.CORSOrigins)
	}
	if cfg.QueryTimeout != 2*time.Second {
		t.Errorf("LoadFromFlags() QueryTimeout = %v, want %v", cfg.QueryTimeout, 2*time.Second)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("VISA_PDF_HOST", "192.168.1.1")
	t.Setenv("VISA_PDF_PORT", "3000")

	cfg, err := LoadFromFlags(append(baseArgs(t), "--host=localhost", "--port=8888"))
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Host != "localhost" {
		t.Errorf("LoadFromFlags() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"invalid port", []string{"--port=99999"}, "port must be between 1 and 65535"},
		{"invalid log level", []string{"--log-level=trace"}, "invalid log level"},
		{"unknown flag", []string{"--pdf-dir=/tmp"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			_, err := LoadFromFlags(append(baseArgs(t), tt.args...))
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_MissingDSN(t *testing.T) {
	clearEnvVars(t)
	_, err := LoadFromFlags([]string{"--template-dir=" + t.TempDir(), "--output-dir=" + t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "database DSN") {
		t.Errorf("LoadFromFlags() error = %v, want error about the DSN", err)
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	for _, arg := range []string{"--version", "-version", "-v"} {
		_, err := LoadFromFlags([]string{arg})
		if !errors.Is(err, ErrVersionRequested) {
			t.Errorf("LoadFromFlags(%q) error = %v, want ErrVersionRequested", arg, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("loadDotEnv() unexpected error for missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VISA_PDF_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("VISA_PDF_DOTENV_PROBE") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() unexpected error: %v", err)
	}
	if got := os.Getenv("VISA_PDF_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("VISA_PDF_DOTENV_PROBE = %q, want %q", got, "loaded")
	}
}
