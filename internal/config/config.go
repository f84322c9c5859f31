package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Environment constants
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxBodySize    = 10 * 1024 * 1024 // 10MB
	DefaultMaxOpenConns   = 10
	DefaultQueryTimeout   = 10 * time.Second
	DefaultRateLimit      = 10.0
	DefaultRateBurst      = 20
	DefaultTemplateDir    = "templates"
	DefaultOutputDir      = "output"
	DefaultTemplateTTL    = 5 * time.Minute
	DefaultShutdownPeriod = 15 * time.Second

	// EnvPrefix prefixes every environment variable, e.g. VISA_PDF_DB_DSN.
	EnvPrefix = "VISA_PDF"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned by LoadFromFlags when --version is given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the visa form filler
type Config struct {
	// Server configuration
	Mode        string // "server" or "stdio"
	Host        string
	Port        int
	TLSCertFile string
	TLSKeyFile  string
	CORSOrigins []string
	RateLimit   float64 // requests per second per client IP, 0 disables
	RateBurst   int
	MaxBodySize int64

	// Forms configuration
	TemplateDirectory string
	MappingDirectory  string // optional overrides for the embedded mappings
	OutputDirectory   string
	TemplateCacheTTL  time.Duration
	DefaultFlatten    bool

	// Database configuration
	DatabaseDSN  string
	MaxOpenConns int
	QueryTimeout time.Duration

	// Application configuration
	Version     string
	ServerName  string
	Environment string
	LogLevel    string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:              ModeServer,
		Host:              DefaultHost,
		Port:              DefaultPort,
		CORSOrigins:       []string{"*"},
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		MaxBodySize:       DefaultMaxBodySize,
		TemplateDirectory: DefaultTemplateDir,
		OutputDirectory:   DefaultOutputDir,
		TemplateCacheTTL:  DefaultTemplateTTL,
		DefaultFlatten:    true,
		MaxOpenConns:      DefaultMaxOpenConns,
		QueryTimeout:      DefaultQueryTimeout,
		Version:           "1.0.0",
		ServerName:        "visa-pdf-filler",
		Environment:       EnvProduction,
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses args (without the program name) together with the
// environment and an optional .env file, and returns a validated
// configuration. Flags win over environment variables, which win over
// defaults.
func LoadFromFlags(args []string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	fs := pflag.NewFlagSet(cfg.ServerName, pflag.ContinueOnError)
	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	setupUsageMessage(fs, os.Stderr)

	// Check for version flag before parsing
	if checkVersionFlag(args) {
		return nil, ErrVersionRequested
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	populateConfigFromViper(v, cfg)

	for _, dir := range []*string{&cfg.TemplateDirectory, &cfg.MappingDirectory, &cfg.OutputDirectory} {
		if *dir == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*dir); err == nil {
			*dir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("tls-cert", cfg.TLSCertFile)
	v.SetDefault("tls-key", cfg.TLSKeyFile)
	v.SetDefault("cors-origins", cfg.CORSOrigins)
	v.SetDefault("rate-limit", cfg.RateLimit)
	v.SetDefault("rate-burst", cfg.RateBurst)
	v.SetDefault("max-body-size", cfg.MaxBodySize)
	v.SetDefault("template-dir", cfg.TemplateDirectory)
	v.SetDefault("mapping-dir", cfg.MappingDirectory)
	v.SetDefault("output-dir", cfg.OutputDirectory)
	v.SetDefault("template-cache-ttl", cfg.TemplateCacheTTL)
	v.SetDefault("flatten", cfg.DefaultFlatten)
	v.SetDefault("db-dsn", cfg.DatabaseDSN)
	v.SetDefault("db-max-open-conns", cfg.MaxOpenConns)
	v.SetDefault("db-query-timeout", cfg.QueryTimeout)
	v.SetDefault("environment", cfg.Environment)
	v.SetDefault("log-level", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP API, 'stdio' for MCP standard I/O")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("tls-cert", cfg.TLSCertFile, "TLS certificate file; enables HTTPS together with --tls-key")
	fs.String("tls-key", cfg.TLSKeyFile, "TLS private key file")
	fs.StringSlice("cors-origins", cfg.CORSOrigins, "Allowed CORS origins")
	fs.Float64("rate-limit", cfg.RateLimit, "Requests per second allowed per client IP (0 disables)")
	fs.Int("rate-burst", cfg.RateBurst, "Burst size of the per-client rate limiter")
	fs.Int64("max-body-size", cfg.MaxBodySize, "Maximum request body size in bytes")
	fs.String("template-dir", cfg.TemplateDirectory, "Directory containing the country PDF templates")
	fs.String("mapping-dir", cfg.MappingDirectory, "Directory with mapping overrides (.json, .yaml)")
	fs.String("output-dir", cfg.OutputDirectory, "Directory for filled forms written by the CLI")
	fs.Duration("template-cache-ttl", cfg.TemplateCacheTTL, "How long template bytes stay cached (0 keeps them forever)")
	fs.Bool("flatten", cfg.DefaultFlatten, "Flatten filled forms unless the request says otherwise")
	fs.String("db-dsn", cfg.DatabaseDSN, "PostgreSQL connection string")
	fs.Int("db-max-open-conns", cfg.MaxOpenConns, "Maximum open database connections")
	fs.Duration("db-query-timeout", cfg.QueryTimeout, "Timeout applied to each database query")
	fs.String("environment", cfg.Environment, "Deployment environment (development, production)")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, w io.Writer) {
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(w, "\nVisa PDF Filler - fills country visa application forms from traveler records\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s --db-dsn=postgres://...                    # HTTP API on 127.0.0.1:8080\n", os.Args[0])
		fmt.Fprintf(w, "  %s --mode=stdio --db-dsn=postgres://...       # MCP over stdio\n", os.Args[0])
		fmt.Fprintf(w, "  %s --host=0.0.0.0 --port=8443 --tls-cert=c.pem --tls-key=k.pem\n", os.Args[0])
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  Every flag may be set as %s_<FLAG>, e.g. %s_DB_DSN or %s_TEMPLATE_DIR.\n",
			EnvPrefix, EnvPrefix, EnvPrefix)
		fmt.Fprintf(w, "  A .env file in the working directory is loaded first.\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.TLSCertFile = v.GetString("tls-cert")
	cfg.TLSKeyFile = v.GetString("tls-key")
	cfg.CORSOrigins = splitList(v.GetStringSlice("cors-origins"))
	cfg.RateLimit = v.GetFloat64("rate-limit")
	cfg.RateBurst = v.GetInt("rate-burst")
	cfg.MaxBodySize = v.GetInt64("max-body-size")
	cfg.TemplateDirectory = v.GetString("template-dir")
	cfg.MappingDirectory = v.GetString("mapping-dir")
	cfg.OutputDirectory = v.GetString("output-dir")
	cfg.TemplateCacheTTL = v.GetDuration("template-cache-ttl")
	cfg.DefaultFlatten = v.GetBool("flatten")
	cfg.DatabaseDSN = v.GetString("db-dsn")
	cfg.MaxOpenConns = v.GetInt("db-max-open-conns")
	cfg.QueryTimeout = v.GetDuration("db-query-timeout")
	cfg.Environment = strings.ToLower(v.GetString("environment"))
	cfg.LogLevel = strings.ToLower(v.GetString("log-level"))
}

// splitList flattens comma separated entries, as environment variables
// arrive as a single string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls-cert and tls-key must be set together")
	}

	if c.TemplateDirectory == "" {
		return errors.New("template directory cannot be empty")
	}
	if _, err := os.Stat(c.TemplateDirectory); err != nil {
		return fmt.Errorf("cannot access template directory %s: %w", c.TemplateDirectory, err)
	}

	if c.MappingDirectory != "" {
		if info, err := os.Stat(c.MappingDirectory); err != nil {
			return fmt.Errorf("cannot access mapping directory %s: %w", c.MappingDirectory, err)
		} else if !info.IsDir() {
			return fmt.Errorf("mapping directory %s is not a directory", c.MappingDirectory)
		}
	}

	if c.OutputDirectory != "" {
		if _, err := os.Stat(c.OutputDirectory); os.IsNotExist(err) {
			if err := os.MkdirAll(c.OutputDirectory, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create output directory %s: %w", c.OutputDirectory, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access output directory %s: %w", c.OutputDirectory, err)
		}
	}

	if c.DatabaseDSN == "" {
		return errors.New("database DSN cannot be empty")
	}
	if c.MaxOpenConns <= 0 {
		return errors.New("db-max-open-conns must be positive")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("db-query-timeout must be positive")
	}

	if c.MaxBodySize <= 0 {
		return errors.New("maximum body size must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("rate-limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return errors.New("rate-burst must be positive when rate limiting is enabled")
	}

	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("invalid environment: %s (must be one of: development, production)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsDevelopment reports whether error responses may carry internal detail.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// TLSEnabled reports whether the HTTP server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// String returns a string representation of the configuration. The DSN is
// redacted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TLS: %t, TemplateDirectory: %s, "+
		"MappingDirectory: %s, Environment: %s, LogLevel: %s, MaxOpenConns: %d, QueryTimeout: %s}",
		c.Mode, c.Host, c.Port, c.TLSEnabled(), c.TemplateDirectory,
		c.MappingDirectory, c.Environment, c.LogLevel, c.MaxOpenConns, c.QueryTimeout)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
