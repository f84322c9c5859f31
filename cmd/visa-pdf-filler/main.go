package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/config"
	"github.com/a3tai/visa-pdf-filler/internal/httpapi"
	"github.com/a3tai/visa-pdf-filler/internal/logging"
	"github.com/a3tai/visa-pdf-filler/internal/mapping"
	"github.com/a3tai/visa-pdf-filler/internal/mcp"
	"github.com/a3tai/visa-pdf-filler/internal/metrics"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/store"
	"github.com/a3tai/visa-pdf-filler/internal/templates"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// app wires the components shared by both run modes.
type app struct {
	cfg       *config.Config
	store     *store.Store
	templates *templates.Store
	service   *service.Service
	metrics   *metrics.Registry
	logger    *zap.Logger
}

func newApp(cfg *config.Config, db *sqlx.DB, reg *metrics.Registry, logger *zap.Logger) (*app, error) {
	tpl, err := templates.NewStore(cfg.TemplateDirectory, cfg.TemplateCacheTTL, reg, logger.Named("templates"))
	if err != nil {
		return nil, err
	}
	st := store.New(db, cfg.QueryTimeout, reg, logger.Named("store"))
	specs := mapping.NewLoader(cfg.MappingDirectory, cfg.TemplateCacheTTL, logger.Named("mapping"))

	for _, key := range specs.Keys() {
		if _, err := specs.Load(key); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", key, err)
		}
	}

	return &app{
		cfg:       cfg,
		store:     st,
		templates: tpl,
		service:   service.New(st, specs, tpl, reg, logger.Named("service")),
		metrics:   reg,
		logger:    logger,
	}, nil
}

// httpServer builds the HTTP server for server mode.
func (a *app) httpServer() *http.Server {
	api := httpapi.NewServer(a.service, a.store, a.metrics, httpapi.Options{
		ServiceName:    "Visa PDF Filler",
		Version:        a.cfg.Version,
		Development:    a.cfg.IsDevelopment(),
		TLS:            a.cfg.TLSEnabled(),
		CORSOrigins:    a.cfg.CORSOrigins,
		RateLimit:      a.cfg.RateLimit,
		RateBurst:      a.cfg.RateBurst,
		MaxBodySize:    a.cfg.MaxBodySize,
		DefaultFlatten: a.cfg.DefaultFlatten,
	}, a.logger.Named("http"))

	return &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(a.logger.Named("http")),
	}
}

// runServerMode serves HTTP until ctx is cancelled, then drains in-flight
// requests.
func (a *app) runServerMode(ctx context.Context) error {
	srv := a.httpServer()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", a.cfg.TLSEnabled()),
			zap.String("environment", a.cfg.Environment),
			zap.Strings("countries", service.SupportedCountries()))
		var err error
		if a.cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// runStdioMode serves MCP over stdin/stdout. The parent process controls
// the lifecycle.
func (a *app) runStdioMode(ctx context.Context) error {
	server, err := mcp.NewServer(a.cfg, a.service, a.logger.Named("mcp"))
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if version != "dev" {
		cfg.Version = version
	}
	logger.Info("starting", zap.String("version", cfg.Version), zap.Stringer("config", cfg))

	db, err := store.Connect(ctx, cfg.DatabaseDSN, cfg.MaxOpenConns, logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database pool", zap.Error(err))
		}
		logger.Info("database pool closed")
	}()

	a, err := newApp(cfg, db, metrics.NewDefault(), logger)
	if err != nil {
		return err
	}

	if cfg.IsServerMode() {
		return a.runServerMode(ctx)
	}
	return a.runStdioMode(ctx)
}

func main() {
	cfg, err := config.LoadFromFlags(os.Args[1:])
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Stdio:       cfg.IsStdioMode(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logging.Close(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		logging.Close(logger)
		os.Exit(1)
	}
	logger.Info("server stopped successfully")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Visa PDF Filler\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
