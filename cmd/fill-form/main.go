// Command fill-form fills one visa application PDF straight from the
// database to a file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/config"
	"github.com/a3tai/visa-pdf-filler/internal/logging"
	"github.com/a3tai/visa-pdf-filler/internal/mapping"
	"github.com/a3tai/visa-pdf-filler/internal/records"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/store"
	"github.com/a3tai/visa-pdf-filler/internal/templates"
)

type options struct {
	form        string
	recordID    int64
	recordType  string
	output      string
	pdfPath     string
	flatten     bool
	dsn         string
	templateDir string
	mappingDir  string
	logLevel    string
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "Fill a visa application PDF directly from the database.\n\n")
	fmt.Fprintf(w, "Usage:\n  fill-form --form <%s> --traveler-id <id> [options]\n\n",
		strings.Join(service.SupportedCountries(), "|"))
	fmt.Fprintf(w, "Options:\n%s", flags.FlagUsages())
}

// parseOptions reads the command line. Flags win over VISA_PDF_* environment
// variables; a local .env file is loaded into the environment first.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	flags := pflag.NewFlagSet("fill-form", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringP("form", "f", "", "Which country form to fill")
	flags.Int64P("traveler-id", "t", 0, "Traveler or dependent primary key")
	flags.String("record-type", string(records.RecordTypeTraveler), `"traveler" or "dependent"`)
	flags.StringP("output", "o", "", "Destination PDF (default <form>-<recordType>-<id>.pdf)")
	flags.String("pdf", "", "Override the template PDF path")
	flags.Bool("flatten", false, "Flatten the form before saving")
	flags.String("db-dsn", "", "PostgreSQL connection string")
	flags.String("template-dir", config.DefaultTemplateDir, "Directory holding the country templates")
	flags.String("mapping-dir", "", "Directory with mapping overrides")
	flags.String("log-level", "warn", "Log level")
	flags.Usage = func() { usage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	opts := &options{
		form:        service.NormalizeCountry(v.GetString("form")),
		recordID:    v.GetInt64("traveler-id"),
		recordType:  strings.ToLower(strings.TrimSpace(v.GetString("record-type"))),
		output:      v.GetString("output"),
		pdfPath:     v.GetString("pdf"),
		flatten:     v.GetBool("flatten"),
		dsn:         v.GetString("db-dsn"),
		templateDir: v.GetString("template-dir"),
		mappingDir:  v.GetString("mapping-dir"),
		logLevel:    v.GetString("log-level"),
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.output == "" {
		opts.output = fmt.Sprintf("%s-%s-%d.pdf", opts.form, opts.recordType, opts.recordID)
	}
	return opts, nil
}

func (o *options) validate() error {
	supported := false
	for _, c := range service.SupportedCountries() {
		if c == o.form {
			supported = true
		}
	}
	if !supported {
		return fmt.Errorf("you must provide a valid --form option (%s)", strings.Join(service.SupportedCountries(), ", "))
	}
	if o.recordID <= 0 {
		return fmt.Errorf("you must provide --traveler-id with a positive numeric value")
	}
	if _, err := records.ParseRecordType(o.recordType); err != nil {
		return fmt.Errorf(`--record-type must be "traveler" or "dependent"`)
	}
	if o.dsn == "" {
		return fmt.Errorf("database DSN is required (--db-dsn or %s_DB_DSN)", config.EnvPrefix)
	}
	return nil
}

// fileTemplate serves a single template file regardless of the name the
// mapping asks for.
type fileTemplate struct {
	path string
}

func (f fileTemplate) Load(string) ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileTemplate) Exists(string) bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// fill runs one fill against recs and writes the PDF to opts.output.
func fill(ctx context.Context, opts *options, recs service.RecordSource, logger *zap.Logger) (*service.FillOutcome, error) {
	var source service.TemplateSource
	if opts.pdfPath != "" {
		source = fileTemplate{path: opts.pdfPath}
	} else {
		tpl, err := templates.NewStore(opts.templateDir, 0, nil, logger.Named("templates"))
		if err != nil {
			return nil, err
		}
		source = tpl
	}

	svc := service.New(recs, mapping.NewLoader(opts.mappingDir, 0, logger.Named("mapping")), source, nil, logger)
	outcome, err := svc.Fill(ctx, service.FillRequest{
		RecordID:   opts.recordID,
		RecordType: opts.recordType,
		Country:    opts.form,
		Flatten:    opts.flatten,
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(opts.output, outcome.PDF, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", opts.output, err)
	}
	return outcome, nil
}

func report(w io.Writer, path string, outcome *service.FillOutcome) {
	fmt.Fprintf(w, "Filled PDF saved to %q.\n", path)
	fmt.Fprintf(w, "Updated fields (%d): %s\n", len(outcome.Updated), strings.Join(outcome.Updated, ", "))
	if len(outcome.MissingFields) > 0 {
		fmt.Fprintf(w, "Fields missing from template: %s\n", strings.Join(outcome.MissingFields, ", "))
	}
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	logger, err := logging.New(logging.Options{Level: opts.logLevel, Environment: config.EnvDevelopment, Stdio: true})
	if err != nil {
		return err
	}
	defer logging.Close(logger)

	db, err := store.Connect(ctx, opts.dsn, 2, logger.Named("store"))
	if err != nil {
		return err
	}
	defer db.Close()

	outcome, err := fill(ctx, opts, store.New(db, config.DefaultQueryTimeout, nil, logger.Named("store")), logger)
	if err != nil {
		return err
	}
	report(stdout, opts.output, outcome)
	return nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fill PDF: %v\n", err)
		os.Exit(1)
	}
}
