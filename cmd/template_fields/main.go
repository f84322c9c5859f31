package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/config"
	"github.com/a3tai/visa-pdf-filler/internal/logging"
	"github.com/a3tai/visa-pdf-filler/internal/mapping"
	"github.com/a3tai/visa-pdf-filler/internal/mcp"
	"github.com/a3tai/visa-pdf-filler/internal/pdfform"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/templates"
)

type options struct {
	country     string
	templateDir string
	mappingDir  string
	format      string
	verbose     bool
	path        string
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Template Fields - list the interactive fields of a visa form template")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  template_fields [OPTIONS] <pdf_file>")
	fmt.Fprintln(w, "  template_fields [OPTIONS] --country <name>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "With --country the country's template is read from the template directory")
	fmt.Fprintln(w, "and compared against its mapping.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, flags.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  template_fields templates/austria.pdf")
	fmt.Fprintln(w, "  template_fields --country malta --template-dir templates")
	fmt.Fprintln(w, "  template_fields --format json --country portugal")
}

func parseOptions(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("template_fields", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.country, "country", "c", "", "Compare the country's template with its mapping")
	flags.StringVar(&opts.templateDir, "template-dir", config.DefaultTemplateDir, "Directory holding the country templates")
	flags.StringVar(&opts.mappingDir, "mapping-dir", "", "Directory with mapping overrides")
	flags.StringVar(&opts.format, "format", "text", "Output format: text, json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.Usage = func() { printUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if opts.format != "text" && opts.format != "json" {
		return nil, fmt.Errorf("unsupported format %q", opts.format)
	}
	switch {
	case opts.country != "" && flags.NArg() > 0:
		return nil, errors.New("give either a PDF file or --country, not both")
	case opts.country == "" && flags.NArg() == 0:
		return nil, errors.New("PDF file path or --country required")
	case flags.NArg() > 0:
		opts.path = flags.Arg(0)
	}
	return opts, nil
}

// inspectFile reports the catalog of a single PDF.
func inspectFile(path string) (*pdfform.TemplateInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	return pdfform.Inspect(data)
}

// inspectCountry reports the country's template against its mapping.
func inspectCountry(opts *options, logger *zap.Logger) (*service.TemplateReport, error) {
	tpl, err := templates.NewStore(opts.templateDir, 0, nil, logger.Named("templates"))
	if err != nil {
		return nil, err
	}
	svc := service.New(nil, mapping.NewLoader(opts.mappingDir, 0, logger.Named("mapping")), tpl, nil, logger)
	return svc.InspectTemplate(opts.country)
}

func formatInfo(path string, info *pdfform.TemplateInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", path)
	fmt.Fprintf(&b, "Pages: %d\n", info.Pages)
	fmt.Fprintf(&b, "Interactive form: %t\n", info.HasForm)
	fmt.Fprintf(&b, "Fields: %d\n", len(info.Fields))
	for i, f := range info.Fields {
		fmt.Fprintf(&b, "%d. %s [%s]", i+1, f.Name, f.Type)
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, " options: %s", strings.Join(f.Options, " | "))
		}
		if f.ReadOnly {
			b.WriteString(" read-only")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func run(opts *options, stdout io.Writer, logger *zap.Logger) error {
	var (
		result interface{}
		text   string
	)
	if opts.country != "" {
		report, err := inspectCountry(opts, logger)
		if err != nil {
			return err
		}
		result, text = report, mcp.FormatTemplateReport(report)
	} else {
		info, err := inspectFile(opts.path)
		if err != nil {
			return err
		}
		result, text = info, formatInfo(opts.path, info)
	}

	if opts.format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	_, err := io.WriteString(stdout, text)
	return err
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		os.Exit(1)
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Environment: config.EnvDevelopment, Stdio: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close(logger)

	if err := run(opts, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error inspecting template: %v\n", err)
		logging.Close(logger)
		os.Exit(1)
	}
}
