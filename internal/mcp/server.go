package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/config"
	"github.com/a3tai/visa-pdf-filler/internal/descriptions"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/summary"
	"github.com/a3tai/visa-pdf-filler/internal/templates"
)

// Backend is the part of the service the tools call.
type Backend interface {
	Fill(ctx context.Context, req service.FillRequest) (*service.FillOutcome, error)
	ResolveFields(ctx context.Context, id int64, recordType, country string) (*service.Resolution, error)
	Summary(ctx context.Context, id int64, recordType string) (*summary.View, error)
	Forms() []service.Form
	InspectTemplate(country string) (*service.TemplateReport, error)
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	backend   Backend
	outputs   *templates.PathValidator
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, backend Backend, logger *zap.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	outputs, err := templates.NewPathValidator(cfg.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		backend:   backend,
		outputs:   outputs,
		mcpServer: mcpServer,
		logger:    logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"visa_fill_form",
		mcp.WithDescription(descriptions.GetToolDescription("visa_fill_form")),
		mcp.WithNumber("travelerId",
			mcp.Required(),
			mcp.Description("ID of the traveler or dependent record"),
		),
		mcp.WithString("travelCountry",
			mcp.Required(),
			mcp.Description("Destination country whose form is filled: "+strings.Join(service.SupportedCountries(), ", ")),
		),
		mcp.WithString("recordType",
			mcp.Description("'traveler' (default) or 'dependent'"),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Merge the values into the page and remove the form fields"),
		),
		mcp.WithString("outputFilename",
			mcp.Description("File name inside the output directory (default <country>-<id>.pdf)"),
		),
	), s.handleFillForm)

	s.mcpServer.AddTool(mcp.NewTool(
		"visa_resolve_fields",
		mcp.WithDescription(descriptions.GetToolDescription("visa_resolve_fields")),
		mcp.WithNumber("travelerId",
			mcp.Required(),
			mcp.Description("ID of the traveler or dependent record"),
		),
		mcp.WithString("travelCountry",
			mcp.Required(),
			mcp.Description("Destination country whose mapping is applied"),
		),
		mcp.WithString("recordType",
			mcp.Description("'traveler' (default) or 'dependent'"),
		),
	), s.handleResolveFields)

	s.mcpServer.AddTool(mcp.NewTool(
		"visa_record_summary",
		mcp.WithDescription(descriptions.GetToolDescription("visa_record_summary")),
		mcp.WithNumber("travelerId",
			mcp.Required(),
			mcp.Description("ID of the traveler or dependent record"),
		),
		mcp.WithString("recordType",
			mcp.Description("'traveler' (default) or 'dependent'"),
		),
	), s.handleRecordSummary)

	s.mcpServer.AddTool(mcp.NewTool(
		"visa_list_forms",
		mcp.WithDescription(descriptions.GetToolDescription("visa_list_forms")),
	), s.handleListForms)

	s.mcpServer.AddTool(mcp.NewTool(
		"visa_template_fields",
		mcp.WithDescription(descriptions.GetToolDescription("visa_template_fields")),
		mcp.WithString("travelCountry",
			mcp.Required(),
			mcp.Description("Country whose template is inspected"),
		),
	), s.handleTemplateFields)
}

// Handler functions
func (s *Server) handleFillForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	country, err := request.RequireString("travelCountry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	flatten := s.config.DefaultFlatten
	if f, ok := args["flatten"].(bool); ok {
		flatten = f
	}

	outcome, err := s.backend.Fill(ctx, service.FillRequest{
		RecordID:   id,
		RecordType: stringArg(args, "recordType"),
		Country:    country,
		Flatten:    flatten,
	})
	if err != nil {
		return toolError(err), nil
	}

	name := stringArg(args, "outputFilename")
	if name == "" {
		name = outcome.DefaultFileName()
	}
	path, err := s.outputs.Resolve(filepath.Base(name))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := os.WriteFile(path, outcome.PDF, 0o600); err != nil {
		s.logger.Error("failed to write filled form", zap.String("path", path), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", path, err)), nil
	}

	return mcp.NewToolResultText(formatFillOutcome(outcome, path)), nil
}

func (s *Server) handleResolveFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	country, err := request.RequireString("travelCountry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.backend.ResolveFields(ctx, id, stringArg(request.GetArguments(), "recordType"), country)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleRecordSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	view, err := s.backend.Summary(ctx, id, stringArg(request.GetArguments(), "recordType"))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) handleListForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatForms(s.backend.Forms(), s.config.TemplateDirectory)), nil
}

func (s *Server) handleTemplateFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	country, err := request.RequireString("travelCountry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.backend.InspectTemplate(country)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(FormatTemplateReport(report)), nil
}

// requireID reads travelerId as a JSON number or a numeric string.
func requireID(request mcp.CallToolRequest) (int64, error) {
	raw, ok := request.GetArguments()["travelerId"]
	if !ok {
		return 0, fmt.Errorf("required argument \"travelerId\" not found")
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("travelerId must be an integer")
		}
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("travelerId must be numeric")
		}
		return id, nil
	default:
		return 0, fmt.Errorf("travelerId must be numeric")
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// toolError renders err with its kind so the caller can tell a bad request
// from a transient failure.
func toolError(err error) *mcp.CallToolResult {
	kind := apperrors.KindOf(err)
	msg := fmt.Sprintf("%s: %s", kind, apperrors.Message(err))
	if apperrors.IsRetryable(err) {
		msg += " (retryable)"
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Formatting helpers
func formatFillOutcome(o *service.FillOutcome, path string) string {
	text := fmt.Sprintf("Filled %s form for %s %d\n", o.Form.Name, o.RecordType, o.RecordID)
	text += fmt.Sprintf("Output: %s (%d bytes)\n", path, len(o.PDF))
	text += fmt.Sprintf("Resolved fields: %d\n", o.Resolved)
	text += fmt.Sprintf("Updated fields: %d\n", len(o.Updated))
	if len(o.Updated) > 0 {
		text += "  " + strings.Join(o.Updated, ", ") + "\n"
	}
	text += fmt.Sprintf("Missing fields: %d\n", len(o.MissingFields))
	if len(o.MissingFields) > 0 {
		text += "  " + strings.Join(o.MissingFields, ", ") + "\n"
	}
	return text
}

func formatForms(forms []service.Form, templateDir string) string {
	text := fmt.Sprintf("Supported forms (templates in %s):\n", templateDir)
	for i, f := range forms {
		status := "available"
		if !f.Available {
			status = "template missing"
		}
		text += fmt.Sprintf("%d. %s (travelCountry=%q) - %s, %s\n", i+1, f.Name, f.Country, f.Template, status)
	}
	return text
}

// FormatTemplateReport renders a template report as text.
func FormatTemplateReport(r *service.TemplateReport) string {
	text := fmt.Sprintf("Template %s for %s\n", r.Form.Template, r.Form.Name)
	text += fmt.Sprintf("Pages: %d\n", r.Info.Pages)
	text += fmt.Sprintf("Interactive form: %t\n", r.Info.HasForm)
	text += fmt.Sprintf("Fields: %d\n", len(r.Info.Fields))
	for i, f := range r.Info.Fields {
		text += fmt.Sprintf("%d. %s [%s]", i+1, f.Name, f.Type)
		if len(f.Options) > 0 {
			text += " options: " + strings.Join(f.Options, " | ")
		}
		if f.ReadOnly {
			text += " read-only"
		}
		text += "\n"
	}
	if len(r.Unmapped) > 0 {
		text += fmt.Sprintf("\nTemplate fields without a mapping rule (%d):\n  %s\n", len(r.Unmapped), strings.Join(r.Unmapped, ", "))
	}
	if len(r.Absent) > 0 {
		text += fmt.Sprintf("\nMapped fields missing from the template (%d):\n  %s\n", len(r.Absent), strings.Join(r.Absent, ", "))
	}
	return text
}

// Run serves MCP over stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server in stdio mode",
		zap.String("templateDirectory", s.config.TemplateDirectory),
		zap.String("outputDirectory", s.outputs.Directory()))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
