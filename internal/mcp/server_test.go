package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/config"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
	"github.com/a3tai/visa-pdf-filler/internal/pdfform"
	"github.com/a3tai/visa-pdf-filler/internal/records"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/summary"
)

type fakeBackend struct {
	lastFill service.FillRequest
	fillErr  error
}

func (f *fakeBackend) Fill(_ context.Context, req service.FillRequest) (*service.FillOutcome, error) {
	f.lastFill = req
	if f.fillErr != nil {
		return nil, f.fillErr
	}
	return &service.FillOutcome{
		Form:          service.Form{Country: "austria", Name: "Austria"},
		RecordID:      req.RecordID,
		RecordType:    records.RecordTypeTraveler,
		PDF:           []byte("%PDF-1.7 filled"),
		Resolved:      3,
		Updated:       []string{"surname", "first_name"},
		MissingFields: []string{"purpose_tourism"},
	}, nil
}

func (f *fakeBackend) ResolveFields(_ context.Context, id int64, _, country string) (*service.Resolution, error) {
	return &service.Resolution{
		Country:    strings.ToLower(country),
		RecordID:   id,
		RecordType: records.RecordTypeTraveler,
		Fields:     fields.Values{"surname": fields.Text("Silva")},
	}, nil
}

func (f *fakeBackend) Summary(_ context.Context, id int64, recordType string) (*summary.View, error) {
	if id == 404 {
		return nil, apperrors.NotFound("traveler %d not found", id)
	}
	return &summary.View{RecordType: records.RecordTypeTraveler, Locked: true}, nil
}

func (f *fakeBackend) Forms() []service.Form {
	return []service.Form{
		{Country: "austria", Name: "Austria", Template: "austria.pdf", Available: true},
		{Country: "malta", Name: "Malta", Template: "malta.pdf"},
	}
}

func (f *fakeBackend) InspectTemplate(country string) (*service.TemplateReport, error) {
	if country != "Austria" {
		return nil, apperrors.New(apperrors.KindTemplate, "template malta.pdf not found")
	}
	return &service.TemplateReport{
		Form: service.Form{Country: "austria", Name: "Austria", Template: "austria.pdf"},
		Info: &pdfform.TemplateInfo{
			Pages:   4,
			HasForm: true,
			Fields: []pdfform.Field{
				{Name: "surname", Type: pdfform.FieldText},
				{Name: "sex", Type: pdfform.FieldRadio, Options: []string{"Male", "Female"}},
			},
		},
		Unmapped: []string{"sex"},
		Absent:   []string{"purpose_tourism"},
	}, nil
}

func newTestServer(t *testing.T, backend Backend) (*Server, string) {
	t.Helper()
	out := t.TempDir()
	cfg := &config.Config{
		Mode:              "stdio",
		TemplateDirectory: t.TempDir(),
		OutputDirectory:   out,
		DefaultFlatten:    true,
		Version:           "1.0.0",
		ServerName:        "test-server",
	}
	server, err := NewServer(cfg, backend, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server, out
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func TestNewServer(t *testing.T) {
	cfg := &config.Config{OutputDirectory: t.TempDir(), ServerName: "test-server", Version: "1.0.0"}

	if _, err := NewServer(cfg, nil, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for nil backend")
	}

	cfg.OutputDirectory = ""
	if _, err := NewServer(cfg, &fakeBackend{}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for empty output directory")
	}

	server, _ := newTestServer(t, &fakeBackend{})
	if server.mcpServer == nil {
		t.Error("mcpServer should be initialized")
	}
}

func TestServer_ListsTools(t *testing.T) {
	server, _ := newTestServer(t, &fakeBackend{})
	ctx := context.Background()

	server.mcpServer.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize",`+
		`"params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`))
	resp := server.mcpServer.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode response %s: %v", data, err)
	}

	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"visa_fill_form", "visa_list_forms", "visa_record_summary", "visa_resolve_fields", "visa_template_fields"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestServer_HandleFillForm(t *testing.T) {
	backend := &fakeBackend{}
	server, out := newTestServer(t, backend)

	result, err := server.handleFillForm(context.Background(), callRequest(map[string]interface{}{
		"travelerId":    float64(42),
		"travelCountry": "Austria",
		"recordType":    "traveler",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	text := extractTextFromResult(result)
	for _, want := range []string{"Filled Austria form for traveler 42", "Updated fields: 2", "Missing fields: 1", "purpose_tourism"} {
		if !strings.Contains(text, want) {
			t.Errorf("result %q should contain %q", text, want)
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "austria-42.pdf"))
	if err != nil {
		t.Fatalf("filled form not written: %v", err)
	}
	if string(data) != "%PDF-1.7 filled" {
		t.Errorf("unexpected output %q", data)
	}
	if !backend.lastFill.Flatten {
		t.Error("flatten should default to the configured value")
	}
}

func TestServer_HandleFillFormOptions(t *testing.T) {
	backend := &fakeBackend{}
	server, out := newTestServer(t, backend)

	result, err := server.handleFillForm(context.Background(), callRequest(map[string]interface{}{
		"travelerId":     "7",
		"travelCountry":  "Austria",
		"recordType":     "dependent",
		"flatten":        false,
		"outputFilename": "../../escape.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}
	if _, err := os.Stat(filepath.Join(out, "escape.pdf")); err != nil {
		t.Errorf("output should stay inside the output directory: %v", err)
	}
	want := service.FillRequest{RecordID: 7, RecordType: "dependent", Country: "Austria", Flatten: false}
	if backend.lastFill != want {
		t.Errorf("fill request = %+v, want %+v", backend.lastFill, want)
	}
}

func TestServer_InvalidArguments(t *testing.T) {
	server, _ := newTestServer(t, &fakeBackend{})

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]interface{}
	}{
		{"fill without id", server.handleFillForm, map[string]interface{}{"travelCountry": "Austria"}},
		{"fill with text id", server.handleFillForm, map[string]interface{}{"travelerId": "abc", "travelCountry": "Austria"}},
		{"fill with fractional id", server.handleFillForm, map[string]interface{}{"travelerId": 4.5, "travelCountry": "Austria"}},
		{"fill without country", server.handleFillForm, map[string]interface{}{"travelerId": float64(1)}},
		{"resolve without country", server.handleResolveFields, map[string]interface{}{"travelerId": float64(1)}},
		{"summary without id", server.handleRecordSummary, map[string]interface{}{}},
		{"template without country", server.handleTemplateFields, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error instead of tool result: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got: %s", extractTextFromResult(result))
			}
		})
	}
}

func TestServer_BackendErrorsCarryKind(t *testing.T) {
	backend := &fakeBackend{fillErr: apperrors.New(apperrors.KindUnavailable, "database unavailable")}
	server, _ := newTestServer(t, backend)

	result, _ := server.handleFillForm(context.Background(), callRequest(map[string]interface{}{
		"travelerId": float64(1), "travelCountry": "Austria",
	}))
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := extractTextFromResult(result); text != "UNAVAILABLE: database unavailable (retryable)" {
		t.Errorf("unexpected error text %q", text)
	}

	result, _ = server.handleRecordSummary(context.Background(), callRequest(map[string]interface{}{"travelerId": float64(404)}))
	if text := extractTextFromResult(result); !result.IsError || !strings.HasPrefix(text, "NOT_FOUND") {
		t.Errorf("unexpected result %q", text)
	}
}

func TestServer_JSONTools(t *testing.T) {
	server, _ := newTestServer(t, &fakeBackend{})

	result, err := server.handleResolveFields(context.Background(), callRequest(map[string]interface{}{
		"travelerId": float64(42), "travelCountry": "Austria",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	var res map[string]interface{}
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &res); err != nil {
		t.Fatalf("resolve result is not JSON: %v", err)
	}
	if res["fields"].(map[string]interface{})["surname"] != "Silva" {
		t.Errorf("unexpected fields %v", res["fields"])
	}

	result, err = server.handleRecordSummary(context.Background(), callRequest(map[string]interface{}{"travelerId": float64(42)}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if !strings.Contains(extractTextFromResult(result), `"locked": true`) {
		t.Errorf("summary should report the lock flag: %s", extractTextFromResult(result))
	}
}

func TestServer_ListFormsAndTemplateFields(t *testing.T) {
	server, _ := newTestServer(t, &fakeBackend{})

	result, _ := server.handleListForms(context.Background(), callRequest(nil))
	text := extractTextFromResult(result)
	if !strings.Contains(text, `1. Austria (travelCountry="austria") - austria.pdf, available`) {
		t.Errorf("unexpected forms listing: %s", text)
	}
	if !strings.Contains(text, "malta.pdf, template missing") {
		t.Errorf("missing template should be flagged: %s", text)
	}

	result, _ = server.handleTemplateFields(context.Background(), callRequest(map[string]interface{}{"travelCountry": "Austria"}))
	text = extractTextFromResult(result)
	for _, want := range []string{"Pages: 4", "2. sex [radio] options: Male | Female", "without a mapping rule (1)", "missing from the template (1)"} {
		if !strings.Contains(text, want) {
			t.Errorf("template report %q should contain %q", text, want)
		}
	}

	result, _ = server.handleTemplateFields(context.Background(), callRequest(map[string]interface{}{"travelCountry": "Malta"}))
	if !result.IsError {
		t.Error("expected tool error for missing template")
	}
}

func TestServer_ServeStopsOnEOF(t *testing.T) {
	server, _ := newTestServer(t, &fakeBackend{})

	var out strings.Builder
	if err := server.Serve(context.Background(), strings.NewReader(""), &out); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

// extractTextFromResult returns the first text content of a tool result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
