// Package service runs the fill pipeline: record store, mapping resolver and
// form filler, for one (record, country) pair at a time.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
	"github.com/a3tai/visa-pdf-filler/internal/mapping"
	"github.com/a3tai/visa-pdf-filler/internal/metrics"
	"github.com/a3tai/visa-pdf-filler/internal/pdfform"
	"github.com/a3tai/visa-pdf-filler/internal/records"
	"github.com/a3tai/visa-pdf-filler/internal/summary"
)

// RecordSource reads records and writes the lock flag.
type RecordSource interface {
	LoadContext(ctx context.Context, id int64, rt records.RecordType) (records.Context, error)
	FetchDocuments(ctx context.Context, id int64, rt records.RecordType) ([]records.Document, error)
	SetLockStatus(ctx context.Context, id int64, rt records.RecordType, locked bool) error
}

// SpecSource loads mapping specs by key.
type SpecSource interface {
	Load(key string) (*mapping.Spec, error)
}

// TemplateSource loads template files by name.
type TemplateSource interface {
	Load(name string) ([]byte, error)
	Exists(name string) bool
}

// FillRequest selects the record and country form to fill.
type FillRequest struct {
	RecordID   int64
	RecordType string
	Country    string
	Flatten    bool
}

// FillOutcome is a filled form plus what was and was not written.
type FillOutcome struct {
	Form          Form
	RecordID      int64
	RecordType    records.RecordType
	PDF           []byte
	Resolved      int
	Updated       []string
	MissingFields []string
}

// DefaultFileName is the download name used when the caller gives none.
func (o *FillOutcome) DefaultFileName() string {
	return fmt.Sprintf("%s-%d.pdf", o.Form.Country, o.RecordID)
}

// Resolution is the resolved field map of a record for one country form.
type Resolution struct {
	Country    string             `json:"country"`
	RecordID   int64              `json:"recordId"`
	RecordType records.RecordType `json:"recordType"`
	Fields     fields.Values      `json:"fields"`
}

// Service orchestrates fills and the admin summary.
type Service struct {
	records   RecordSource
	specs     SpecSource
	templates TemplateSource
	resolver  *mapping.Resolver
	filler    *pdfform.Filler
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// New creates a service. reg may be nil.
func New(recs RecordSource, specs SpecSource, templates TemplateSource, reg *metrics.Registry, logger *zap.Logger) *Service {
	return &Service{
		records:   recs,
		specs:     specs,
		templates: templates,
		resolver:  mapping.NewResolver(logger.Named("resolver")),
		filler:    pdfform.NewFiller(logger.Named("filler")),
		metrics:   reg,
		logger:    logger,
	}
}

// Fill resolves the record's values for the requested country and writes
// them into that country's template.
func (s *Service) Fill(ctx context.Context, req FillRequest) (*FillOutcome, error) {
	start := time.Now()
	country := NormalizeCountry(req.Country)

	outcome, err := s.fill(ctx, req)
	if err != nil {
		s.metrics.ObserveFill(country, metrics.OutcomeFailed, start, 0)
		return nil, err
	}
	s.metrics.ObserveFill(outcome.Form.Country, metrics.OutcomeFilled, start, len(outcome.MissingFields))
	return outcome, nil
}

func (s *Service) fill(ctx context.Context, req FillRequest) (*FillOutcome, error) {
	p, err := s.prepare(ctx, req.RecordID, req.RecordType, req.Country)
	if err != nil {
		return nil, err
	}

	template, err := s.templates.Load(p.spec.Template)
	if err != nil {
		return nil, err
	}
	result, err := s.filler.Fill(template, p.values, req.Flatten)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(
		zap.String("country", p.form.Country),
		zap.String("recordType", string(p.rt)),
		zap.Int64("recordId", req.RecordID))
	if len(result.MissingFields) > 0 {
		logger.Warn("fields missing from template", zap.Strings("missingFields", result.MissingFields))
	}
	logger.Info("form filled",
		zap.Int("resolved", len(p.values)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("missing", len(result.MissingFields)),
		zap.Bool("flatten", req.Flatten))

	p.form.Template = p.spec.Template
	p.form.Available = true
	return &FillOutcome{
		Form:          p.form,
		RecordID:      req.RecordID,
		RecordType:    p.rt,
		PDF:           result.PDF,
		Resolved:      len(p.values),
		Updated:       result.Updated,
		MissingFields: result.MissingFields,
	}, nil
}

// ResolveFields returns the values a fill would write without touching a
// template.
func (s *Service) ResolveFields(ctx context.Context, id int64, recordType, country string) (*Resolution, error) {
	p, err := s.prepare(ctx, id, recordType, country)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Country:    p.form.Country,
		RecordID:   id,
		RecordType: p.rt,
		Fields:     p.values,
	}, nil
}

type prepared struct {
	form   Form
	rt     records.RecordType
	spec   *mapping.Spec
	values fields.Values
}

func (s *Service) prepare(ctx context.Context, id int64, recordType, country string) (*prepared, error) {
	if id <= 0 {
		return nil, apperrors.Validation("travelerId is required")
	}
	if strings.TrimSpace(country) == "" {
		return nil, apperrors.Validation("travelCountry is required")
	}
	form, ok := lookupForm(country)
	if !ok {
		return nil, apperrors.Validation("travelCountry %q is not supported; supported countries: %s",
			country, strings.Join(SupportedCountries(), ", "))
	}
	rt, err := records.ParseRecordType(recordType)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	spec, err := s.specs.Load(form.MappingKey)
	if err != nil {
		return nil, err
	}
	rc, err := s.records.LoadContext(ctx, id, rt)
	if err != nil {
		return nil, err
	}

	// A record without travel_country is not checked.
	if actual := strings.TrimSpace(rc.TravelCountry()); actual != "" && !strings.EqualFold(actual, strings.TrimSpace(country)) {
		return nil, apperrors.Mismatch("%s %d travel_country %q does not match expected %q", rt, id, actual, country)
	}

	values, err := s.resolver.Resolve(spec, rc)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		s.logger.Warn("no field values were resolved from the mapping; the PDF may remain unchanged",
			zap.String("country", form.Country),
			zap.Int64("recordId", id))
	}
	return &prepared{form: form, rt: rt, spec: spec, values: values}, nil
}

// Summary renders the admin summary of a record.
func (s *Service) Summary(ctx context.Context, id int64, recordType string) (*summary.View, error) {
	rt, rc, docs, err := s.loadForSummary(ctx, id, recordType)
	if err != nil {
		return nil, err
	}
	view := summary.Build(rc, docs)
	s.logger.Debug("summary built", zap.String("recordType", string(rt)), zap.Int64("recordId", id))
	return &view, nil
}

// SetLock writes the lock flag and returns the summary as it now stands.
func (s *Service) SetLock(ctx context.Context, id int64, recordType string, locked bool) (*summary.View, error) {
	rt, rc, docs, err := s.loadForSummary(ctx, id, recordType)
	if err != nil {
		return nil, err
	}
	if err := s.records.SetLockStatus(ctx, id, rt, locked); err != nil {
		return nil, err
	}
	view := summary.Build(rc.WithLocked(locked), docs)
	return &view, nil
}

func (s *Service) loadForSummary(ctx context.Context, id int64, recordType string) (records.RecordType, records.Context, []records.Document, error) {
	if id <= 0 {
		return "", records.Context{}, nil, apperrors.Validation("record id must be positive")
	}
	rt, err := records.ParseRecordType(recordType)
	if err != nil {
		return "", records.Context{}, nil, apperrors.Validation("%s", err.Error())
	}
	rc, err := s.records.LoadContext(ctx, id, rt)
	if err != nil {
		return "", records.Context{}, nil, err
	}
	docs, err := s.records.FetchDocuments(ctx, id, rt)
	if err != nil {
		return "", records.Context{}, nil, err
	}
	return rt, rc, docs, nil
}

// Forms lists the supported country forms and whether their templates are
// present.
func (s *Service) Forms() []Form {
	out := make([]Form, 0, len(registry))
	for _, country := range SupportedCountries() {
		form := registry[country]
		spec, err := s.specs.Load(form.MappingKey)
		if err != nil {
			s.logger.Warn("mapping unavailable", zap.String("country", country), zap.Error(err))
			out = append(out, form)
			continue
		}
		form.Template = spec.Template
		form.Available = s.templates.Exists(spec.Template)
		out = append(out, form)
	}
	return out
}

// TemplateReport compares a country's template with its mapping.
type TemplateReport struct {
	Form Form                  `json:"form"`
	Info *pdfform.TemplateInfo `json:"info"`
	// Unmapped lists template fields no mapping rule writes.
	Unmapped []string `json:"unmapped"`
	// Absent lists mapped field names the template does not have.
	Absent []string `json:"absent"`
}

// InspectTemplate reads the country's template and reports its field
// catalog against the mapping.
func (s *Service) InspectTemplate(country string) (*TemplateReport, error) {
	form, ok := lookupForm(country)
	if !ok {
		return nil, apperrors.Validation("travelCountry %q is not supported; supported countries: %s",
			country, strings.Join(SupportedCountries(), ", "))
	}
	spec, err := s.specs.Load(form.MappingKey)
	if err != nil {
		return nil, err
	}
	data, err := s.templates.Load(spec.Template)
	if err != nil {
		return nil, err
	}
	info, err := pdfform.Inspect(data)
	if err != nil {
		return nil, err
	}

	mapped := make(map[string]bool)
	for _, name := range spec.FieldNames() {
		mapped[name] = true
	}
	report := &TemplateReport{Info: info, Unmapped: []string{}, Absent: []string{}}
	inTemplate := make(map[string]bool, len(info.Fields))
	for _, f := range info.Fields {
		inTemplate[f.Name] = true
		if !mapped[f.Name] && f.Type != pdfform.FieldPushButton && f.Type != pdfform.FieldSignature {
			report.Unmapped = append(report.Unmapped, f.Name)
		}
	}
	for name := range mapped {
		if !inTemplate[name] {
			report.Absent = append(report.Absent, name)
		}
	}
	sort.Strings(report.Unmapped)
	sort.Strings(report.Absent)

	form.Template = spec.Template
	form.Available = true
	report.Form = form
	return report, nil
}
