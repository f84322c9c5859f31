package pdfform

import (
	"bytes"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
)

// FillResult is the outcome of one fill.
type FillResult struct {
	PDF []byte `json:"-"`
	// Updated lists written fields in template order.
	Updated []string `json:"updated"`
	// MissingFields lists values that were not written, sorted: names absent
	// from the template and values the field type cannot hold.
	MissingFields []string `json:"missingFields"`
}

// Filler writes field values into PDF templates. It holds no per-fill state
// and is safe for concurrent use.
type Filler struct {
	logger *zap.Logger
}

// NewFiller creates a filler
func NewFiller(logger *zap.Logger) *Filler {
	return &Filler{logger: logger}
}

// assignment is a planned write into one field.
type assignment struct {
	field *Field
	text  string
	state string
}

// Fill writes values into template. Values that cannot be written are
// reported in MissingFields and never fail the fill. With flatten the
// appearances are merged into the page content and the form is removed.
func (fl *Filler) Fill(template []byte, values fields.Values, flatten bool) (*FillResult, error) {
	ctx, err := readContext(template, newConfiguration())
	if err != nil {
		return nil, err
	}
	f, err := readForm(ctx)
	if err != nil {
		return nil, err
	}
	if f.acroForm == nil {
		return nil, apperrors.New(apperrors.KindTemplate, "template has no interactive form")
	}

	result := &FillResult{Updated: []string{}, MissingFields: []string{}}
	planned := make(map[string]assignment, len(values))
	for _, name := range values.Names() {
		field, ok := f.byName[name]
		if !ok {
			result.MissingFields = append(result.MissingFields, name)
			continue
		}
		a, err := plan(field, values[name])
		if err != nil {
			fl.logger.Warn("value not written", zap.String("field", name), zap.Error(err))
			result.MissingFields = append(result.MissingFields, name)
			continue
		}
		planned[name] = a
	}

	for _, field := range f.fields {
		a, ok := planned[field.Name]
		if !ok {
			continue
		}
		if err := f.apply(a); err != nil {
			return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to write field %q", field.Name)
		}
		result.Updated = append(result.Updated, field.Name)
	}

	if flatten {
		if err := f.flatten(); err != nil {
			return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to flatten form")
		}
	} else {
		f.acroForm["NeedAppearances"] = types.Boolean(true)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to write PDF")
	}
	result.PDF = buf.Bytes()

	fl.logger.Debug("form filled",
		zap.Int("updated", len(result.Updated)),
		zap.Int("missing", len(result.MissingFields)),
		zap.Bool("flatten", flatten))
	return result, nil
}

// plan checks that v fits field and computes what to write.
func plan(field *Field, v fields.Value) (assignment, error) {
	a := assignment{field: field}
	switch field.Type {
	case FieldText:
		a.text = v.String()
		return a, nil

	case FieldComboBox, FieldListBox:
		s := v.String()
		if export, ok := field.matchOption(s); ok {
			a.text = export
			return a, nil
		}
		if field.Type == FieldComboBox && (field.Editable || len(field.Options) == 0) {
			a.text = s
			return a, nil
		}
		return a, apperrors.FieldTypeMismatch(field.Name, "%q is not an option of %s", s, field.Name)

	case FieldCheckbox:
		on, ok := boolValue(v)
		if !ok {
			return a, apperrors.FieldTypeMismatch(field.Name, "%q is not a checkbox value", v.String())
		}
		a.state = "Off"
		if on {
			a.state = "Yes"
			if len(field.exports) > 0 {
				a.state = field.exports[0]
			}
		}
		return a, nil

	case FieldRadio:
		if v.IsBool() {
			return a, apperrors.FieldTypeMismatch(field.Name, "radio group %s takes an option, not a boolean", field.Name)
		}
		state, ok := field.matchOption(v.Text)
		if !ok {
			return a, apperrors.FieldTypeMismatch(field.Name, "%q is not an option of %s", v.Text, field.Name)
		}
		a.state = state
		return a, nil

	default:
		return a, apperrors.FieldTypeMismatch(field.Name, "%s fields cannot be filled", field.Type)
	}
}

// boolValue interprets a value as a checkbox state.
func boolValue(v fields.Value) (bool, bool) {
	if v.IsBool() {
		return v.Bool, true
	}
	switch strings.ToLower(strings.TrimSpace(v.Text)) {
	case "yes", "true", "on", "1", "x":
		return true, true
	case "no", "false", "off", "0", "":
		return false, true
	default:
		return false, false
	}
}

// apply writes a planned value into the field and its widgets.
func (f *form) apply(a assignment) error {
	field := a.field
	switch field.Type {
	case FieldCheckbox, FieldRadio:
		field.fieldDict["V"] = types.Name(a.state)
		for _, widget := range field.widgets {
			states := f.appearanceStates(widget)
			as := "Off"
			if len(states) == 0 {
				as = a.state
			}
			for _, state := range states {
				if state == a.state {
					as = a.state
					break
				}
			}
			widget["AS"] = types.Name(as)
		}
		return nil

	default:
		encoded, err := encodeText(a.text)
		if err != nil {
			return err
		}
		field.fieldDict["V"] = encoded
		for _, widget := range field.widgets {
			display := a.text
			if field.Type != FieldText {
				display = field.displayFor(a.text)
			}
			ap, err := f.textAppearance(field, widget, display)
			if err != nil {
				return err
			}
			if ap != nil {
				widget["AP"] = types.Dict{"N": ap}
			}
		}
		return nil
	}
}
