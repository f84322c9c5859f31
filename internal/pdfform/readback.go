package pdfform

import (
	"bytes"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
)

// ReadValues returns the current value of every field that has one.
// Checkboxes read as booleans; radio groups and choices read as the option
// label; text reads as text.
func ReadValues(data []byte) (fields.Values, error) {
	ctx, err := readContext(data, newConfiguration())
	if err != nil {
		return nil, err
	}
	f, err := readForm(ctx)
	if err != nil {
		return nil, err
	}

	values := make(fields.Values)
	for _, field := range f.fields {
		valueObj, found := field.fieldDict.Find("V")
		if !found {
			continue
		}
		switch field.Type {
		case FieldCheckbox:
			if state, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
				values[field.Name] = fields.Bool(state != "" && state != "Off")
			}
		case FieldRadio:
			if state, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil && state != "" && state != "Off" {
				values[field.Name] = fields.Text(field.displayFor(string(state)))
			}
		case FieldText, FieldComboBox, FieldListBox:
			if s, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil && s != "" {
				if field.Type != FieldText {
					s = field.displayFor(s)
				}
				values[field.Name] = fields.Text(s)
			}
		}
	}
	return values, nil
}

// TemplateInfo summarises a PDF template.
type TemplateInfo struct {
	Pages   int     `json:"pages"`
	HasForm bool    `json:"hasForm"`
	Fields  []Field `json:"fields"`
}

// Inspect reports the page count and field catalog of a PDF.
func Inspect(data []byte) (*TemplateInfo, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to open PDF")
	}

	ctx, err := readContext(data, newConfiguration())
	if err != nil {
		return nil, err
	}
	f, err := readForm(ctx)
	if err != nil {
		return nil, err
	}

	info := &TemplateInfo{
		Pages:   reader.NumPage(),
		HasForm: f.acroForm != nil,
		Fields:  make([]Field, 0, len(f.fields)),
	}
	for _, field := range f.fields {
		info.Fields = append(info.Fields, *field)
	}
	return info, nil
}
