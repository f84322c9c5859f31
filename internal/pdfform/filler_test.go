package pdfform

import (
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
	"github.com/a3tai/visa-pdf-filler/internal/pdfform/pdftest"
)

func visaTemplate() []byte {
	return pdftest.Form(
		pdftest.TextField("first_name"),
		pdftest.TextField("passport_no"),
		pdftest.CheckboxField("fingerprints_collected"),
		pdftest.RadioField("marital_status", "Single", "Married", "Divorced"),
		pdftest.ComboField("visa_center", "London", "Manchester", "Edinburgh"),
		pdftest.Field{Name: "signature", Kind: pdftest.Signature},
	)
}

func TestCatalogListsFields(t *testing.T) {
	catalog, err := Catalog(visaTemplate())
	require.NoError(t, err)

	byName := make(map[string]Field)
	for _, f := range catalog {
		byName[f.Name] = f
	}
	require.Len(t, byName, 6)
	assert.Equal(t, FieldText, byName["first_name"].Type)
	assert.Equal(t, FieldCheckbox, byName["fingerprints_collected"].Type)
	assert.Equal(t, []string{"Yes"}, byName["fingerprints_collected"].Options)
	assert.Equal(t, FieldRadio, byName["marital_status"].Type)
	assert.Equal(t, []string{"Single", "Married", "Divorced"}, byName["marital_status"].Options)
	assert.Equal(t, 3, byName["marital_status"].Widgets)
	assert.Equal(t, FieldComboBox, byName["visa_center"].Type)
	assert.Equal(t, []string{"London", "Manchester", "Edinburgh"}, byName["visa_center"].Options)
	assert.Equal(t, FieldSignature, byName["signature"].Type)
}

func TestFillReportsUpdatedAndMissing(t *testing.T) {
	template := pdftest.Form(pdftest.TextField("first_name"), pdftest.TextField("passport_no"))
	filler := NewFiller(zaptest.NewLogger(t))

	result, err := filler.Fill(template, fields.Values{
		"first_name":  fields.Text("Ana"),
		"passport_no": fields.Text("X123"),
		"extra_field": fields.Text("z"),
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"first_name", "passport_no"}, result.Updated)
	assert.Equal(t, []string{"extra_field"}, result.MissingFields)
	assert.NotEmpty(t, result.PDF)
}

func TestFillRoundTrip(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))
	values := fields.Values{
		"first_name":             fields.Text("Zoë (Ana) O'Brien"),
		"passport_no":            fields.Text("X123"),
		"fingerprints_collected": fields.Bool(true),
		"marital_status":         fields.Text("Married"),
		"visa_center":            fields.Text("Manchester"),
	}

	result, err := filler.Fill(visaTemplate(), values, false)
	require.NoError(t, err)
	assert.Empty(t, result.MissingFields)
	assert.Len(t, result.Updated, 5)

	readBack, err := ReadValues(result.PDF)
	require.NoError(t, err)
	for name, want := range values {
		assert.Equal(t, want, readBack[name], name)
	}
}

func TestFillCoercesAndRejectsByFieldType(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))

	result, err := filler.Fill(visaTemplate(), fields.Values{
		"first_name":             fields.Bool(true),
		"fingerprints_collected": fields.Text("no"),
		"marital_status":         fields.Text("widowed"),
		"visa_center":            fields.Text("Paris"),
		"passport_no":            fields.Text("P1"),
		"signature":              fields.Text("Ana"),
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"first_name", "passport_no", "fingerprints_collected"}, result.Updated)
	assert.Equal(t, []string{"marital_status", "signature", "visa_center"}, result.MissingFields)

	readBack, err := ReadValues(result.PDF)
	require.NoError(t, err)
	assert.Equal(t, fields.Text("Yes"), readBack["first_name"])
	assert.Equal(t, fields.Bool(false), readBack["fingerprints_collected"])
	assert.NotContains(t, readBack, "marital_status")
}

func TestFillRadioMatchesCaseInsensitively(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))

	result, err := filler.Fill(visaTemplate(), fields.Values{"marital_status": fields.Text("single")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"marital_status"}, result.Updated)

	readBack, err := ReadValues(result.PDF)
	require.NoError(t, err)
	assert.Equal(t, fields.Text("Single"), readBack["marital_status"])
}

func TestFillEditableComboAcceptsFreeText(t *testing.T) {
	template := pdftest.Form(pdftest.Field{Name: "city", Kind: pdftest.EditableCombo, Options: []string{"Vienna"}})
	filler := NewFiller(zaptest.NewLogger(t))

	result, err := filler.Fill(template, fields.Values{"city": fields.Text("Graz")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"city"}, result.Updated)
}

func TestFillFlattenRemovesAllFields(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))

	for _, values := range []fields.Values{
		{},
		{"first_name": fields.Text("Ana"), "fingerprints_collected": fields.Bool(true), "marital_status": fields.Text("Single")},
	} {
		result, err := filler.Fill(visaTemplate(), values, true)
		require.NoError(t, err)

		catalog, err := Catalog(result.PDF)
		require.NoError(t, err)
		assert.Empty(t, catalog)

		info, err := Inspect(result.PDF)
		require.NoError(t, err)
		assert.False(t, info.HasForm)
		assert.Equal(t, 1, info.Pages)
	}
}

func TestFillIsRepeatable(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))
	values := fields.Values{"first_name": fields.Text("Ana"), "passport_no": fields.Text("X123")}

	first, err := filler.Fill(visaTemplate(), values, false)
	require.NoError(t, err)
	again, err := filler.Fill(first.PDF, values, false)
	require.NoError(t, err)

	assert.Equal(t, first.Updated, again.Updated)
	readBack, err := ReadValues(again.PDF)
	require.NoError(t, err)
	assert.Equal(t, fields.Text("Ana"), readBack["first_name"])
}

func TestFillTemplateErrors(t *testing.T) {
	filler := NewFiller(zaptest.NewLogger(t))

	_, err := filler.Fill([]byte("definitely not a pdf"), fields.Values{}, false)
	assert.True(t, apperrors.Is(err, apperrors.KindTemplate))

	_, err = filler.Fill(pdftest.Plain(), fields.Values{"first_name": fields.Text("Ana")}, false)
	assert.True(t, apperrors.Is(err, apperrors.KindTemplate))
}

func TestInspectPlainDocument(t *testing.T) {
	info, err := Inspect(pdftest.Plain())
	require.NoError(t, err)
	assert.False(t, info.HasForm)
	assert.Empty(t, info.Fields)
	assert.Equal(t, 1, info.Pages)
}

func TestEncodeText(t *testing.T) {
	obj, err := encodeText(`a(b)\c`)
	require.NoError(t, err)
	assert.Equal(t, types.StringLiteral(`a\(b\)\\c`), obj)

	obj, err = encodeText("Zoë")
	require.NoError(t, err)
	hexObj, ok := obj.(types.HexLiteral)
	require.True(t, ok)
	assert.Equal(t, "FEFF005A006F00EB", string(hexObj))
}

func TestParseDA(t *testing.T) {
	da := parseDA("/Helv 9 Tf 0 0 1 rg")
	assert.Equal(t, "Helv", da.font)
	assert.Equal(t, 9.0, da.size)
	assert.Equal(t, "0 0 1 rg", da.color)

	da = parseDA("")
	assert.Equal(t, "0 g", da.color)
	assert.Zero(t, da.size)
}
