package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/pdfform/pdftest"
)

func writeTemplate(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pdftest.Form(
		pdftest.TextField("surname"),
		pdftest.CheckboxField("marital_married"),
		pdftest.TextField("office_use_only"),
	), 0o600))
	return path
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"file", []string{"form.pdf"}, false},
		{"country", []string{"--country", "austria"}, false},
		{"json", []string{"--format", "json", "form.pdf"}, false},
		{"nothing", nil, true},
		{"both", []string{"--country", "austria", "form.pdf"}, true},
		{"bad format", []string{"--format", "xml", "form.pdf"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunFile(t *testing.T) {
	path := writeTemplate(t, t.TempDir(), "form.pdf")

	var out bytes.Buffer
	err := run(&options{path: path, format: "text"}, &out, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Fields: 3")
	assert.Contains(t, out.String(), "1. surname [text]")
	assert.Contains(t, out.String(), "marital_married [checkbox]")
}

func TestRunCountryJSON(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "austria.pdf")

	var out bytes.Buffer
	err := run(&options{country: "Austria", templateDir: dir, format: "json"}, &out, zaptest.NewLogger(t))
	require.NoError(t, err)

	var report struct {
		Form struct {
			Country   string `json:"country"`
			Available bool   `json:"available"`
		} `json:"form"`
		Unmapped []string `json:"unmapped"`
		Absent   []string `json:"absent"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "austria", report.Form.Country)
	assert.True(t, report.Form.Available)
	assert.Equal(t, []string{"office_use_only"}, report.Unmapped)
	assert.Contains(t, report.Absent, "first_name")
}

func TestRunCountryMissingTemplate(t *testing.T) {
	err := run(&options{country: "malta", templateDir: t.TempDir(), format: "text"}, io.Discard, zaptest.NewLogger(t))
	assert.True(t, apperrors.Is(err, apperrors.KindTemplate))
}
