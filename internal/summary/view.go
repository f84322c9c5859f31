// Package summary renders the read-only admin view of a record: identity,
// personal details, questionnaire answers by category and the document
// checklist. Everything here is a pure function of a records.Context.
package summary

import (
	"strings"

	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// ClientUploadBase prefixes relative client upload paths.
const ClientUploadBase = "uploads/documents/client_documents/"

// File is one uploaded file.
type File struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// File sources.
const (
	SourceClient = "client"
	SourceAdmin  = "admin"
)

// Item is one labelled attribute.
type Item struct {
	Field     string `json:"field"`
	Label     string `json:"label"`
	Value     string `json:"value,omitempty"`
	Files     []File `json:"files,omitempty"`
	Mandatory bool   `json:"mandatory,omitempty"`
	ReadOnly  bool   `json:"readOnly,omitempty"`
}

// Section groups the answers of one category.
type Section struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// View is the complete admin summary of a record.
type View struct {
	RecordType records.RecordType `json:"recordType"`
	Locked     bool               `json:"locked"`
	Identity   []Item             `json:"identity"`
	Personal   []Item             `json:"personal"`
	Sections   []Section          `json:"sections"`
	Checklist  Checklist          `json:"checklist"`
}

// Build renders the summary of rc. docs are the admin-uploaded documents.
func Build(rc records.Context, docs []records.Document) View {
	applicant := rc.Applicant()

	view := View{
		RecordType: rc.RecordType(),
		Locked:     rc.Locked(),
		Identity:   make([]Item, 0, len(identityFields)),
		Personal:   make([]Item, 0, len(personalFields)),
		Sections:   []Section{},
		Checklist:  BuildChecklist(rc, docs),
	}
	for _, e := range identityFields {
		item := itemFor(e, applicant)
		item.ReadOnly = true
		view.Identity = append(view.Identity, item)
	}
	for _, e := range personalFields {
		view.Personal = append(view.Personal, itemFor(e, applicant))
	}

	byCategory := make(map[string][]Item)
	seen := make(map[string]bool)
	for _, q := range questions {
		if q.when != nil && !q.when(rc) {
			continue
		}
		source := rc.Questions()
		if q.personal {
			source = applicant
		}
		for _, e := range q.fields(rc) {
			if seen[e.id] {
				continue
			}
			seen[e.id] = true
			byCategory[q.category] = append(byCategory[q.category], itemFor(e, source))
		}
	}
	for _, category := range categoryOrder {
		if items := byCategory[category]; len(items) > 0 {
			view.Sections = append(view.Sections, Section{Category: category, Items: items})
		}
	}
	return view
}

func itemFor(e entry, rec records.Record) Item {
	item := Item{Field: e.id, Label: e.label, Mandatory: e.mandatory}
	if e.file {
		item.Files = clientFiles(records.UploadPaths(rec.Value(e.id)))
		return item
	}
	item.Value = rec.Value(e.id)
	return item
}

// clientFiles turns client upload paths into file links.
func clientFiles(paths []string) []File {
	if len(paths) == 0 {
		return nil
	}
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		files = append(files, File{Name: records.BaseName(p), URL: clientURL(p), Source: SourceClient})
	}
	return files
}

func clientURL(p string) string {
	if isAbsoluteURL(p) {
		return p
	}
	return ClientUploadBase + strings.TrimPrefix(p, "/")
}

func adminFile(doc records.Document) File {
	url := doc.FilePath
	if !isAbsoluteURL(url) && !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	name := doc.FileName
	if name == "" {
		name = records.BaseName(doc.FilePath)
	}
	return File{Name: name, URL: url, Source: SourceAdmin}
}

func isAbsoluteURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
