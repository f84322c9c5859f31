// Package pdfform reads and fills the AcroForm fields of PDF templates.
package pdfform

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
)

// Field flag bits, counted from zero.
const (
	flagReadOnly   = 1 << 0
	flagRequired   = 1 << 1
	flagMultiline  = 1 << 12
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
	flagCombo      = 1 << 17
	flagEdit       = 1 << 18
)

// FieldType is the kind of an interactive form field
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldText
	FieldCheckbox
	FieldRadio
	FieldComboBox
	FieldListBox
	FieldPushButton
	FieldSignature
)

// String returns a string representation of the FieldType
func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldCheckbox:
		return "checkbox"
	case FieldRadio:
		return "radio"
	case FieldComboBox:
		return "combobox"
	case FieldListBox:
		return "listbox"
	case FieldPushButton:
		return "button"
	case FieldSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name
func (ft FieldType) MarshalText() ([]byte, error) {
	return []byte(ft.String()), nil
}

// Field is one terminal field of a form, named by its full dotted name.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	ReadOnly bool      `json:"readOnly,omitempty"`
	Required bool      `json:"required,omitempty"`
	Editable bool      `json:"editable,omitempty"`
	Widgets  int       `json:"widgets"`

	fieldDict types.Dict
	widgets   []types.Dict
	flags     int
	da        string
	quadding  int
	// exports holds the values written to V, parallel to Options.
	exports []string
}

// form is a parsed AcroForm together with the context it lives in.
type form struct {
	ctx      *model.Context
	acroForm types.Dict
	fields   []*Field
	byName   map[string]*Field
}

// inherited carries the inheritable field attributes down the field tree.
type inherited struct {
	ft       string
	ff       int
	da       string
	quadding int
	opt      types.Object
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readContext parses PDF bytes with pdfcpu.
func readContext(data []byte, conf *model.Configuration) (*model.Context, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, apperrors.New(apperrors.KindTemplate, "template is not a PDF document")
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to read PDF context")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to ensure page count")
	}
	return ctx, nil
}

// Catalog lists the terminal fields of a PDF. A document without an
// AcroForm yields an empty list.
func Catalog(data []byte) ([]Field, error) {
	ctx, err := readContext(data, newConfiguration())
	if err != nil {
		return nil, err
	}
	f, err := readForm(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Field, 0, len(f.fields))
	for _, field := range f.fields {
		out = append(out, *field)
	}
	return out, nil
}

// readForm walks the AcroForm field tree of ctx.
func readForm(ctx *model.Context) (*form, error) {
	f := &form{ctx: ctx, byName: make(map[string]*Field)}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to get catalog")
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return f, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to dereference AcroForm")
	}
	if acroFormDict == nil {
		return f, nil
	}
	f.acroForm = acroFormDict

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return f, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTemplate, err, "failed to dereference Fields array")
	}

	inh := inherited{}
	if da, ok := f.stringEntry(acroFormDict, "DA"); ok {
		inh.da = da
	}
	if q, ok := f.intEntry(acroFormDict, "Q"); ok {
		inh.quadding = q
	}

	visited := make(map[int]bool)
	for _, fieldObj := range fieldsArray {
		f.walk(fieldObj, "", inh, visited, 0)
	}
	return f, nil
}

const maxFieldDepth = 32

func (f *form) walk(fieldObj types.Object, parentName string, inh inherited, visited map[int]bool, depth int) {
	if depth > maxFieldDepth {
		return
	}
	if ref, ok := fieldObj.(types.IndirectRef); ok {
		objNr := int(ref.ObjectNumber)
		if visited[objNr] {
			return
		}
		visited[objNr] = true
	}
	fieldDict, err := f.ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		return
	}

	name := parentName
	if partial, ok := f.stringEntry(fieldDict, "T"); ok {
		if name != "" {
			name += "." + partial
		} else {
			name = partial
		}
	}

	if ft, ok := f.nameEntry(fieldDict, "FT"); ok {
		inh.ft = ft
	}
	if ff, ok := f.intEntry(fieldDict, "Ff"); ok {
		inh.ff = ff
	}
	if da, ok := f.stringEntry(fieldDict, "DA"); ok {
		inh.da = da
	}
	if q, ok := f.intEntry(fieldDict, "Q"); ok {
		inh.quadding = q
	}
	if opt, found := fieldDict.Find("Opt"); found {
		inh.opt = opt
	}

	var widgets []types.Dict
	hasKids := false
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := f.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kidObj := range kidsArray {
				kidDict, err := f.ctx.DereferenceDict(kidObj)
				if err != nil || kidDict == nil {
					continue
				}
				hasKids = true
				if _, isField := kidDict.Find("T"); isField {
					f.walk(kidObj, name, inh, visited, depth+1)
					continue
				}
				widgets = append(widgets, kidDict)
			}
		}
	}

	if hasKids && len(widgets) == 0 {
		return
	}
	if !hasKids {
		// Field and widget annotation merged into one dictionary.
		widgets = []types.Dict{fieldDict}
	}
	if name == "" {
		return
	}
	if _, dup := f.byName[name]; dup {
		return
	}

	field := &Field{
		Name:      name,
		Type:      fieldType(inh.ft, inh.ff),
		ReadOnly:  inh.ff&flagReadOnly != 0,
		Required:  inh.ff&flagRequired != 0,
		Editable:  inh.ff&flagEdit != 0,
		Widgets:   len(widgets),
		fieldDict: fieldDict,
		widgets:   widgets,
		flags:     inh.ff,
		da:        inh.da,
		quadding:  inh.quadding,
	}

	switch field.Type {
	case FieldCheckbox, FieldRadio:
		f.buttonOptions(field, inh.opt)
	case FieldComboBox, FieldListBox:
		f.choiceOptions(field, inh.opt)
	}

	f.fields = append(f.fields, field)
	f.byName[name] = field
}

func fieldType(ft string, ff int) FieldType {
	switch ft {
	case "Btn":
		if ff&flagRadio != 0 {
			return FieldRadio
		}
		if ff&flagPushButton != 0 {
			return FieldPushButton
		}
		return FieldCheckbox
	case "Tx":
		return FieldText
	case "Ch":
		if ff&flagCombo != 0 {
			return FieldComboBox
		}
		return FieldListBox
	case "Sig":
		return FieldSignature
	default:
		return FieldUnknown
	}
}

// buttonOptions collects the on-states of a checkbox or radio group. When
// the field carries an Opt array its entries label the widgets in order.
func (f *form) buttonOptions(field *Field, optObj types.Object) {
	var labels []string
	if optObj != nil {
		labels = f.optionStrings(optObj, false)
	}

	seen := make(map[string]bool)
	for i, widget := range field.widgets {
		state := f.onState(widget)
		if state == "" || seen[state] {
			continue
		}
		seen[state] = true
		label := state
		if len(labels) == len(field.widgets) {
			label = labels[i]
		}
		field.Options = append(field.Options, label)
		field.exports = append(field.exports, state)
	}
}

// choiceOptions reads Opt, which holds strings or [export display] pairs.
func (f *form) choiceOptions(field *Field, optObj types.Object) {
	if optObj == nil {
		return
	}
	field.Options = f.optionStrings(optObj, false)
	field.exports = f.optionStrings(optObj, true)
}

func (f *form) optionStrings(optObj types.Object, export bool) []string {
	optArray, err := f.ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := f.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
			continue
		}
		if pair, err := f.ctx.DereferenceArray(opt); err == nil && len(pair) >= 2 {
			idx := 1
			if export {
				idx = 0
			}
			if s, err := f.ctx.DereferenceStringOrHexLiteral(pair[idx], model.V10, nil); err == nil {
				options = append(options, s)
			}
		}
	}
	return options
}

// appearanceStates returns the state names of a widget's normal appearance.
func (f *form) appearanceStates(widget types.Dict) []string {
	apObj, found := widget.Find("AP")
	if !found {
		return nil
	}
	apDict, err := f.ctx.DereferenceDict(apObj)
	if err != nil || apDict == nil {
		return nil
	}
	nObj, found := apDict.Find("N")
	if !found {
		return nil
	}
	nDict, err := f.ctx.DereferenceDict(nObj)
	if err != nil || nDict == nil {
		// A stream, not a dictionary of states.
		return nil
	}
	states := make([]string, 0, len(nDict))
	for state := range nDict {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// onState is the first non-Off appearance state of a widget.
func (f *form) onState(widget types.Dict) string {
	for _, state := range f.appearanceStates(widget) {
		if state != "Off" {
			return state
		}
	}
	return ""
}

func (f *form) stringEntry(d types.Dict, key string) (string, bool) {
	obj, found := d.Find(key)
	if !found {
		return "", false
	}
	s, err := f.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return "", false
	}
	return s, true
}

func (f *form) nameEntry(d types.Dict, key string) (string, bool) {
	obj, found := d.Find(key)
	if !found {
		return "", false
	}
	name, err := f.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return "", false
	}
	return string(name), true
}

func (f *form) intEntry(d types.Dict, key string) (int, bool) {
	obj, found := d.Find(key)
	if !found {
		return 0, false
	}
	i, err := f.ctx.DereferenceInteger(obj)
	if err != nil || i == nil {
		return 0, false
	}
	return int(*i), true
}

// rect returns a widget's rectangle as llx, lly, urx, ury.
func (f *form) rect(widget types.Dict) ([4]float64, error) {
	var r [4]float64
	rectObj, found := widget.Find("Rect")
	if !found {
		return r, fmt.Errorf("widget has no Rect")
	}
	rectArray, err := f.ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return r, fmt.Errorf("widget Rect is malformed")
	}
	for i, coord := range rectArray {
		v, err := f.ctx.DereferenceNumber(coord)
		if err != nil {
			return r, fmt.Errorf("widget Rect is malformed: %w", err)
		}
		r[i] = v
	}
	if r[0] > r[2] {
		r[0], r[2] = r[2], r[0]
	}
	if r[1] > r[3] {
		r[1], r[3] = r[3], r[1]
	}
	return r, nil
}

// matchOption finds value among the options, case-insensitively, returning
// the export value. The first match wins.
func (field *Field) matchOption(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for i, opt := range field.Options {
		if strings.EqualFold(opt, value) {
			return field.exportAt(i), true
		}
	}
	for i := range field.exports {
		if strings.EqualFold(field.exports[i], value) {
			return field.exports[i], true
		}
	}
	return "", false
}

func (field *Field) exportAt(i int) string {
	if i < len(field.exports) {
		return field.exports[i]
	}
	return field.Options[i]
}

// displayFor maps an export value back onto its option label.
func (field *Field) displayFor(export string) string {
	for i, e := range field.exports {
		if e == export && i < len(field.Options) {
			return field.Options[i]
		}
	}
	return export
}
