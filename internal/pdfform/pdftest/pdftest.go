// Package pdftest builds small fillable PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Kind is the type of a fixture field
type Kind int

const (
	Text Kind = iota
	Checkbox
	Radio
	Combo
	EditableCombo
	Signature
)

// Field describes one fixture field. Options apply to radio groups and
// combo boxes and must be plain words.
type Field struct {
	Name    string
	Kind    Kind
	Options []string
	// Value is written as the field's current value when set.
	Value string
}

// TextField is shorthand for a text field
func TextField(name string) Field {
	return Field{Name: name, Kind: Text}
}

// CheckboxField is shorthand for a checkbox with on-state Yes
func CheckboxField(name string) Field {
	return Field{Name: name, Kind: Checkbox}
}

// RadioField is shorthand for a radio group
func RadioField(name string, options ...string) Field {
	return Field{Name: name, Kind: Radio, Options: options}
}

// ComboField is shorthand for a non-editable combo box
func ComboField(name string, options ...string) Field {
	return Field{Name: name, Kind: Combo, Options: options}
}

type builder struct {
	objects []string
}

func (b *builder) reserve() int {
	b.objects = append(b.objects, "")
	return len(b.objects)
}

func (b *builder) set(nr int, body string) {
	b.objects[nr-1] = body
}

func (b *builder) add(body string) int {
	nr := b.reserve()
	b.set(nr, body)
	return nr
}

func stream(dict, content string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(content), content)
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// Form returns a one-page PDF with an AcroForm holding the given fields.
func Form(fields ...Field) []byte {
	b := &builder{}
	catalog := b.reserve()
	pages := b.reserve()
	acroForm := b.reserve()
	page := b.reserve()
	font := b.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	contents := b.add(stream("", "BT /Helv 14 Tf 72 750 Td (Visa application form) Tj ET"))
	on := b.add(stream("/Type /XObject /Subtype /Form /BBox [0 0 14 14]", "0 g 3 3 8 8 re f"))
	off := b.add(stream("/Type /XObject /Subtype /Form /BBox [0 0 14 14]", ""))

	var fieldRefs, annotRefs []string
	y := 700
	nextRect := func(width, height int) string {
		r := fmt.Sprintf("[72 %d %d %d]", y, 72+width, y+height)
		y -= height + 10
		return r
	}
	common := fmt.Sprintf("/Type /Annot /Subtype /Widget /F 4 /P %d 0 R", page)

	for _, field := range fields {
		switch field.Kind {
		case Text:
			v := ""
			if field.Value != "" {
				v = " /V " + literal(field.Value)
			}
			nr := b.add(fmt.Sprintf("<< %s /FT /Tx /T %s /Rect %s /DA (/Helv 10 Tf 0 g)%s >>",
				common, literal(field.Name), nextRect(200, 20), v))
			fieldRefs = append(fieldRefs, ref(nr))
			annotRefs = append(annotRefs, ref(nr))

		case Checkbox:
			state := "/Off"
			if field.Value != "" {
				state = "/" + field.Value
			}
			nr := b.add(fmt.Sprintf("<< %s /FT /Btn /T %s /Rect %s /V %s /AS %s /AP << /N << /Yes %d 0 R /Off %d 0 R >> >> >>",
				common, literal(field.Name), nextRect(14, 14), state, state, on, off))
			fieldRefs = append(fieldRefs, ref(nr))
			annotRefs = append(annotRefs, ref(nr))

		case Radio:
			parent := b.reserve()
			var kids []string
			for _, opt := range field.Options {
				as := "/Off"
				if opt == field.Value {
					as = "/" + opt
				}
				kid := b.add(fmt.Sprintf("<< %s /Parent %d 0 R /Rect %s /AS %s /AP << /N << /%s %d 0 R /Off %d 0 R >> >> >>",
					common, parent, nextRect(14, 14), as, opt, on, off))
				kids = append(kids, ref(kid))
				annotRefs = append(annotRefs, ref(kid))
			}
			v := "/Off"
			if field.Value != "" {
				v = "/" + field.Value
			}
			b.set(parent, fmt.Sprintf("<< /FT /Btn /Ff %d /T %s /V %s /Kids [%s] >>",
				1<<15|1<<14, literal(field.Name), v, strings.Join(kids, " ")))
			fieldRefs = append(fieldRefs, ref(parent))

		case Combo, EditableCombo:
			flags := 1 << 17
			if field.Kind == EditableCombo {
				flags |= 1 << 18
			}
			var opts []string
			for _, opt := range field.Options {
				opts = append(opts, literal(opt))
			}
			nr := b.add(fmt.Sprintf("<< %s /FT /Ch /Ff %d /T %s /Opt [%s] /Rect %s /DA (/Helv 0 Tf 0 g) >>",
				common, flags, literal(field.Name), strings.Join(opts, " "), nextRect(150, 20)))
			fieldRefs = append(fieldRefs, ref(nr))
			annotRefs = append(annotRefs, ref(nr))

		case Signature:
			nr := b.add(fmt.Sprintf("<< %s /FT /Sig /T %s /Rect %s >>",
				common, literal(field.Name), nextRect(200, 40)))
			fieldRefs = append(fieldRefs, ref(nr))
			annotRefs = append(annotRefs, ref(nr))
		}
	}

	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pages, acroForm))
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	b.set(acroForm, fmt.Sprintf("<< /Fields [%s] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %d 0 R >> >> >>",
		strings.Join(fieldRefs, " "), font))
	b.set(page, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /Helv %d 0 R >> >> /Contents %d 0 R /Annots [%s] >>",
		pages, font, contents, strings.Join(annotRefs, " ")))

	return b.bytes(catalog)
}

// Plain returns a one-page PDF without a form.
func Plain() []byte {
	b := &builder{}
	catalog := b.reserve()
	pages := b.reserve()
	page := b.reserve()
	contents := b.add(stream("", "BT /F1 12 Tf 72 720 Td (No form here) Tj ET"))
	font := b.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	b.set(page, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
		pages, font, contents))
	return b.bytes(catalog)
}

func ref(nr int) string {
	return fmt.Sprintf("%d 0 R", nr)
}

// bytes serialises the objects with a classic cross-reference table.
func (b *builder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, root, xref)
	return buf.Bytes()
}
