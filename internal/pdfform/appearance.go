package pdfform

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	fallbackFontName = "Helv"
	defaultFontSize  = 10.0
	maxAutoFontSize  = 12.0
	textPadding      = 2.0
	// average Helvetica glyph width per unit of font size
	avgGlyphWidth = 0.5
)

// Encoders carry transform state, so each call builds its own.
func winAnsiEncoder() *encoding.Encoder {
	return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
}

func utf16Encoder() *encoding.Encoder {
	return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
}

// encodeText returns a PDF text string: a literal for ASCII, UTF-16BE hex
// with a byte order mark otherwise.
func encodeText(s string) (types.Object, error) {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(escapeLiteral([]byte(s))), nil
	}
	b, err := utf16Encoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q as UTF-16: %w", s, err)
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(b))), nil
}

// escapeLiteral escapes bytes for use between parentheses in a PDF string.
func escapeLiteral(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '\\', '(', ')':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x80 {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// defaultAppearance is the parsed font and colour of a DA string.
type defaultAppearance struct {
	font  string
	size  float64
	color string
}

func parseDA(da string) defaultAppearance {
	out := defaultAppearance{color: "0 g"}
	parts := strings.Fields(da)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "Tf":
			if i >= 2 {
				out.font = strings.TrimPrefix(parts[i-2], "/")
				if size, err := strconv.ParseFloat(parts[i-1], 64); err == nil {
					out.size = size
				}
			}
		case "g":
			if i >= 1 {
				out.color = parts[i-1] + " g"
			}
		case "rg":
			if i >= 3 {
				out.color = strings.Join(parts[i-3:i+1], " ")
			}
		case "k":
			if i >= 4 {
				out.color = strings.Join(parts[i-4:i+1], " ")
			}
		}
	}
	return out
}

// fontResource returns the resource name and object for DA's font, adding a
// Helvetica font to the form's default resources when DA names none.
func (f *form) fontResource(fontName string) (string, types.Object, error) {
	var dr types.Dict
	if f.acroForm != nil {
		if drObj, found := f.acroForm.Find("DR"); found {
			dr, _ = f.ctx.DereferenceDict(drObj)
		}
		if dr == nil {
			dr = types.Dict{}
			f.acroForm["DR"] = dr
		}
	} else {
		dr = types.Dict{}
	}

	var fonts types.Dict
	if fontsObj, found := dr.Find("Font"); found {
		fonts, _ = f.ctx.DereferenceDict(fontsObj)
	}
	if fonts == nil {
		fonts = types.Dict{}
		dr["Font"] = fonts
	}

	if fontName != "" {
		if obj, found := fonts.Find(fontName); found {
			return fontName, obj, nil
		}
	}
	if obj, found := fonts.Find(fallbackFontName); found {
		return fallbackFontName, obj, nil
	}

	helv := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
	ref, err := f.ctx.IndRefForNewObject(helv)
	if err != nil {
		return "", nil, fmt.Errorf("failed to add Helvetica: %w", err)
	}
	fonts[fallbackFontName] = *ref
	return fallbackFontName, *ref, nil
}

// textAppearance builds the normal appearance stream for a text-like widget.
// Widgets without a usable Rect get none.
func (f *form) textAppearance(field *Field, widget types.Dict, text string) (types.Object, error) {
	rect, err := f.rect(widget)
	if err != nil {
		return nil, nil
	}
	width, height := rect[2]-rect[0], rect[3]-rect[1]

	da := field.da
	if own, ok := f.stringEntry(widget, "DA"); ok {
		da = own
	}
	parsed := parseDA(da)

	fontName, fontObj, err := f.fontResource(parsed.font)
	if err != nil {
		return nil, err
	}

	size := parsed.size
	if size <= 0 {
		size = maxAutoFontSize
		if fit := (height - 2*textPadding) * 0.8; fit > 0 && fit < size {
			size = fit
		}
	}
	if size <= 0 {
		size = defaultFontSize
	}

	encoded, err := winAnsiEncoder().Bytes([]byte(strings.ReplaceAll(text, "\r\n", " ")))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q for appearance: %w", text, err)
	}

	quadding := field.quadding
	if q, ok := f.intEntry(widget, "Q"); ok {
		quadding = q
	}
	textWidth := float64(len(encoded)) * size * avgGlyphWidth
	x := textPadding
	switch quadding {
	case 1:
		x = (width - textWidth) / 2
	case 2:
		x = width - textPadding - textWidth
	}
	if x < textPadding {
		x = textPadding
	}

	y := (height-size)/2 + size*0.22
	if field.flags&flagMultiline != 0 {
		y = height - textPadding - size
	}

	var content bytes.Buffer
	fmt.Fprintf(&content, "/Tx BMC\nq\n%s %s %s %s re W n\nBT\n/%s %s Tf %s\n%s %s Td\n(%s) Tj\nET\nQ\nEMC\n",
		num(1), num(1), num(width-2), num(height-2),
		fontName, num(size), parsed.color,
		num(x), num(y),
		escapeLiteral(encoded))

	sd := newStream(types.Dict{
		"Type":    types.Name("XObject"),
		"Subtype": types.Name("Form"),
		"BBox":    types.Array{types.Float(0), types.Float(0), types.Float(width), types.Float(height)},
		"Resources": types.Dict{
			"Font": types.Dict{fontName: fontObj},
		},
	}, content.Bytes())

	ref, err := f.ctx.IndRefForNewObject(sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add appearance stream: %w", err)
	}
	return *ref, nil
}

// newStream builds an unfiltered stream object.
func newStream(d types.Dict, content []byte) types.StreamDict {
	length := int64(len(content))
	d["Length"] = types.Integer(int(length))
	return types.StreamDict{
		Dict:         d,
		Content:      content,
		Raw:          content,
		StreamLength: &length,
	}
}

// num formats a number for a content stream.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
