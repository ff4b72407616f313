package asset

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// DefaultSize is used for any dimension that cannot be determined.
const DefaultSize = 100.0

var (
	viewBoxSplit = regexp.MustCompile(`\s+|,`)
	leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	// Internal-subset general entities; parameter entities are not matched.
	entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%"'<>]+)\s+(?:"([^"]*)"|'([^']*)')\s*>`)
)

// Normalize trims surrounding whitespace and declares the SVG namespace on
// the first <svg tag when the markup mentions no namespace at all.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "xmlns") {
		s = strings.Replace(s, "<svg", `<svg xmlns="`+svgNamespace+`"`, 1)
	}
	return s
}

// LooksLikeSVG is the cheap textual check: an <svg or <?xml prefix and some
// closing construct.
func LooksLikeSVG(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<svg") && !strings.HasPrefix(s, "<?xml") {
		return false
	}
	return strings.Contains(s, "</svg>") || strings.Contains(s, "/>")
}

// Validate reports whether content looks like SVG and parses as XML.
func Validate(content string) bool {
	if content == "" || !LooksLikeSVG(content) {
		return false
	}
	return wellFormed(content)
}

// wellFormed runs a strict XML tokenizer over the whole document. Undeclared
// entities, unbalanced tags and a missing root element all fail.
func wellFormed(content string) bool {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = DeclaredEntities(content)
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sawRoot
		}
		if err != nil {
			return false
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
}

// DeclaredEntities returns the general entities declared in the internal
// subset of the document type declaration, as editors such as Illustrator
// emit them. The first declaration of a name binds. It returns nil when there
// are none.
func DeclaredEntities(content string) map[string]string {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	var out map[string]string
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return out
		case xml.Directive:
			if !bytes.HasPrefix(bytes.TrimSpace(t), []byte("DOCTYPE")) {
				continue
			}
			for _, m := range entityDecl.FindAllSubmatch(t, -1) {
				if out == nil {
					out = make(map[string]string)
				}
				name := string(m[1])
				if _, dup := out[name]; dup {
					continue
				}
				val := m[2]
				if val == nil {
					val = m[3]
				}
				out[name] = string(val)
			}
		}
	}
}

// Fingerprint computes the 32-bit rolling hash (h = h*31 + unit) over the
// UTF-16 code units of content and renders its absolute value in base 36.
func Fingerprint(content string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(content)) {
		h = h*31 + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// ParseDocument parses SVG markup into an element tree. Declared non-UTF-8
// encodings are transcoded.
func ParseDocument(content string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Entity = DeclaredEntities(content)
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if doc.Root() == nil {
		return nil, errors.New("parse svg: no root element")
	}
	return doc, nil
}

// Measure returns the intrinsic size of the root element. Explicit width and
// height win; missing or zero components fall back to a four-part viewBox;
// anything still unknown becomes DefaultSize.
func Measure(content string) Dimensions {
	doc, err := ParseDocument(content)
	if err != nil {
		return Dimensions{Width: DefaultSize, Height: DefaultSize}
	}
	return MeasureElement(doc.Root())
}

// MeasureElement applies the Measure rules to a parsed root element.
func MeasureElement(root *etree.Element) Dimensions {
	w := ParseLength(root.SelectAttrValue("width", ""))
	h := ParseLength(root.SelectAttrValue("height", ""))
	if w == 0 || h == 0 {
		if vb := root.SelectAttr("viewBox"); vb != nil {
			if parts, ok := ParseViewBox(vb.Value); ok {
				if w == 0 {
					w = parts[2]
				}
				if h == 0 {
					h = parts[3]
				}
			}
		}
	}
	return Dimensions{Width: orDefault(w), Height: orDefault(h)}
}

// ParseLength reads the leading decimal number of s, ignoring any unit
// suffix. Unparseable input yields 0.
func ParseLength(s string) float64 {
	m := leadingFloat.FindString(strings.TrimLeft(s, " \t\n\r\f"))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseViewBox splits a viewBox value on whitespace runs or single commas.
// It succeeds only when exactly four components result; empty components
// count as zero and non-numeric ones as NaN.
func ParseViewBox(s string) ([4]float64, bool) {
	var out [4]float64
	parts := viewBoxSplit.Split(s, -1)
	if len(parts) != 4 {
		return out, false
	}
	for i, p := range parts {
		out[i] = toNumber(p)
	}
	return out, true
}

func toNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// orDefault treats zero and NaN as unknown. Negative sizes are not
// meaningful for rendering either.
func orDefault(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return DefaultSize
	}
	return v
}
