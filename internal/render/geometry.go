package render

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/hyperifyio/svgscout/internal/asset"
)

var (
	scaleFunc  = regexp.MustCompile(`scale\(\s*([^,\s)]+)(?:[\s,]+([^,\s)]+))?\s*\)`)
	matrixFunc = regexp.MustCompile(`matrix\(\s*([^,\s)]+)[\s,]+([^,\s)]+)[\s,]+([^,\s)]+)[\s,]+([^,\s)]+)[\s,]+([^,\s)]+)[\s,]+([^,\s)]+)\s*\)`)
)

// Geometry is the outcome of normalizing a document for rasterization.
type Geometry struct {
	// Width and Height are the intrinsic size in user units.
	Width, Height float64
	// ScaleX and ScaleY come from a root transform folded into the output
	// size; 1 when absent.
	ScaleX, ScaleY float64
}

// Normalize rewrites the root of doc so rasterization starts at the origin:
// a root style transform is folded into the returned scale and removed, a
// viewBox with a nonzero origin becomes 0 0 w h with the children wrapped in
// a compensating translation, and a missing viewBox is set from the
// intrinsic size.
func Normalize(doc *etree.Document) Geometry {
	root := doc.Root()
	dims := asset.MeasureElement(root)
	g := Geometry{Width: dims.Width, Height: dims.Height, ScaleX: 1, ScaleY: 1}
	g.ScaleX, g.ScaleY = foldTransform(root)

	vb := root.SelectAttr("viewBox")
	if vb == nil {
		root.CreateAttr("viewBox", "0 0 "+formatNumber(g.Width)+" "+formatNumber(g.Height))
		return g
	}
	parts, ok := asset.ParseViewBox(vb.Value)
	if !ok || math.IsNaN(parts[0]) || math.IsNaN(parts[1]) || (parts[0] == 0 && parts[1] == 0) {
		return g
	}
	vb.Value = "0 0 " + formatNumber(parts[2]) + " " + formatNumber(parts[3])
	wrapChildren(root, "translate("+formatNumber(-parts[0])+","+formatNumber(-parts[1])+")")
	return g
}

// wrapChildren moves every child token of root into a new group.
func wrapChildren(root *etree.Element, transform string) {
	children := append([]etree.Token(nil), root.Child...)
	for _, c := range children {
		root.RemoveChild(c)
	}
	group := root.CreateElement("g")
	if root.Space != "" {
		group.Space = root.Space
	}
	group.CreateAttr("transform", transform)
	for _, c := range children {
		group.AddChild(c)
	}
}

// foldTransform reads a scale from the transform declaration of the root
// style attribute and removes the declaration.
func foldTransform(root *etree.Element) (float64, float64) {
	attr := root.SelectAttr("style")
	if attr == nil {
		return 1, 1
	}
	var kept []string
	sx, sy := 1.0, 1.0
	for _, decl := range strings.Split(attr.Value, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "transform") {
			if strings.TrimSpace(decl) != "" {
				kept = append(kept, strings.TrimSpace(decl))
			}
			continue
		}
		sx, sy = transformScale(value)
	}
	if len(kept) == 0 {
		root.RemoveAttr("style")
	} else {
		attr.Value = strings.Join(kept, "; ")
	}
	return sx, sy
}

// transformScale extracts the scale of a scale() or matrix() function.
// Unusable factors count as 1.
func transformScale(value string) (float64, float64) {
	if m := scaleFunc.FindStringSubmatch(value); m != nil {
		sx := factor(m[1])
		sy := sx
		if m[2] != "" {
			sy = factor(m[2])
		}
		return sx, sy
	}
	if m := matrixFunc.FindStringSubmatch(value); m != nil {
		return factor(m[1]), factor(m[4])
	}
	return 1, 1
}

func factor(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 1
	}
	return f
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
