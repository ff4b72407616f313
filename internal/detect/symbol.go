package detect

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// materializeSymbol turns a <symbol> definition into a standalone <svg>
// document: namespace, viewBox and a size derived from it come first, then
// clones of the children, then every symbol attribute other than id that is
// not already set.
func materializeSymbol(sym *html.Node) (string, error) {
	root := &html.Node{Type: html.ElementNode, DataAtom: atom.Svg, Data: "svg", Namespace: "svg"}
	page.SetAttr(root, "xmlns", "http://www.w3.org/2000/svg")
	if vb := attr(sym, "viewBox"); vb != "" {
		page.SetAttr(root, "viewBox", vb)
		if parts, ok := asset.ParseViewBox(vb); ok {
			if w := parts[2]; w != 0 && !math.IsNaN(w) {
				page.SetAttr(root, "width", formatNumber(w))
			}
			if h := parts[3]; h != 0 && !math.IsNaN(h) {
				page.SetAttr(root, "height", formatNumber(h))
			}
		}
	}
	for c := sym.FirstChild; c != nil; c = c.NextSibling {
		root.AppendChild(page.Clone(c))
	}
	for _, a := range sym.Attr {
		if a.Namespace == "" && a.Key == "id" {
			continue
		}
		if hasAttr(root, a) {
			continue
		}
		root.Attr = append(root.Attr, a)
	}
	return page.Serialize(root)
}

func hasAttr(n *html.Node, a html.Attribute) bool {
	for _, b := range n.Attr {
		if b.Namespace == a.Namespace && b.Key == a.Key {
			return true
		}
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// symbolFromDocument parses an external SVG document and materializes the
// symbol with the given id.
func symbolFromDocument(doc, id string) (string, bool) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", false
	}
	sym := page.FindByID(root, id)
	if sym == nil || !page.IsElement(sym, "symbol") {
		return "", false
	}
	markup, err := materializeSymbol(sym)
	return markup, err == nil
}
