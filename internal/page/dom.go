package page

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of an unprefixed attribute.
func Attr(n *html.Node, key string) (string, bool) {
	return AttrNS(n, "", key)
}

// AttrNS returns the value of a namespaced attribute such as xlink:href
// (namespace "xlink", key "href").
func AttrNS(n *html.Node, ns, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == ns && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr replaces or appends an unprefixed attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr drops an unprefixed attribute if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Href returns href, falling back to xlink:href.
func Href(n *html.Node) (string, bool) {
	if v, ok := Attr(n, "href"); ok {
		return v, true
	}
	return AttrNS(n, "xlink", "href")
}

// IsElement reports whether n is an element named tag. For HTML elements the
// comparison uses the atom; foreign (svg) elements compare by name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// IsHTMLTemplate reports whether n is an HTML <template>. Its children form
// inert content that is not part of the rendered document.
func IsHTMLTemplate(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Template && n.Namespace == ""
}

// Walk visits element nodes under root (root included) in document order.
// Children of HTML <template> elements are not entered. Returning false from
// fn skips the subtree of that node. The traversal uses an explicit stack so
// arbitrarily deep documents are safe.
func Walk(root *html.Node, fn func(n *html.Node) bool) {
	if root == nil {
		return
	}
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		descend := true
		if n.Type == html.ElementNode {
			descend = fn(n)
			if IsHTMLTemplate(n) && n != root {
				descend = false
			}
		}
		if !descend {
			continue
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

// Elements collects all elements named tag under root in document order.
func Elements(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if IsElement(n, tag) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindByID returns the first element under root whose id equals id.
func FindByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Closest returns the nearest ancestor of n (excluding n) named tag.
func Closest(n *html.Node, tag string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if IsElement(p, tag) {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy of n detached from any parent.
func Clone(n *html.Node) *html.Node {
	type pair struct{ src, dst *html.Node }
	root := shallow(n)
	stack := []pair{{n, root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for c := p.src.FirstChild; c != nil; c = c.NextSibling {
			cc := shallow(c)
			p.dst.AppendChild(cc)
			stack = append(stack, pair{c, cc})
		}
	}
	return root
}

func shallow(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	return c
}

// Serialize renders an element subtree as markup. When the subtree uses
// xlink-prefixed attributes and the root does not declare the prefix, the
// declaration is added so the result stays well-formed XML.
func Serialize(n *html.Node) (string, error) {
	if usesXlink(n) {
		if _, ok := AttrNS(n, "xmlns", "xlink"); !ok {
			n = Clone(n)
			n.Attr = append(n.Attr, html.Attribute{Namespace: "xmlns", Key: "xlink", Val: "http://www.w3.org/1999/xlink"})
		}
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func usesXlink(root *html.Node) bool {
	found := false
	walkAll(root, func(n *html.Node) {
		for _, a := range n.Attr {
			if a.Namespace == "xlink" {
				found = true
			}
		}
	})
	return found
}

// walkAll visits every element including template content.
func walkAll(root *html.Node, fn func(n *html.Node)) {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode {
			fn(n)
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

// TextContent concatenates the text node children of n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
