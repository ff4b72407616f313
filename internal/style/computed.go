package style

import (
	"strings"

	"golang.org/x/net/html"
)

// inherited lists the properties this package resolves through ancestors
// when an element has no value of its own.
var inherited = map[string]bool{
	"fill":              true,
	"fill-opacity":      true,
	"fill-rule":         true,
	"stroke":            true,
	"stroke-width":      true,
	"stroke-linecap":    true,
	"stroke-linejoin":   true,
	"stroke-dasharray":  true,
	"stroke-dashoffset": true,
	"stroke-opacity":    true,
	"font-family":       true,
	"font-size":         true,
	"font-weight":       true,
	"text-anchor":       true,
	"visibility":        true,
	"cursor":            true,
	"list-style-image":  true,
}

// presentation lists SVG attributes that map onto the property of the same
// name with author-level precedence below any CSS rule.
var presentation = map[string]bool{
	"fill":              true,
	"fill-opacity":      true,
	"fill-rule":         true,
	"stroke":            true,
	"stroke-width":      true,
	"stroke-linecap":    true,
	"stroke-linejoin":   true,
	"stroke-dasharray":  true,
	"stroke-dashoffset": true,
	"stroke-opacity":    true,
	"opacity":           true,
	"font-family":       true,
	"font-size":         true,
	"font-weight":       true,
	"text-anchor":       true,
	"visibility":        true,
	"display":           true,
	"cursor":            true,
}

// Computed returns the value prop takes on n after applying presentation
// attributes and inheritance. Properties that end up with no author value
// return "", the caller's cue to treat them as initial.
func (r *Resolver) Computed(n *html.Node, prop string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.computedValue(n, strings.ToLower(prop))
}

func (r *Resolver) computedValue(n *html.Node, prop string) string {
	// Walk up until a node supplies a value, then fill the cache for the
	// whole chain on the way back.
	var chain []*html.Node
	val := ""
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if v, ok := r.computed[computedKey{cur, prop}]; ok {
			val = v
			break
		}
		chain = append(chain, cur)
		v, ok := r.own(cur, prop)
		if ok && !strings.EqualFold(v, "inherit") {
			val = v
			break
		}
		if !ok && !inherited[prop] {
			break
		}
	}
	for _, c := range chain {
		r.computed[computedKey{c, prop}] = val
	}
	return val
}

// own returns the value set directly on n, either by the cascade or by a
// presentation attribute on an SVG element.
func (r *Resolver) own(n *html.Node, prop string) (string, bool) {
	if v, ok := r.specified(n, None, prop); ok && v.Value != "" {
		switch strings.ToLower(v.Value) {
		case "initial":
			return "", true
		case "unset":
			if inherited[prop] {
				return "inherit", true
			}
			return "", true
		}
		return v.Value, true
	}
	if n.Namespace == "svg" && presentation[prop] {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == prop {
				return strings.TrimSpace(a.Val), true
			}
		}
	}
	return "", false
}
