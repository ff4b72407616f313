package detect

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
	"github.com/hyperifyio/svgscout/internal/style"
)

// inlinedProperties are copied from the cascade onto every element of a
// serialized inline SVG so externally applied styling survives export.
var inlinedProperties = []string{
	"fill",
	"stroke",
	"stroke-width",
	"stroke-linecap",
	"stroke-linejoin",
	"stroke-dasharray",
	"stroke-dashoffset",
	"opacity",
	"fill-opacity",
	"stroke-opacity",
	"transform",
	"font-family",
	"font-size",
	"font-weight",
	"text-anchor",
}

var svgMIMETypes = map[string]bool{
	"image/svg+xml": true,
	"image/svg":     true,
}

// scope is a subtree the inline, raster-reference and sprite logic runs
// over: the whole document, or a template, noscript or shadow-root fragment.
type scope struct {
	root   *html.Node
	source asset.Source
	// styles enables property inlining; nil serializes markup as is.
	styles *style.Resolver
	sess   *Session
}

func (s *scope) add(out []asset.Asset, raw string, sourceURL string) []asset.Asset {
	if a, ok := asset.New(raw, s.source, sourceURL); ok {
		out = append(out, a)
	}
	return out
}

// inline serializes every svg element in scope except hidden sprite
// containers.
func (s *scope) inline() []asset.Asset {
	var out []asset.Asset
	for _, svg := range page.Elements(s.root, "svg") {
		if isHiddenSpriteContainer(svg, s.styles) {
			continue
		}
		clone := page.Clone(svg)
		if s.styles != nil {
			inlineStyles(svg, clone, s.styles)
		}
		markup, err := page.Serialize(clone)
		if err != nil {
			log.Debug().Err(err).Msg("serialize svg failed")
			continue
		}
		out = s.add(out, markup, "")
	}
	return out
}

// inlineStyles walks original and clone in lockstep and writes resolved
// presentation properties into each clone element's style attribute.
func inlineStyles(orig, clone *html.Node, styles *style.Resolver) {
	type pair struct{ o, c *html.Node }
	stack := []pair{{orig, clone}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		applyStyles(p.o, p.c, styles)
		oc, cc := elementChildren(p.o), elementChildren(p.c)
		for i := len(oc) - 1; i >= 0; i-- {
			if i < len(cc) {
				stack = append(stack, pair{oc[i], cc[i]})
			}
		}
	}
}

func applyStyles(orig, clone *html.Node, styles *style.Resolver) {
	var decls []string
	for _, prop := range inlinedProperties {
		v := styles.Computed(orig, prop)
		if v == "" || v == "none" || v == "normal" {
			continue
		}
		decls = append(decls, prop+": "+v)
	}
	if len(decls) == 0 {
		return
	}
	merged := mergeStyle(attr(clone, "style"), inlinedProperties, decls)
	page.SetAttr(clone, "style", merged)
}

// mergeStyle drops declarations of props from an existing style attribute
// and appends decls.
func mergeStyle(existing string, props []string, decls []string) string {
	drop := make(map[string]bool, len(props))
	for _, p := range props {
		drop[p] = true
	}
	var kept []string
	for _, d := range strings.Split(existing, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name := d
		if i := strings.IndexByte(d, ':'); i >= 0 {
			name = d[:i]
		}
		if drop[strings.ToLower(strings.TrimSpace(name))] {
			continue
		}
		kept = append(kept, d)
	}
	return strings.Join(append(kept, decls...), "; ") + ";"
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// isHiddenSpriteContainer reports an svg that holds symbol definitions and
// is not meant to render: display none, visibility hidden, zero width and
// height, or aria-hidden.
func isHiddenSpriteContainer(svg *html.Node, styles *style.Resolver) bool {
	if len(page.Elements(svg, "symbol")) == 0 {
		return false
	}
	if v, _ := page.Attr(svg, "aria-hidden"); v == "true" {
		return true
	}
	display := computed(styles, svg, "display")
	if display == "" {
		display, _ = page.Attr(svg, "display")
	}
	if strings.EqualFold(strings.TrimSpace(display), "none") {
		return true
	}
	visibility := computed(styles, svg, "visibility")
	if visibility == "" {
		visibility, _ = page.Attr(svg, "visibility")
	}
	if strings.EqualFold(strings.TrimSpace(visibility), "hidden") {
		return true
	}
	return isZeroLength(sizeOf(styles, svg, "width")) && isZeroLength(sizeOf(styles, svg, "height"))
}

func computed(styles *style.Resolver, n *html.Node, prop string) string {
	if styles == nil {
		if v, ok := inlineDeclaration(n, prop); ok {
			return v
		}
		return ""
	}
	return styles.Computed(n, prop)
}

// inlineDeclaration reads prop from the style attribute without a resolver.
func inlineDeclaration(n *html.Node, prop string) (string, bool) {
	for _, d := range strings.Split(attr(n, "style"), ";") {
		name, val, ok := strings.Cut(d, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")), true
		}
	}
	return "", false
}

func sizeOf(styles *style.Resolver, n *html.Node, prop string) string {
	if styles != nil {
		if v, ok := styles.Specified(n, style.None, prop); ok {
			return v.Value
		}
	} else if v, ok := inlineDeclaration(n, prop); ok {
		return v
	}
	return attr(n, prop)
}

func isZeroLength(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return false
	}
	v = strings.TrimSuffix(v, "px")
	return v == "0" || v == "0.0" || v == "-0"
}

func attr(n *html.Node, key string) string {
	v, _ := page.Attr(n, key)
	return v
}

// raster collects SVGs referenced from img src and srcset and from
// picture source srcset.
func (s *scope) raster(ctx context.Context) []asset.Asset {
	var out []asset.Asset
	page.Walk(s.root, func(n *html.Node) bool {
		if n.Namespace != "" {
			return true
		}
		switch {
		case page.IsElement(n, "img"):
			if src := strings.TrimSpace(attr(n, "src")); src != "" {
				out = s.rasterRef(ctx, out, src)
			}
			for _, u := range parseSrcset(attr(n, "srcset")) {
				out = s.rasterRef(ctx, out, u)
			}
		case page.IsElement(n, "source") && page.IsElement(n.Parent, "picture"):
			if typ := strings.ToLower(strings.TrimSpace(attr(n, "type"))); typ != "" && !svgMIMETypes[typ] {
				return true
			}
			for _, u := range parseSrcset(attr(n, "srcset")) {
				out = s.rasterRef(ctx, out, u)
			}
		}
		return true
	})
	return out
}

func (s *scope) rasterRef(ctx context.Context, out []asset.Asset, ref string) []asset.Asset {
	if !asset.IsSVGDataURI(ref) && !asset.IsSVGURL(ref) {
		return out
	}
	content, ok := s.sess.Load(ctx, ref)
	if !ok {
		return out
	}
	return s.add(out, content, s.sourceURL(ref))
}

// parseSrcset returns the URL of each image candidate in a srcset value.
// Data URIs may contain commas, so candidates are split on commas that
// follow whitespace-delimited URLs rather than on every comma.
func parseSrcset(srcset string) []string {
	var out []string
	s := srcset
	for {
		s = strings.TrimLeft(s, " \t\n\r\f,")
		if s == "" {
			return out
		}
		end := strings.IndexAny(s, " \t\n\r\f")
		if end < 0 {
			end = len(s)
		}
		u := s[:end]
		s = s[end:]
		if !strings.HasPrefix(u, "data:") {
			if trimmed := strings.TrimRight(u, ","); trimmed != u {
				out = append(out, trimmed)
				continue
			}
		}
		out = append(out, u)
		// Skip the descriptor up to the next comma.
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
	}
}

// sprites resolves use references within scope and harvests every symbol
// held in a hidden sprite container.
func (s *scope) sprites(ctx context.Context) []asset.Asset {
	var out []asset.Asset
	for _, use := range page.Elements(s.root, "use") {
		href, ok := page.Href(use)
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			continue
		}
		markup, ok := s.resolveUse(ctx, href)
		if !ok {
			continue
		}
		out = s.add(out, markup, href)
	}
	for _, svg := range page.Elements(s.root, "svg") {
		if !isHiddenSpriteContainer(svg, s.styles) {
			continue
		}
		for _, sym := range page.Elements(svg, "symbol") {
			markup, err := materializeSymbol(sym)
			if err != nil {
				continue
			}
			out = s.add(out, markup, "#"+attr(sym, "id"))
		}
	}
	return out
}

func (s *scope) resolveUse(ctx context.Context, href string) (string, bool) {
	if strings.Contains(href, ".svg") && !strings.HasPrefix(href, "#") {
		ref, frag, _ := strings.Cut(href, "#")
		doc, ok := s.sess.Document(ctx, ref)
		if !ok {
			return "", false
		}
		if frag == "" {
			return doc, true
		}
		return symbolFromDocument(doc, frag)
	}
	id := strings.TrimPrefix(href, "#")
	target := page.FindByID(s.root, id)
	if target == nil {
		return "", false
	}
	switch {
	case page.IsElement(target, "symbol"):
		markup, err := materializeSymbol(target)
		return markup, err == nil
	case page.IsElement(target, "svg"):
		markup, err := page.Serialize(target)
		return markup, err == nil
	}
	return "", false
}
