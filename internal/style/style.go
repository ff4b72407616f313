// Package style approximates the cascade: it answers which value a CSS
// property has on an element (or its ::before/::after box) given the page's
// stylesheets, inline style attributes and SVG presentation attributes.
package style

import (
	"regexp"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/page"
)

// Pseudo-element boxes a property can be asked for.
const (
	None   = ""
	Before = "before"
	After  = "after"
)

// Value is a specified declaration value plus the URL its relative
// references resolve against (the declaring stylesheet, or the page for
// inline styles).
type Value struct {
	Value string
	Base  string
}

type rule struct {
	sel    cascadia.Sel
	pseudo string
	spec   cascadia.Specificity
	decls  []*css.Declaration
	base   string
	order  int
}

// Resolver answers property lookups for one page.
type Resolver struct {
	rules   []rule
	pageURL string
	// parent and root are set on resolvers for a shadow tree.
	parent *Resolver
	root   *html.Node

	mu       *sync.Mutex
	matched  map[matchKey][]int
	computed map[computedKey]string
}

type matchKey struct {
	n      *html.Node
	pseudo string
}

type computedKey struct {
	n    *html.Node
	prop string
}

var legacyPseudo = regexp.MustCompile(`(^|[^:]):(before|after)\b`)

// New builds a resolver from the page's stylesheets in cascade order.
func New(p *page.Page) *Resolver {
	base := ""
	if b := p.Base(); b != nil {
		base = b.String()
	}
	return NewFromSheets(p.Sheets, base)
}

// NewFromSheets builds a resolver from explicit sheets. pageURL is the base
// for inline style attributes.
func NewFromSheets(sheets []page.Sheet, pageURL string) *Resolver {
	r := &Resolver{
		pageURL:  pageURL,
		mu:       &sync.Mutex{},
		matched:  make(map[matchKey][]int),
		computed: make(map[computedKey]string),
	}
	for _, s := range sheets {
		r.addSheet(s.Text, s.Href)
	}
	return r
}

// Scoped returns a resolver for the shadow tree under root. Style elements
// inside the tree apply to its nodes and document rules do not. Lookups for
// nodes outside the tree, such as values inherited from the host, go to r.
func (r *Resolver) Scoped(root *html.Node) *Resolver {
	s := &Resolver{
		pageURL:  r.pageURL,
		parent:   r,
		root:     root,
		mu:       r.mu,
		matched:  make(map[matchKey][]int),
		computed: make(map[computedKey]string),
	}
	for _, el := range page.Elements(root, "style") {
		s.addSheet(page.TextContent(el), r.pageURL)
	}
	return s
}

func (r *Resolver) addSheet(text, href string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	sheet, err := parser.Parse(text)
	if err != nil {
		log.Debug().Err(err).Str("url", href).Msg("stylesheet parse failed")
		return
	}
	r.addRules(sheet.Rules, href)
}

// owner returns the resolver responsible for n.
func (r *Resolver) owner(n *html.Node) *Resolver {
	for r.parent != nil && !within(n, r.root) {
		r = r.parent
	}
	return r
}

func within(n, root *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// addRules flattens qualified rules, descending into grouping at-rules such
// as @media and @supports whose conditions are treated as satisfied.
func (r *Resolver) addRules(rules []*css.Rule, base string) {
	stack := make([]*css.Rule, 0, len(rules))
	for i := len(rules) - 1; i >= 0; i-- {
		stack = append(stack, rules[i])
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Kind == css.AtRule {
			for i := len(cur.Rules) - 1; i >= 0; i-- {
				stack = append(stack, cur.Rules[i])
			}
			continue
		}
		for _, raw := range cur.Selectors {
			text := legacyPseudo.ReplaceAllString(strings.TrimSpace(raw), "$1::$2")
			sel, err := cascadia.ParseWithPseudoElement(text)
			if err != nil {
				// Dynamic or unsupported selectors never match a static document.
				continue
			}
			pseudo := strings.ToLower(sel.PseudoElement())
			if pseudo != None && pseudo != Before && pseudo != After {
				continue
			}
			r.rules = append(r.rules, rule{
				sel:    sel,
				pseudo: pseudo,
				spec:   sel.Specificity(),
				decls:  cur.Declarations,
				base:   base,
				order:  len(r.rules),
			})
		}
	}
}

func (r *Resolver) matching(n *html.Node, pseudo string) []int {
	k := matchKey{n, pseudo}
	if idx, ok := r.matched[k]; ok {
		return idx
	}
	var idx []int
	for i := range r.rules {
		if r.rules[i].pseudo == pseudo && r.rules[i].sel.Match(n) {
			idx = append(idx, i)
		}
	}
	r.matched[k] = idx
	return idx
}

// Specified returns the cascaded value of prop for n (pseudo selects the
// ::before or ::after box). Important declarations beat normal ones, inline
// styles beat rules of the same importance, then specificity and source
// order decide.
func (r *Resolver) Specified(n *html.Node, pseudo, prop string) (Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specified(n, pseudo, prop)
}

type candidate struct {
	level int
	spec  cascadia.Specificity
	order int
	val   Value
}

func (c candidate) beats(o candidate) bool {
	if c.level != o.level {
		return c.level > o.level
	}
	if c.spec != o.spec {
		return o.spec.Less(c.spec)
	}
	return c.order > o.order
}

func (r *Resolver) specified(n *html.Node, pseudo, prop string) (Value, bool) {
	if o := r.owner(n); o != r {
		return o.specified(n, pseudo, prop)
	}
	prop = strings.ToLower(prop)
	var best candidate
	found := false
	consider := func(c candidate) {
		if !found || c.beats(best) {
			best = c
			found = true
		}
	}
	for _, i := range r.matching(n, pseudo) {
		ru := r.rules[i]
		for j, d := range ru.decls {
			if strings.ToLower(d.Property) != prop || strings.TrimSpace(d.Value) == "" {
				continue
			}
			level := 0
			if d.Important {
				level = 2
			}
			consider(candidate{level: level, spec: ru.spec, order: ru.order*1024 + j, val: Value{Value: d.Value, Base: ru.base}})
		}
	}
	if pseudo == None {
		if inline, ok := page.Attr(n, "style"); ok && strings.TrimSpace(inline) != "" {
			decls, err := parseInline(inline)
			if err == nil {
				for j, d := range decls {
					if strings.ToLower(d.Property) != prop || strings.TrimSpace(d.Value) == "" {
						continue
					}
					level := 1
					if d.Important {
						level = 3
					}
					consider(candidate{level: level, order: j, val: Value{Value: d.Value, Base: r.pageURL}})
				}
			}
		}
	}
	if !found {
		return Value{}, false
	}
	best.val.Value = strings.TrimSpace(best.val.Value)
	return best.val, true
}

// parseInline parses a style attribute. The declaration parser drops the
// value of a final declaration that lacks its semicolon, so one is appended.
func parseInline(inline string) ([]*css.Declaration, error) {
	inline = strings.TrimSpace(inline)
	if !strings.HasSuffix(inline, ";") {
		inline += ";"
	}
	return parser.ParseDeclarations(inline)
}
