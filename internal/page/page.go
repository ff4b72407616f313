// Package page holds the parsed document that detectors inspect: the node
// tree, its base URL and title, and the stylesheets and network resources
// associated with it.
package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Sheet is one stylesheet in document order. Inline <style> blocks carry
// their text directly; linked sheets are filled in by a Loader.
type Sheet struct {
	// Href is the URL relative references inside the sheet resolve against.
	Href   string
	Text   string
	Linked bool
}

// Page is a parsed document plus what was learned while loading it.
type Page struct {
	URL   string
	Doc   *html.Node
	Title string
	// Sheets lists stylesheets in cascade order.
	Sheets []Sheet
	// Resources holds URLs the document fetched while it was live, when
	// known (for example from a browser session).
	Resources []string

	base *url.URL
}

// Parse decodes input using the declared or sniffed charset and builds a Page.
// pageURL may be empty; relative references then stay unresolved.
func Parse(input []byte, contentType, pageURL string) (*Page, error) {
	enc, _, _ := charset.DetermineEncoding(input, contentType)
	r := transform.NewReader(bytes.NewReader(input), enc.NewDecoder())
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	p := &Page{URL: pageURL, Doc: doc}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parse page url: %w", err)
		}
		p.base = u
	}
	if b := findFirst(doc, "base"); b != nil {
		if href, ok := Attr(b, "href"); ok && strings.TrimSpace(href) != "" {
			if u, err := p.resolveURL(strings.TrimSpace(href)); err == nil {
				p.base = u
			}
		}
	}
	p.Title = strings.Join(strings.Fields(findTitle(doc)), " ")
	p.Sheets = p.collectSheets()
	return p, nil
}

// ParseString is Parse for UTF-8 markup.
func ParseString(markup, pageURL string) (*Page, error) {
	return Parse([]byte(markup), "text/html; charset=utf-8", pageURL)
}

// Base returns the document base URL, or nil when unknown.
func (p *Page) Base() *url.URL { return p.base }

// Resolve makes ref absolute against the document base. Without a base, or
// when ref does not parse, ref is returned unchanged.
func (p *Page) Resolve(ref string) string {
	u, err := p.resolveURL(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func (p *Page) resolveURL(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if p.base == nil {
		return u, nil
	}
	return p.base.ResolveReference(u), nil
}

// ResolveAgainst resolves ref against base; an empty or invalid base leaves
// ref as is.
func ResolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}

func (p *Page) collectSheets() []Sheet {
	var out []Sheet
	base := ""
	if p.base != nil {
		base = p.base.String()
	}
	Walk(p.Doc, func(n *html.Node) bool {
		switch {
		case IsElement(n, "style"):
			out = append(out, Sheet{Href: base, Text: TextContent(n)})
		case IsElement(n, "link") && n.Namespace == "":
			rel, _ := Attr(n, "rel")
			href, ok := Attr(n, "href")
			if !ok || !HasToken(rel, "stylesheet") || HasToken(rel, "alternate") {
				return true
			}
			out = append(out, Sheet{Href: p.Resolve(strings.TrimSpace(href)), Linked: true})
		}
		return true
	})
	return out
}

// HasToken reports whether the space-separated list contains tok.
func HasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, tok) {
			return true
		}
	}
	return false
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil {
		return ""
	}
	return TextContent(t)
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	Walk(n, func(cur *html.Node) bool {
		if res != nil {
			return false
		}
		if cur.Namespace == "" && strings.EqualFold(cur.Data, tag) {
			res = cur
			return false
		}
		return true
	})
	return res
}
