package browser

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hostMarker tags closed shadow hosts in the live DOM so the serialized
// snapshot can be matched back to the markup pulled over CDP.
const hostMarker = "data-svgscout-shadow"

// serializeJS renders the document like outerHTML, except that every open
// shadow root is written as a declarative <template shadowrootmode="open">
// first child of its host.
const serializeJS = `() => {
	const XHTML = 'http://www.w3.org/1999/xhtml';
	const VOID = new Set(['area','base','br','col','embed','hr','img','input','link','meta','source','track','wbr']);
	const RAW = new Set(['script','style','xmp','iframe','noembed','noframes','noscript']);
	const escText = s => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
	const escAttr = s => s.replace(/&/g, '&amp;').replace(/"/g, '&quot;');
	const out = [];
	const walk = (n, raw) => {
		if (n.nodeType === Node.TEXT_NODE) { out.push(raw ? n.data : escText(n.data)); return; }
		if (n.nodeType === Node.COMMENT_NODE) { out.push('<!--' + n.data + '-->'); return; }
		if (n.nodeType !== Node.ELEMENT_NODE) return;
		const tag = n.localName;
		const isHTML = n.namespaceURI === XHTML;
		out.push('<' + tag);
		for (const a of n.attributes) out.push(' ' + a.name + '="' + escAttr(a.value) + '"');
		out.push('>');
		if (isHTML && VOID.has(tag)) return;
		if (n.shadowRoot) {
			out.push('<template shadowrootmode="open">');
			for (const c of n.shadowRoot.childNodes) walk(c, false);
			out.push('</template>');
		}
		const kids = (isHTML && tag === 'template' && n.content) ? n.content.childNodes : n.childNodes;
		const rawKids = isHTML && RAW.has(tag);
		for (const c of kids) walk(c, rawKids);
		out.push('</' + tag + '>');
	};
	walk(document.documentElement, false);
	const dt = document.doctype ? '<!DOCTYPE ' + document.doctype.name + '>' : '';
	return dt + out.join('');
}`

// markClosedRoots finds closed shadow roots through a piercing
// DOM.getDocument, tags each host with hostMarker and returns the inner
// markup of each root keyed by marker value. Hosts are tagged before any
// markup is read so hosts nested in closed trees carry their marker too.
func markClosedRoots(p *rod.Page) (map[string]string, error) {
	depth := -1
	doc, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("DOM.getDocument: %w", err)
	}
	type closedRoot struct {
		key  string
		root *proto.DOMNode
	}
	var found []closedRoot
	stack := []*proto.DOMNode{doc.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, sr := range n.ShadowRoots {
			if sr.ShadowRootType == proto.DOMShadowRootTypeClosed {
				key := strconv.Itoa(len(found) + 1)
				if err := (proto.DOMSetAttributeValue{NodeID: n.NodeID, Name: hostMarker, Value: key}).Call(p); err != nil {
					return nil, fmt.Errorf("mark shadow host: %w", err)
				}
				found = append(found, closedRoot{key, sr})
			}
			stack = append(stack, sr)
		}
		if n.TemplateContent != nil {
			stack = append(stack, n.TemplateContent)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	out := make(map[string]string, len(found))
	for _, f := range found {
		var b strings.Builder
		for _, c := range f.root.Children {
			switch c.NodeType {
			case 1:
				res, err := proto.DOMGetOuterHTML{NodeID: c.NodeID}.Call(p)
				if err != nil {
					return nil, fmt.Errorf("DOM.getOuterHTML: %w", err)
				}
				b.WriteString(res.OuterHTML)
			case 3:
				b.WriteString(html.EscapeString(c.NodeValue))
			}
		}
		out[f.key] = b.String()
	}
	return out, nil
}

// attachClosedRoots replaces every hostMarker with a closed shadow-root
// template holding the markup captured for it. Content attached this way
// is searched too, so nested closed roots resolve. It returns the number
// of roots attached.
func attachClosedRoots(doc *xhtml.Node, roots map[string]string) int {
	attached := 0
	stack := []*xhtml.Node{doc}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == xhtml.ElementNode {
			if key, ok := takeAttr(n, hostMarker); ok {
				if markup, ok := roots[key]; ok && !hasShadowTemplate(n) {
					if tpl, err := closedTemplate(markup); err == nil {
						n.InsertBefore(tpl, n.FirstChild)
						attached++
					}
				}
			}
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return attached
}

func closedTemplate(markup string) (*xhtml.Node, error) {
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := xhtml.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	tpl := &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     "template",
		DataAtom: atom.Template,
		Attr:     []xhtml.Attribute{{Key: "shadowrootmode", Val: "closed"}},
	}
	for _, c := range nodes {
		tpl.AppendChild(c)
	}
	return tpl, nil
}

func takeAttr(n *xhtml.Node, key string) (string, bool) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return a.Val, true
		}
	}
	return "", false
}

func hasShadowTemplate(n *xhtml.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xhtml.ElementNode || c.DataAtom != atom.Template {
			continue
		}
		for _, a := range c.Attr {
			if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
				return true
			}
		}
	}
	return false
}
