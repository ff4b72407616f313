package detect

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
	"github.com/hyperifyio/svgscout/internal/style"
)

// Shadow inspects shadow roots, declared as <template shadowrootmode> (or
// the older shadowroot attribute) children of their host. Each root is
// scanned like a small document with its own styles, and roots nested in
// shadow trees are visited too. Closed roots are skipped unless the Env
// grants access to them.
type Shadow struct{}

func (Shadow) Name() string { return "Shadow DOM SVGs" }

func (Shadow) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	type pending struct {
		root   *html.Node
		styles *style.Resolver
	}
	sess := env.session()
	var queue []pending
	for _, root := range ShadowRoots(env.Page.Doc, env.ClosedShadowRoots) {
		queue = append(queue, pending{root, env.Styles})
	}
	var out []asset.Asset
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cur := queue[0]
		queue = queue[1:]
		s := &scope{root: cur.root, source: asset.SourceShadowDOM, sess: sess}
		if cur.styles != nil {
			s.styles = cur.styles.Scoped(cur.root)
		}
		out = append(out, s.inline()...)
		out = append(out, s.raster(ctx)...)
		out = append(out, s.sprites(ctx)...)
		for _, nested := range ShadowRoots(cur.root, env.ClosedShadowRoots) {
			queue = append(queue, pending{nested, s.styles})
		}
	}
	return out, nil
}

// ShadowMode returns the declared mode of a shadow-root template, or "" when
// n is not one.
func ShadowMode(n *html.Node) string {
	if !page.IsHTMLTemplate(n) {
		return ""
	}
	for _, key := range []string{"shadowrootmode", "shadowroot"} {
		if v, ok := page.Attr(n, key); ok {
			mode := strings.ToLower(strings.TrimSpace(v))
			if mode == "open" || mode == "closed" {
				return mode
			}
		}
	}
	return ""
}

// ShadowRoots lists the shadow roots attached to hosts under root, not
// counting roots inside those shadow trees. A host takes only its first
// shadow-root template.
func ShadowRoots(root *html.Node, includeClosed bool) []*html.Node {
	var out []*html.Node
	page.Walk(root, func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			mode := ShadowMode(c)
			if mode == "" {
				continue
			}
			if mode == "open" || includeClosed {
				out = append(out, c)
			}
			break
		}
		return true
	})
	return out
}
