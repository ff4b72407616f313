package detect

import (
	"context"
	"strings"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// Network loads SVG resources the page requested while it was live, plus
// image preloads and prefetches declared in markup.
type Network struct{}

func (Network) Name() string { return "Network SVGs" }

func (Network) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceNetwork, sess: env.session()}
	refs := append([]string(nil), env.Page.Resources...)
	for _, link := range page.Elements(s.root, "link") {
		rel := attr(link, "rel")
		if !page.HasToken(rel, "preload") && !page.HasToken(rel, "prefetch") {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(attr(link, "as")), "image") {
			continue
		}
		refs = append(refs, strings.TrimSpace(attr(link, "href")))
	}
	var out []asset.Asset
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if ref == "" || !asset.IsSVGURL(ref) {
			continue
		}
		content, ok := s.sess.Load(ctx, ref)
		if !ok {
			continue
		}
		out = s.add(out, content, s.sourceURL(ref))
	}
	return out, nil
}
