package detect

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// ObjectEmbed loads SVG documents referenced by object data and embed src.
// Objects are processed before embeds.
type ObjectEmbed struct{}

func (ObjectEmbed) Name() string { return "Object/Embed SVGs" }

func (ObjectEmbed) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceObjectEmbed, sess: env.session()}
	return s.objects(ctx, false), nil
}

// objects collects object and embed references. With bySuffix only
// references whose URL names an .svg file count, as in noscript fallbacks;
// otherwise an SVG MIME type attribute also qualifies.
func (s *scope) objects(ctx context.Context, bySuffix bool) []asset.Asset {
	var out []asset.Asset
	for _, spec := range []struct{ tag, attr string }{{"object", "data"}, {"embed", "src"}} {
		for _, n := range page.Elements(s.root, spec.tag) {
			if n.Namespace != "" {
				continue
			}
			ref := strings.TrimSpace(attr(n, spec.attr))
			if ref == "" || !s.isSVGReference(n, ref, bySuffix) {
				continue
			}
			content, ok := s.sess.Load(ctx, ref)
			if !ok {
				continue
			}
			out = s.add(out, content, s.sourceURL(ref))
		}
	}
	return out
}

func (s *scope) isSVGReference(n *html.Node, ref string, bySuffix bool) bool {
	if asset.IsSVGURL(ref) {
		return true
	}
	if bySuffix {
		return false
	}
	return svgMIMETypes[strings.ToLower(strings.TrimSpace(attr(n, "type")))]
}

// sourceURL reports where a referenced asset came from: the absolute URL,
// or the data URI itself.
func (s *scope) sourceURL(ref string) string {
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	return s.sess.Absolute(ref)
}
