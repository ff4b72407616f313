package detect

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// DataAttribute finds SVG markup and SVG data URIs stored in data-*
// attributes, as used by lazy-loading and icon libraries.
type DataAttribute struct{}

func (DataAttribute) Name() string { return "Data Attribute SVGs" }

func (DataAttribute) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceDataAttribute}
	seen := make(map[string]bool)
	var out []asset.Asset
	page.Walk(s.root, func(n *html.Node) bool {
		for _, a := range n.Attr {
			if a.Namespace != "" || !strings.HasPrefix(strings.ToLower(a.Key), "data-") {
				continue
			}
			v := strings.TrimSpace(a.Val)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			label := a.Key + " attribute"
			switch {
			case asset.LooksLikeSVG(v):
				out = s.add(out, v, label)
			case asset.IsSVGDataURI(v):
				if content, err := asset.DecodeDataURI(v); err == nil {
					out = s.add(out, content, label)
				}
			}
		}
		return true
	})
	return out, ctx.Err()
}
