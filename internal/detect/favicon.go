package detect

import (
	"context"
	"strings"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// iconRels are link relations that name a page icon.
var iconRels = map[string]bool{
	"icon":                         true,
	"shortcut icon":                true,
	"apple-touch-icon":             true,
	"apple-touch-icon-precomposed": true,
	"mask-icon":                    true,
}

// Favicon loads SVG icons declared by link elements.
type Favicon struct{}

func (Favicon) Name() string { return "Favicon SVGs" }

func (Favicon) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceFavicon, sess: env.session()}
	var out []asset.Asset
	for _, link := range page.Elements(s.root, "link") {
		rel := strings.ToLower(strings.Join(strings.Fields(attr(link, "rel")), " "))
		if !iconRels[rel] {
			continue
		}
		href := strings.TrimSpace(attr(link, "href"))
		if href == "" {
			continue
		}
		typ := strings.ToLower(strings.TrimSpace(attr(link, "type")))
		if !asset.IsSVGDataURI(href) && !svgMIMETypes[typ] && !asset.IsSVGURL(href) {
			continue
		}
		content, ok := s.sess.Load(ctx, href)
		if !ok {
			continue
		}
		out = s.add(out, content, s.sourceURL(href))
	}
	return out, nil
}
