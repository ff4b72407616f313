package detect

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
	"github.com/hyperifyio/svgscout/internal/style"
)

// imageProperties may carry url() references to images.
var imageProperties = []string{
	"background-image",
	"background",
	"mask-image",
	"mask",
	"-webkit-mask-image",
	"-webkit-mask",
	"content",
	"list-style-image",
	"border-image-source",
	"cursor",
}

var cssURL = regexp.MustCompile(`url\((?:"([^"]+)"|'([^']+)'|([^)]+))\)`)

// CSS finds SVGs referenced by url() tokens in image-bearing properties of
// every element and its ::before and ::after boxes.
type CSS struct{}

func (CSS) Name() string { return "CSS Background SVGs" }

func (CSS) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	if env.Styles == nil {
		return nil, nil
	}
	s := &scope{root: env.Page.Doc, source: asset.SourceCSSBackground, styles: env.Styles, sess: env.session()}
	var out []asset.Asset
	var err error
	page.Walk(s.root, func(n *html.Node) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		for _, prop := range imageProperties {
			for _, pseudo := range []string{style.None, style.Before, style.After} {
				v, ok := s.styles.Specified(n, pseudo, prop)
				if !ok {
					continue
				}
				for _, ref := range cssURLs(v.Value) {
					out = s.cssRef(ctx, out, ref, v.Base)
				}
			}
		}
		return true
	})
	return out, err
}

func (s *scope) cssRef(ctx context.Context, out []asset.Asset, ref, base string) []asset.Asset {
	if !asset.IsSVGDataURI(ref) {
		if base != "" {
			ref = page.ResolveAgainst(base, ref)
		}
		if !asset.IsSVGURL(ref) {
			return out
		}
	}
	content, ok := s.sess.Load(ctx, ref)
	if !ok {
		return out
	}
	return s.add(out, content, s.sourceURL(ref))
}

// cssURLs extracts the references of every url() token in a declaration
// value, in order.
func cssURLs(value string) []string {
	var out []string
	for _, m := range cssURL.FindAllStringSubmatch(value, -1) {
		ref := m[1]
		if ref == "" {
			ref = m[2]
		}
		if ref == "" {
			ref = strings.Trim(strings.TrimSpace(m[3]), `"'`)
		}
		if ref != "" {
			out = append(out, ref)
		}
	}
	return out
}
