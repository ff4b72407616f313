package detect

import (
	"context"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// Template scans the inert content of <template> elements. Shadow-root
// templates belong to the Shadow detector. Template content is never
// rendered, so markup is serialized without computed styles.
type Template struct{}

func (Template) Name() string { return "Template SVGs" }

func (Template) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	sess := env.session()
	var out []asset.Asset
	for _, tpl := range page.Elements(env.Page.Doc, "template") {
		if !page.IsHTMLTemplate(tpl) || ShadowMode(tpl) != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s := &scope{root: tpl, source: asset.SourceTemplate, sess: sess}
		out = append(out, s.inline()...)
		out = append(out, s.raster(ctx)...)
		out = append(out, s.sprites(ctx)...)
	}
	return out, nil
}
