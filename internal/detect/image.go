package detect

import (
	"context"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// Image finds SVGs referenced by img and picture elements.
type Image struct{}

func (Image) Name() string { return "Image SVGs" }

func (Image) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceImage, styles: env.Styles, sess: env.session()}
	return s.raster(ctx), nil
}
