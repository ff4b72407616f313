package detect

import (
	"context"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// Sprite resolves use references and harvests symbols from hidden sprite
// sheets.
type Sprite struct{}

func (Sprite) Name() string { return "Sprite SVGs" }

func (Sprite) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceSprite, styles: env.Styles, sess: env.session()}
	return s.sprites(ctx), nil
}
