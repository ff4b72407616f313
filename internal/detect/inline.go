package detect

import (
	"context"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// Inline finds svg elements in the document and serializes them with their
// resolved presentation styles.
type Inline struct{}

func (Inline) Name() string { return "Inline SVGs" }

func (Inline) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	s := &scope{root: env.Page.Doc, source: asset.SourceInline, styles: env.Styles, sess: env.session()}
	return s.inline(), nil
}
