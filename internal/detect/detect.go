// Package detect implements the extraction strategies that find SVG assets in
// a parsed page. Each Detector is independent; the scan package runs them in
// a fixed order and merges their findings.
package detect

import (
	"context"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
	"github.com/hyperifyio/svgscout/internal/style"
)

// Detector is one named extraction strategy.
type Detector interface {
	// Name is the progress phase label, for example "Inline SVGs".
	Name() string
	Detect(ctx context.Context, env *Env) ([]asset.Asset, error)
}

// Env is what a detector may look at.
type Env struct {
	Page   *page.Page
	Styles *style.Resolver
	// Resolver loads referenced documents. A nil Resolver limits detectors
	// to inline content and data URIs.
	Resolver *Resolver
	// ClosedShadowRoots grants access to shadow roots declared closed. Open
	// roots are always visited.
	ClosedShadowRoots bool
}

// NewEnv builds an Env with a style resolver derived from p.
func NewEnv(p *page.Page, r *Resolver) *Env {
	return &Env{Page: p, Styles: style.New(p), Resolver: r}
}

// All returns the detectors in scan order.
func All() []Detector {
	return []Detector{
		Inline{},
		Image{},
		ObjectEmbed{},
		CSS{},
		Sprite{},
		Shadow{},
		Favicon{},
		Template{},
		Noscript{},
		DataAttribute{},
		JSONScript{},
		Network{},
	}
}

// session returns a fresh per-run reference session.
func (e *Env) session() *Session {
	return e.Resolver.Session(e.Page)
}
