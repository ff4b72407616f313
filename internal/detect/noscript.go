package detect

import (
	"bytes"
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/page"
)

// Noscript parses the fallback markup of <noscript> elements and scans it
// for inline SVGs, image references, sprites and object or embed documents.
type Noscript struct{}

func (Noscript) Name() string { return "Noscript SVGs" }

func (Noscript) Detect(ctx context.Context, env *Env) ([]asset.Asset, error) {
	sess := env.session()
	var out []asset.Asset
	for _, ns := range page.Elements(env.Page.Doc, "noscript") {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		root, err := noscriptContent(ns)
		if err != nil {
			log.Debug().Err(err).Msg("noscript content unparseable")
			continue
		}
		s := &scope{root: root, source: asset.SourceNoscript, sess: sess}
		out = append(out, s.inline()...)
		out = append(out, s.raster(ctx)...)
		out = append(out, s.sprites(ctx)...)
		out = append(out, s.objects(ctx, true)...)
	}
	return out, nil
}

// noscriptContent returns the noscript fallback as a detached body element.
// With scripting enabled the parser keeps noscript content as raw text;
// otherwise it is already a subtree and is rendered back to markup first.
func noscriptContent(ns *html.Node) (*html.Node, error) {
	var markup string
	if ns.FirstChild != nil && ns.FirstChild.Type == html.TextNode && ns.FirstChild == ns.LastChild {
		markup = ns.FirstChild.Data
	} else {
		var buf bytes.Buffer
		for c := ns.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return nil, err
			}
		}
		markup = buf.String()
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if strings.TrimSpace(markup) == "" {
		return body, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}
