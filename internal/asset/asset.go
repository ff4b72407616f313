package asset

import (
	"github.com/rs/zerolog/log"
)

// Source identifies how an asset was embedded in or referenced by a page.
type Source string

const (
	SourceInline        Source = "inline"
	SourceImage         Source = "img"
	SourceCSSBackground Source = "css-background"
	SourceSprite        Source = "sprite"
	SourceFavicon       Source = "favicon"
	SourceShadowDOM     Source = "shadow-dom"
	SourceObjectEmbed   Source = "object-embed"
	SourceNetwork       Source = "network"
	SourceTemplate      Source = "template"
	SourceDataAttribute Source = "data-attribute"
	SourceNoscript      Source = "noscript"
	SourceJSONScript    Source = "json-script"
)

// Dimensions is the intrinsic size in SVG user units.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Asset is one discovered vector graphic. ID is derived from Content only,
// so two assets with identical markup are the same asset regardless of where
// they were found.
type Asset struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Source     Source     `json:"source"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	Dimensions Dimensions `json:"dimensions"`
	FileSize   int        `json:"fileSize"`
	Name       string     `json:"name,omitempty"`
}

// New normalizes raw markup and builds an Asset from it. The boolean is false
// when the normalized markup fails validation; such candidates are dropped
// by callers without further reporting.
func New(raw string, source Source, sourceURL string) (Asset, bool) {
	content := Normalize(raw)
	if !Validate(content) {
		log.Debug().Str("source", string(source)).Str("sourceUrl", sourceURL).Msg("dropping malformed svg candidate")
		return Asset{}, false
	}
	return Asset{
		ID:         Fingerprint(content),
		Content:    content,
		Source:     source,
		SourceURL:  sourceURL,
		Dimensions: Measure(content),
		FileSize:   len(content),
	}, true
}

// Dedup keeps the first occurrence of every ID and preserves input order.
func Dedup(items []Asset) []Asset {
	seen := make(map[string]struct{}, len(items))
	out := make([]Asset, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
