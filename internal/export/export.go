// Package export turns discovered assets into downloadable payloads, either
// directly in this process or through the helper context.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/render"
)

// Kind selects the single-asset output.
type Kind string

const (
	KindVector Kind = "vector"
	KindRaster Kind = "raster"
)

// DefaultScale is used when neither the request nor the settings name one.
const DefaultScale = 2

// Format describes a single-asset export. Zero Scale and empty Background
// fall back to Settings.
type Format struct {
	Kind       Kind   `json:"kind" validate:"omitempty,oneof=vector raster"`
	Scale      int    `json:"scale,omitempty" validate:"omitempty,oneof=1 2 4"`
	Background string `json:"backgroundColor,omitempty"`
}

// Settings are the user defaults, read at export time only.
type Settings struct {
	Scale        int
	Background   string
	ArchiveType  archive.Format
	ContactSheet bool
}

// Payload is a named binary ready to be saved.
type Payload struct {
	FileName string
	MimeType string
	Data     []byte
}

// Backend performs the binary work. Direct runs it in process; the helper
// Adapter runs it in the delegated context.
type Backend interface {
	CreateBinary(ctx context.Context, content, mimeType string) ([]byte, error)
	Render(ctx context.Context, req render.Request) (render.Result, error)
	BuildArchive(ctx context.Context, spec archive.Spec) (archive.Result, error)
}

// Exporter applies naming and defaults on top of a Backend.
type Exporter struct {
	Backend Backend
	// Settings, when set, is consulted on every export.
	Settings func() Settings
}

// ErrNoItems is returned for an archive request without assets.
var ErrNoItems = errors.New("export: no items")

func (e *Exporter) settings() Settings {
	var s Settings
	if e.Settings != nil {
		s = e.Settings()
	}
	if s.Scale <= 0 {
		s.Scale = DefaultScale
	}
	if strings.TrimSpace(s.Background) == "" {
		s.Background = render.Transparent
	}
	return s
}

func (e *Exporter) backend() Backend {
	if e.Backend == nil {
		return Direct{}
	}
	return e.Backend
}

// ExportSingle produces the vector file or a PNG rendition of a.
func (e *Exporter) ExportSingle(ctx context.Context, a asset.Asset, f Format, pageTitle string) (Payload, error) {
	name := asset.FileName(a, 0, pageTitle)
	switch f.Kind {
	case KindVector, "":
		data, err := e.backend().CreateBinary(ctx, a.Content, "image/svg+xml")
		if err != nil {
			return Payload{}, fmt.Errorf("export vector: %w", err)
		}
		return Payload{FileName: name, MimeType: "image/svg+xml", Data: data}, nil
	case KindRaster:
		s := e.settings()
		scale := f.Scale
		if scale <= 0 {
			scale = s.Scale
		}
		bg := f.Background
		if strings.TrimSpace(bg) == "" {
			bg = s.Background
		}
		out, err := e.backend().Render(ctx, render.Request{Content: a.Content, Scale: float64(scale), Background: bg})
		if err != nil {
			return Payload{}, fmt.Errorf("export raster: %w", err)
		}
		log.Debug().Str("asset", a.ID).Int("width", out.Width).Int("height", out.Height).Msg("raster export")
		return Payload{FileName: asset.RasterFileName(name, scale), MimeType: "image/png", Data: out.PNG}, nil
	}
	return Payload{}, fmt.Errorf("export: unknown format %q", f.Kind)
}

// ExportArchive bundles items. A zero scale falls back to the settings.
func (e *Exporter) ExportArchive(ctx context.Context, items []asset.Asset, includeRaster bool, scale int, pageTitle string) (Payload, error) {
	if len(items) == 0 {
		return Payload{}, ErrNoItems
	}
	s := e.settings()
	if scale <= 0 {
		scale = s.Scale
	}
	out, err := e.backend().BuildArchive(ctx, archive.Spec{
		Items:         items,
		IncludeRaster: includeRaster,
		Scale:         scale,
		PageTitle:     pageTitle,
		Format:        s.ArchiveType,
		ContactSheet:  s.ContactSheet,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("export archive: %w", err)
	}
	return Payload{FileName: out.FileName, MimeType: out.MimeType, Data: out.Data}, nil
}

// Direct is the in-process Backend.
type Direct struct{}

func (Direct) CreateBinary(ctx context.Context, content, mimeType string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func (Direct) Render(ctx context.Context, req render.Request) (render.Result, error) {
	if err := ctx.Err(); err != nil {
		return render.Result{}, err
	}
	return render.Render(req)
}

func (Direct) BuildArchive(ctx context.Context, spec archive.Spec) (archive.Result, error) {
	if err := ctx.Err(); err != nil {
		return archive.Result{}, err
	}
	return archive.Build(spec)
}
