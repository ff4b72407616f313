package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/helper"
	"github.com/hyperifyio/svgscout/internal/render"
)

const icon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><circle cx="5" cy="5" r="4"/></svg>`

func mustAsset(t *testing.T, content string, src asset.Source, url string) asset.Asset {
	t.Helper()
	a, ok := asset.New(content, src, url)
	if !ok {
		t.Fatalf("invalid asset %q", content)
	}
	return a
}

type recordingBackend struct {
	Direct
	renders []render.Request
	specs   []archive.Spec
	fail    error
}

func (b *recordingBackend) Render(ctx context.Context, req render.Request) (render.Result, error) {
	b.renders = append(b.renders, req)
	if b.fail != nil {
		return render.Result{}, b.fail
	}
	return b.Direct.Render(ctx, req)
}

func (b *recordingBackend) BuildArchive(ctx context.Context, spec archive.Spec) (archive.Result, error) {
	b.specs = append(b.specs, spec)
	return b.Direct.BuildArchive(ctx, spec)
}

func TestExportSingle_Vector(t *testing.T) {
	e := &Exporter{}
	a := mustAsset(t, icon, asset.SourceImage, "https://site.test/img/logo.svg?v=2")
	p, err := e.ExportSingle(context.Background(), a, Format{Kind: KindVector}, "My Site")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if p.FileName != "my-site-logo.svg" || p.MimeType != "image/svg+xml" || string(p.Data) != a.Content {
		t.Fatalf("unexpected payload %q %q", p.FileName, p.MimeType)
	}
}

func TestExportSingle_RasterUsesSettingsAtExportTime(t *testing.T) {
	b := &recordingBackend{}
	current := Settings{Scale: 4, Background: "#ffffff"}
	e := &Exporter{Backend: b, Settings: func() Settings { return current }}
	a := mustAsset(t, icon, asset.SourceInline, "")

	p, err := e.ExportSingle(context.Background(), a, Format{Kind: KindRaster}, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if p.FileName != "svg-1-4x.png" || p.MimeType != "image/png" {
		t.Fatalf("unexpected payload %q %q", p.FileName, p.MimeType)
	}
	if got := b.renders[0]; got.Scale != 4 || got.Background != "#ffffff" {
		t.Fatalf("expected settings defaults, got %+v", got)
	}

	current = Settings{}
	if _, err := e.ExportSingle(context.Background(), a, Format{Kind: KindRaster}, ""); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := b.renders[1]; got.Scale != DefaultScale || got.Background != render.Transparent {
		t.Fatalf("expected built-in defaults, got %+v", got)
	}

	if _, err := e.ExportSingle(context.Background(), a, Format{Kind: KindRaster, Scale: 1, Background: "red"}, ""); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := b.renders[2]; got.Scale != 1 || got.Background != "red" {
		t.Fatalf("expected explicit values to win, got %+v", got)
	}
}

func TestExportSingle_RenderFailure(t *testing.T) {
	b := &recordingBackend{fail: errors.New("decode failed")}
	e := &Exporter{Backend: b}
	_, err := e.ExportSingle(context.Background(), mustAsset(t, icon, asset.SourceInline, ""), Format{Kind: KindRaster}, "")
	if err == nil || !strings.Contains(err.Error(), "decode failed") {
		t.Fatalf("expected render error, got %v", err)
	}
	if _, err := e.ExportSingle(context.Background(), asset.Asset{}, Format{Kind: "gif"}, ""); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestExportArchive_Defaults(t *testing.T) {
	b := &recordingBackend{}
	e := &Exporter{Backend: b, Settings: func() Settings { return Settings{Scale: 1} }}
	items := []asset.Asset{
		mustAsset(t, icon, asset.SourceInline, ""),
		mustAsset(t, `<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"/>`, asset.SourceInline, ""),
	}
	p, err := e.ExportArchive(context.Background(), items, true, 0, "")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if p.FileName != "svg-export.zip" || p.MimeType != "application/zip" {
		t.Fatalf("unexpected payload %q %q", p.FileName, p.MimeType)
	}
	if b.specs[0].Scale != 1 {
		t.Fatalf("expected settings scale, got %d", b.specs[0].Scale)
	}
	zr, err := zip.NewReader(bytes.NewReader(p.Data), int64(len(p.Data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"svg/svg-1.svg", "svg/svg-2.svg", "png/svg-1-1x.png", "png/svg-2-1x.png", "manifest.json"} {
		if !names[want] {
			t.Fatalf("missing %s in %v", want, names)
		}
	}
	if _, err := e.ExportArchive(context.Background(), nil, false, 0, ""); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestExporter_ThroughHelper(t *testing.T) {
	a := helper.NewAdapter(helper.InProcess{})
	defer a.Close()
	e := &Exporter{Backend: a}
	item := mustAsset(t, icon, asset.SourceInline, "")
	p, err := e.ExportSingle(context.Background(), item, Format{Kind: KindRaster, Scale: 2}, "Docs")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if p.FileName != "docs-svg-1-2x.png" || !bytes.HasPrefix(p.Data, []byte("\x89PNG")) {
		t.Fatalf("unexpected payload %q", p.FileName)
	}
	if _, err := e.ExportSingle(context.Background(), asset.Asset{Content: "<svg"}, Format{Kind: KindRaster}, ""); err == nil {
		t.Fatalf("expected helper render failure to surface")
	}
}
