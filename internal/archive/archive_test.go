package archive

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/render"
)

func mustAsset(t *testing.T, raw string, src asset.Source, sourceURL string) asset.Asset {
	t.Helper()
	a, ok := asset.New(raw, src, sourceURL)
	if !ok {
		t.Fatalf("invalid asset %q", raw)
	}
	return a
}

func zipNames(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func fiveAssets(t *testing.T) []asset.Asset {
	var items []asset.Asset
	for _, c := range []string{"#f00", "#0f0", "broken", "#00f", "#ff0"} {
		items = append(items, mustAsset(t, `<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"><rect width="4" height="4" fill="`+c+`"/></svg>`, asset.SourceInline, ""))
	}
	return items
}

func TestBuild_PartialRasterFailure(t *testing.T) {
	b := &Builder{Render: func(req render.Request) (render.Result, error) {
		if strings.Contains(req.Content, "broken") {
			return render.Result{}, errors.New("decode failed")
		}
		return render.Render(req)
	}}
	res, err := b.Build(Spec{Items: fiveAssets(t), IncludeRaster: true, Scale: 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Vector != 5 || res.Raster != 4 {
		t.Fatalf("expected 5 vector and 4 raster entries, got %d/%d", res.Vector, res.Raster)
	}
	files := zipNames(t, res.Data)
	var svgs, pngs int
	for name := range files {
		switch {
		case strings.HasPrefix(name, "svg/"):
			svgs++
		case strings.HasPrefix(name, "png/"):
			pngs++
		}
	}
	if svgs != 5 || pngs != 4 {
		t.Fatalf("expected 5 svg and 4 png files, got %d/%d", svgs, pngs)
	}
	if _, ok := files["png/svg-3-2x.png"]; ok {
		t.Fatalf("failed render should have no png entry")
	}
	if _, ok := files["png/svg-1-2x.png"]; !ok {
		t.Fatalf("expected png/svg-1-2x.png")
	}
	if res.FileName != "svg-export.zip" || res.MimeType != "application/zip" {
		t.Fatalf("unexpected name %q type %q", res.FileName, res.MimeType)
	}

	var man manifest
	if err := json.Unmarshal(files["manifest.json"], &man); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(man.Items) != 5 || man.Items[2].Raster != "" || man.Items[0].Raster != "png/svg-1-2x.png" {
		t.Fatalf("unexpected manifest %+v", man.Items)
	}
	if len(man.Items[0].SHA256) != 64 {
		t.Fatalf("expected hex sha256, got %q", man.Items[0].SHA256)
	}
}

func TestBuild_NamesFromTitleAndSources(t *testing.T) {
	items := []asset.Asset{
		mustAsset(t, `<svg xmlns="http://www.w3.org/2000/svg"><g/></svg>`, asset.SourceImage, "https://a.test/x/logo.svg"),
		mustAsset(t, `<svg xmlns="http://www.w3.org/2000/svg"><path/></svg>`, asset.SourceImage, "https://b.test/y/logo.svg"),
		mustAsset(t, `<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`, asset.SourceInline, ""),
	}
	res, err := Build(Spec{Items: items, PageTitle: "My Page"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	files := zipNames(t, res.Data)
	var names []string
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	want := []string{"manifest.json", "svg/my-page-logo-2.svg", "svg/my-page-logo.svg", "svg/my-page-svg-3.svg"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected entries %v", names)
	}
	if res.FileName != "my-page-svgs.zip" {
		t.Fatalf("unexpected archive name %q", res.FileName)
	}
}

func TestBuild_TarGzWithContactSheet(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &Builder{Now: func() time.Time { return fixed }}
	res, err := b.Build(Spec{Items: fiveAssets(t)[:2], Format: FormatTarGz, ContactSheet: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.FileName != "svg-export.tar.gz" {
		t.Fatalf("unexpected name %q", res.FileName)
	}
	zr, err := gzip.NewReader(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(zr)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		if !hdr.ModTime.Equal(fixed) {
			t.Fatalf("expected fixed mod time, got %v", hdr.ModTime)
		}
		names = append(names, hdr.Name)
		if hdr.Name == "contact-sheet.pdf" {
			b, _ := io.ReadAll(tr)
			model.ConfigPath = "disable"
			ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), model.NewDefaultConfiguration())
			if err != nil {
				t.Fatalf("contact sheet is not a valid pdf: %v", err)
			}
			if ctx.PageCount != 1 {
				t.Fatalf("expected a single sheet page, got %d", ctx.PageCount)
			}
		}
	}
	want := "svg/svg-1.svg,svg/svg-2.svg,manifest.json,contact-sheet.pdf"
	if strings.Join(names, ",") != want {
		t.Fatalf("unexpected entries %v", names)
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(Spec{}); err == nil {
		t.Fatalf("expected error for empty archive")
	}
	if _, err := Build(Spec{Items: fiveAssets(t), IncludeRaster: true}); err == nil {
		t.Fatalf("expected error for missing scale")
	}
	if _, err := ParseFormat("rar"); err == nil {
		t.Fatalf("expected unsupported format")
	}
}

func TestNameSet(t *testing.T) {
	s := newNameSet()
	got := []string{s.claim("a.svg"), s.claim("a.svg"), s.claim("a.svg"), s.claim("b")}
	want := []string{"a.svg", "a-2.svg", "a-3.svg", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
