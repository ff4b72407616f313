package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/export"
	"github.com/hyperifyio/svgscout/internal/robots"
	"github.com/hyperifyio/svgscout/internal/scan"
)

const logoSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M2 2h20v20H2z"/></svg>`

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>Fixture Page</title></head><body>
<svg viewBox="0 0 10 10"><circle cx="5" cy="5" r="5"/></svg>
<img src="/img/logo.svg" alt="">
</body></html>`)
		case "/img/logo.svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			fmt.Fprint(w, logoSVG)
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			fmt.Fprint(w, "\x89PNG not really")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.StorePath = filepath.Join(dir, "scan.db")
	cfg.RelayRPS = 0
	return cfg
}

func TestApp_ScanSavesAndExports(t *testing.T) {
	srv := fixtureServer(t)
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	var phases []string
	res, err := a.Scan(context.Background(), srv.URL+"/", func(p scan.Progress) { phases = append(phases, p.Phase) })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.PageTitle != "Fixture Page" || len(res.Items) != 2 {
		t.Fatalf("unexpected result %q with %d items", res.PageTitle, len(res.Items))
	}
	if res.Items[0].Source != asset.SourceInline || res.Items[1].Source != asset.SourceImage {
		t.Fatalf("unexpected order %s, %s", res.Items[0].Source, res.Items[1].Source)
	}
	if len(phases) == 0 || phases[len(phases)-1] != scan.PhaseComplete {
		t.Fatalf("expected progress ending in Complete, got %v", phases)
	}

	saved, err := a.LastScan(context.Background())
	if err != nil {
		t.Fatalf("last scan: %v", err)
	}
	if len(saved.Items) != 2 || saved.Items[1].ID != res.Items[1].ID {
		t.Fatalf("saved scan differs from result")
	}

	p, err := a.Exporter().ExportArchive(context.Background(), saved.Items, true, 0, saved.PageTitle)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if p.FileName != "fixture-page-svgs.zip" {
		t.Fatalf("unexpected archive name %q", p.FileName)
	}
	single, err := a.Exporter().ExportSingle(context.Background(), saved.Items[1], export.Format{Kind: export.KindRaster}, "")
	if err != nil {
		t.Fatalf("export single: %v", err)
	}
	if single.FileName != "logo-2x.png" {
		t.Fatalf("unexpected raster name %q", single.FileName)
	}
}

func TestApp_WithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorePath = ""
	cfg.HelperMode = HelperOff
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if _, err := a.LastScan(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, ok := a.Exporter().Backend.(export.Direct); !ok {
		t.Fatalf("expected direct backend with helper off")
	}
}

func TestApp_FetchAsset(t *testing.T) {
	srv := fixtureServer(t)
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	it, err := a.FetchAsset(context.Background(), srv.URL+"/img/logo.svg")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if it.Source != asset.SourceImage || it.Dimensions.Width != 24 {
		t.Fatalf("unexpected asset %+v", it)
	}
	if _, err := a.FetchAsset(context.Background(), srv.URL+"/photo.png"); !errors.Is(err, ErrNotSVG) {
		t.Fatalf("expected ErrNotSVG, got %v", err)
	}
	if _, err := a.FetchAsset(context.Background(), srv.URL+"/missing.svg"); err == nil {
		t.Fatalf("expected fetch failure")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scale = 8
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestApp_RespectRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<title>ok</title>`)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.RespectRobots = true
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if _, err := a.LoadPage(context.Background(), srv.URL+"/private/page"); !errors.Is(err, robots.ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
	if _, err := a.LoadPage(context.Background(), srv.URL+"/public"); err != nil {
		t.Fatalf("expected public page to load, got %v", err)
	}
}
