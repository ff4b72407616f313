package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/svgscout/internal/fetch"
)

func TestParse_TitleBaseAndSheets(t *testing.T) {
	markup := `<!doctype html>
    <html>
      <head>
        <title>  Icon
          Gallery </title>
        <base href="https://cdn.test/assets/">
        <style>.a{background:url(a.svg)}</style>
        <link rel="stylesheet" href="theme.css">
        <link rel="alternate stylesheet" href="alt.css">
      </head>
      <body><svg><style>.b{fill:red}</style></svg></body>
    </html>`
	p, err := ParseString(markup, "https://site.test/page/index.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Title != "Icon Gallery" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if got := p.Resolve("x/y.svg"); got != "https://cdn.test/assets/x/y.svg" {
		t.Fatalf("expected base href to win, got %q", got)
	}
	if len(p.Sheets) != 3 {
		t.Fatalf("expected 3 sheets, got %d", len(p.Sheets))
	}
	if p.Sheets[1].Href != "https://cdn.test/assets/theme.css" || !p.Sheets[1].Linked {
		t.Fatalf("unexpected linked sheet %+v", p.Sheets[1])
	}
	if !strings.Contains(p.Sheets[2].Text, "fill:red") {
		t.Fatalf("expected svg style block to be collected")
	}
}

func TestParse_DecodesDeclaredCharset(t *testing.T) {
	// "Café" in ISO-8859-1
	input := []byte("<html><head><title>Caf\xe9</title></head><body></body></html>")
	p, err := Parse(input, "text/html; charset=iso-8859-1", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Title != "Café" {
		t.Fatalf("unexpected title %q", p.Title)
	}
}

func TestWalk_SkipsTemplateContent(t *testing.T) {
	p, err := ParseString(`<body><svg id="a"></svg><template><svg id="b"></svg></template></body>`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	svgs := Elements(p.Doc, "svg")
	if len(svgs) != 1 {
		t.Fatalf("expected only the live svg, got %d", len(svgs))
	}
	if FindByID(p.Doc, "b") != nil {
		t.Fatalf("id lookup must not see template content")
	}
	tmpl := Elements(p.Doc, "template")[0]
	if len(Elements(tmpl, "svg")) != 1 {
		t.Fatalf("walking from the template itself should see its content")
	}
}

func TestClone_IsDeepAndDetached(t *testing.T) {
	p, _ := ParseString(`<svg viewBox="0 0 1 1"><g><path d="M0 0"/></g></svg>`, "")
	orig := Elements(p.Doc, "svg")[0]
	c := Clone(orig)
	if c.Parent != nil {
		t.Fatalf("clone should be detached")
	}
	SetAttr(c, "viewBox", "0 0 2 2")
	if v, _ := Attr(orig, "viewBox"); v != "0 0 1 1" {
		t.Fatalf("clone shares attributes with original")
	}
	if len(Elements(c, "path")) != 1 {
		t.Fatalf("expected nested children to be cloned")
	}
}

func TestSerialize_DeclaresXlink(t *testing.T) {
	p, _ := ParseString(`<svg><use xlink:href="#a"></use></svg>`, "")
	s, err := Serialize(Elements(p.Doc, "svg")[0])
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.Contains(s, `xmlns:xlink="http://www.w3.org/1999/xlink"`) || !strings.Contains(s, `xlink:href="#a"`) {
		t.Fatalf("unexpected markup %s", s)
	}
	if v, ok := Href(Elements(p.Doc, "use")[0]); !ok || v != "#a" {
		t.Fatalf("expected xlink href lookup, got %q", v)
	}
}

func TestLoader_FetchesLinkedStylesheets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>T</title><link rel="stylesheet" href="/s.css"><link rel="stylesheet" href="/missing.css"></head><body></body></html>`))
	})
	mux.HandleFunc("/s.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`.x{mask:url(m.svg)}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := &Loader{Fetch: &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}}
	p, err := l.Load(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(p.Sheets))
	}
	if p.Sheets[0].Text != `.x{mask:url(m.svg)}` {
		t.Fatalf("unexpected sheet text %q", p.Sheets[0].Text)
	}
	if p.Sheets[1].Text != "" {
		t.Fatalf("missing sheet should stay empty")
	}
}

func TestLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "site.css"), []byte(`.i{cursor:url(c.svg),auto}`), 0o644); err != nil {
		t.Fatal(err)
	}
	pagePath := filepath.Join(dir, "index.html")
	if err := os.WriteFile(pagePath, []byte(`<link rel="stylesheet" href="site.css"><p>hi</p>`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := (&Loader{}).Load(context.Background(), pagePath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(p.URL, "file://") {
		t.Fatalf("expected file url, got %q", p.URL)
	}
	if len(p.Sheets) != 1 || !strings.Contains(p.Sheets[0].Text, "cursor") {
		t.Fatalf("expected local stylesheet to be read: %+v", p.Sheets)
	}
	if got, ok := LocalPath(p.Resolve("c.svg")); !ok || got != filepath.Join(dir, "c.svg") {
		t.Fatalf("unexpected local path %q", got)
	}
}
