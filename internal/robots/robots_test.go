package robots

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyperifyio/svgscout/internal/cache"
	"github.com/hyperifyio/svgscout/internal/fetch"
)

func TestParse_GroupsAndComments(t *testing.T) {
	r := Parse("# site rules\nUser-agent: svgscout\nUser-agent: other\nDisallow: /private # inline\n\nUser-agent: *\nAllow: /\nCrawl-delay: 3\n")
	if len(r.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(r.Groups))
	}
	if got := r.Groups[0].Agents; len(got) != 2 || got[0] != "svgscout" {
		t.Fatalf("unexpected agents %v", got)
	}
	if got := r.Groups[0].Disallow[0]; got != "/private" {
		t.Fatalf("expected comment stripped, got %q", got)
	}
}

func TestIsAllowed_Precedence(t *testing.T) {
	r := Parse(`User-agent: *
Disallow: /icons/
Allow: /icons/public/
Disallow: /*.php$

User-agent: svgscout
Disallow: /drafts
`)
	cases := []struct {
		ua, path string
		want     bool
	}{
		{"crawler/1.0", "/icons/a.svg", false},
		{"crawler/1.0", "/icons/public/a.svg", true},
		{"crawler/1.0", "/index.php", false},
		{"crawler/1.0", "/index.php?x=1", true},
		{"svgscout/1.0", "/icons/a.svg", true},
		{"svgscout/1.0", "/drafts/page", false},
		{"crawler/1.0", "/", true},
	}
	for _, c := range cases {
		if got := r.IsAllowed(c.ua, c.path); got != c.want {
			t.Fatalf("IsAllowed(%q, %q) = %v, want %v", c.ua, c.path, got, c.want)
		}
	}
	if !r.IsAllowed("x", "/") || !(Rules{}).IsAllowed("x", "/anything") {
		t.Fatalf("empty rules should allow")
	}
}

func TestGuard_FetchesOncePerOrigin(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	t.Cleanup(srv.Close)

	g := &Guard{
		Fetch:     &fetch.Client{HTTPClient: srv.Client(), Cache: &cache.HTTPCache{Dir: t.TempDir()}},
		UserAgent: "svgscout-test/1.0",
	}
	ctx := context.Background()
	if err := g.Check(ctx, srv.URL+"/docs/"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := g.Check(ctx, srv.URL+"/private/page"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected one robots fetch, got %d", n)
	}
	if err := g.Check(ctx, "file:///tmp/page.html"); err != nil {
		t.Fatalf("local files are never checked, got %v", err)
	}
}

func TestGuard_MissingAndServerError(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	newGuard := func() *Guard {
		return &Guard{Fetch: &fetch.Client{HTTPClient: srv.Client(), MaxAttempts: 1}}
	}
	if err := newGuard().Check(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("missing robots.txt should allow, got %v", err)
	}
	status = http.StatusServiceUnavailable
	if err := newGuard().Check(context.Background(), srv.URL+"/"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("server error should deny, got %v", err)
	}
}
