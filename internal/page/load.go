package page

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/fetch"
)

// Loader obtains pages from http(s) URLs or local files.
type Loader struct {
	Fetch *fetch.Client
	// SkipStylesheets disables fetching of linked stylesheets.
	SkipStylesheets bool
}

// Load reads target, which is either an http(s) URL or a file path, and
// parses it. Linked stylesheets are fetched best effort.
func (l *Loader) Load(ctx context.Context, target string) (*Page, error) {
	var (
		p   *Page
		err error
	)
	if isRemote(target) {
		if l.Fetch == nil {
			return nil, fmt.Errorf("load %s: no http client configured", target)
		}
		body, ct, ferr := l.Fetch.Get(ctx, target)
		if ferr != nil {
			return nil, fmt.Errorf("fetch page: %w", ferr)
		}
		p, err = Parse(body, ct, target)
	} else {
		p, err = l.loadFile(target)
	}
	if err != nil {
		return nil, err
	}
	l.LoadSheets(ctx, p)
	return p, nil
}

func (l *Loader) loadFile(path string) (*Page, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return Parse(b, "", FileURL(abs))
}

// LoadSheets fills in the text of linked stylesheets. Failures are logged and
// leave the sheet empty.
func (l *Loader) LoadSheets(ctx context.Context, p *Page) {
	if l.SkipStylesheets {
		return
	}
	for i := range p.Sheets {
		s := &p.Sheets[i]
		if !s.Linked || s.Text != "" {
			continue
		}
		text, err := l.readSheet(ctx, s.Href)
		if err != nil {
			log.Debug().Err(err).Str("url", s.Href).Msg("stylesheet unavailable")
			continue
		}
		s.Text = text
	}
}

func (l *Loader) readSheet(ctx context.Context, href string) (string, error) {
	if path, ok := LocalPath(href); ok {
		b, err := os.ReadFile(path)
		return string(b), err
	}
	if l.Fetch == nil {
		return "", fmt.Errorf("no http client configured")
	}
	b, _, err := l.Fetch.GetAs(ctx, href, fetch.CSSTypes)
	return string(b), err
}

// FileURL converts an absolute path into a file:// URL.
func FileURL(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// LocalPath returns the filesystem path of a file:// URL.
func LocalPath(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

func isRemote(target string) bool {
	t := strings.ToLower(target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
