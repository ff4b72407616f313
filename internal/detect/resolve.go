package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/fetch"
	"github.com/hyperifyio/svgscout/internal/page"
)

// Fetcher retrieves a document the way the page itself could.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Relay is the privileged retrieval path used when direct retrieval fails,
// for example because of a cross-origin restriction.
type Relay interface {
	FetchExternal(ctx context.Context, url string) (string, error)
}

// ErrCrossOrigin is returned by PageFetcher for references outside the page origin.
var ErrCrossOrigin = errors.New("cross-origin request blocked")

// maxInflated bounds gzip-compressed (.svgz) payloads after decompression.
const maxInflated = 32 << 20

// Resolver combines direct retrieval with relay fallback.
type Resolver struct {
	Direct Fetcher
	Relay  Relay
}

// Session returns a per-detector view that attempts each reference once.
// A nil Resolver yields a session that only decodes data URIs.
func (r *Resolver) Session(p *page.Page) *Session {
	return &Session{r: r, page: p, seen: make(map[string]struct{}), bodies: make(map[string]string)}
}

func (r *Resolver) load(ctx context.Context, abs string) (string, error) {
	if r == nil {
		return "", errors.New("no resolver configured")
	}
	var directErr error
	if r.Direct != nil {
		body, err := r.Direct.Fetch(ctx, abs)
		if err == nil {
			return body, nil
		}
		directErr = err
		log.Debug().Err(err).Str("url", abs).Msg("direct fetch failed; trying relay")
	}
	if r.Relay == nil {
		if directErr == nil {
			directErr = errors.New("no fetch path configured")
		}
		return "", directErr
	}
	body, err := r.Relay.FetchExternal(ctx, abs)
	if err != nil {
		return "", fmt.Errorf("relay: %w", err)
	}
	return body, nil
}

// Session tracks which references one detector run has already attempted.
type Session struct {
	r      *Resolver
	page   *page.Page
	seen   map[string]struct{}
	bodies map[string]string
}

// Absolute resolves ref against the page base.
func (s *Session) Absolute(ref string) string {
	if s.page == nil {
		return ref
	}
	return s.page.Resolve(ref)
}

func (s *Session) key(ref string) string {
	if asset.IsSVGDataURI(ref) {
		return ref
	}
	return s.Absolute(ref)
}

// Load returns the markup behind ref, which may be an SVG data URI or a
// URL relative to the page. The second result is false when ref was already
// attempted in this session or could not be loaded; failures are logged.
func (s *Session) Load(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	key := s.key(ref)
	if _, dup := s.seen[key]; dup {
		return "", false
	}
	return s.retrieve(ctx, key)
}

// Document is Load for references that are consulted repeatedly, such as a
// sprite sheet addressed by several fragments: the first successful result
// is returned again instead of being suppressed.
func (s *Session) Document(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	key := s.key(ref)
	if body, ok := s.bodies[key]; ok {
		return body, true
	}
	if _, dup := s.seen[key]; dup {
		return "", false
	}
	return s.retrieve(ctx, key)
}

func (s *Session) retrieve(ctx context.Context, key string) (string, bool) {
	s.seen[key] = struct{}{}
	if asset.IsSVGDataURI(key) {
		content, err := asset.DecodeDataURI(key)
		if err != nil {
			log.Debug().Err(err).Msg("undecodable svg data uri")
			return "", false
		}
		s.bodies[key] = content
		return content, true
	}
	body, err := s.r.load(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("url", key).Msg("svg reference unavailable")
		return "", false
	}
	body, err = inflate(body)
	if err != nil {
		log.Debug().Err(err).Str("url", key).Msg("svgz payload unreadable")
		return "", false
	}
	s.bodies[key] = body
	return body, true
}

// inflate transparently decompresses gzip payloads such as .svgz files
// served without a Content-Encoding header.
func inflate(body string) (string, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	defer zr.Close()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return "", err
	}
	if n > maxInflated {
		return "", fmt.Errorf("inflated payload exceeds %d bytes", maxInflated)
	}
	return buf.String(), nil
}

// PageFetcher retrieves same-origin resources only, like a script running in
// the page. File pages may read sibling files.
type PageFetcher struct {
	Client *fetch.Client
	Origin *url.URL
}

// NewPageFetcher scopes retrieval to the origin of p.
func NewPageFetcher(c *fetch.Client, p *page.Page) *PageFetcher {
	var origin *url.URL
	if p != nil && p.URL != "" {
		origin, _ = url.Parse(p.URL)
	}
	return &PageFetcher{Client: c, Origin: origin}
}

func (f *PageFetcher) Fetch(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if f.Origin == nil || !sameOrigin(u, f.Origin) {
		return "", ErrCrossOrigin
	}
	if u.Scheme == "file" {
		path, _ := page.LocalPath(raw)
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if f.Client == nil {
		return "", errors.New("no http client configured")
	}
	b, _, err := f.Client.GetAs(ctx, raw, nil)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sameOrigin(a, b *url.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	if strings.EqualFold(a.Scheme, "file") {
		return true
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}

// ClientRelay fetches through the shared HTTP client, which carries the
// on-disk cache, retry policy and rate limiter.
type ClientRelay struct {
	Client *fetch.Client
}

func (r *ClientRelay) FetchExternal(ctx context.Context, raw string) (string, error) {
	if r.Client == nil {
		return "", errors.New("relay has no client")
	}
	b, _, err := r.Client.GetAs(ctx, raw, nil)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
