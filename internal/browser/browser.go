// Package browser loads pages through headless Chrome so detectors see the
// live DOM: script-built markup, open shadow roots and, when enabled, closed
// shadow roots reached through the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/page"
)

// Config configures the Chrome session.
type Config struct {
	// ControlURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local headless instance.
	ControlURL string
	// ClosedShadowRoots pierces closed roots and attaches them to the
	// snapshot as <template shadowrootmode="closed">.
	ClosedShadowRoots bool
	// Stealth hides the usual automation fingerprints.
	Stealth bool
	// Timeout bounds navigation plus load. Default 30s.
	Timeout time.Duration
	// IdleWait is how long the page must stay idle after load. Default 1s.
	IdleWait time.Duration
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.IdleWait <= 0 {
		c.IdleWait = time.Second
	}
}

// Loader owns one Chrome connection, started on first use.
type Loader struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New returns a Loader. Chrome is not contacted until Load.
func New(cfg Config) *Loader {
	cfg.defaults()
	return &Loader{cfg: cfg}
}

func (l *Loader) start() (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != nil {
		return l.browser, nil
	}
	wsURL := l.cfg.ControlURL
	if wsURL == "" {
		lnch := launcher.New().Headless(true)
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		l.lnch = lnch
		log.Debug().Str("url", wsURL).Msg("launched local chrome")
	}
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	l.browser = b
	return b, nil
}

// Close shuts the Chrome connection and any launched process.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup()
	return nil
}

func (l *Loader) cleanup() {
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			log.Debug().Err(err).Msg("browser close")
		}
		l.browser = nil
	}
	if l.lnch != nil {
		l.lnch.Cleanup()
		l.lnch = nil
	}
}

// Load navigates to target, waits for the page to settle and returns a
// snapshot of the live DOM. SVG responses seen during the visit become
// Page.Resources.
func (l *Loader) Load(ctx context.Context, target string) (*page.Page, error) {
	b, err := l.start()
	if err != nil {
		return nil, err
	}
	var tab *rod.Page
	if l.cfg.Stealth {
		tab, err = stealth.Page(b)
	} else {
		tab, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("tab close")
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	tab = tab.Context(navCtx)

	rec := &recorder{}
	if err := (proto.NetworkEnable{}).Call(tab); err != nil {
		log.Debug().Err(err).Msg("network events unavailable")
	} else {
		wait := tab.EachEvent(func(e *proto.NetworkResponseReceived) {
			if e.Response != nil {
				rec.observe(e.Response.URL, e.Response.MIMEType)
			}
		})
		go wait()
	}

	if err := tab.Navigate(target); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", target, err)
	}
	if err := tab.WaitLoad(); err != nil {
		log.Warn().Err(err).Str("url", target).Msg("wait load")
	}
	if err := tab.WaitIdle(l.cfg.IdleWait); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Debug().Err(err).Str("url", target).Msg("wait idle")
	}

	var closed map[string]string
	if l.cfg.ClosedShadowRoots {
		closed, err = markClosedRoots(tab)
		if err != nil {
			log.Warn().Err(err).Str("url", target).Msg("closed shadow roots unavailable")
		}
	}
	res, err := tab.Eval(serializeJS)
	if err != nil {
		return nil, fmt.Errorf("browser: serialize: %w", err)
	}
	finalURL := target
	if info, err := tab.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	p, err := page.ParseString(res.Value.Str(), finalURL)
	if err != nil {
		return nil, err
	}
	if n := attachClosedRoots(p.Doc, closed); n > 0 {
		log.Debug().Int("roots", n).Msg("attached closed shadow roots")
	}
	p.Resources = rec.urls()
	log.Info().Str("url", finalURL).Int("resources", len(p.Resources)).Msg("live dom captured")
	return p, nil
}

// recorder collects SVG response URLs in arrival order.
type recorder struct {
	mu   sync.Mutex
	seen map[string]bool
	list []string
}

func (r *recorder) observe(url, mime string) {
	if !isSVGResponse(url, mime) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[url] {
		return
	}
	r.seen[url] = true
	r.list = append(r.list, url)
}

func (r *recorder) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.list...)
}

func isSVGResponse(url, mime string) bool {
	if strings.HasPrefix(strings.ToLower(url), "data:") {
		return false
	}
	if strings.Contains(strings.ToLower(mime), "svg") {
		return true
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".svg") || strings.HasSuffix(u, ".svgz")
}
