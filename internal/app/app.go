// Package app wires configuration, page loading, scanning, export and
// persistence into the operations the CLI and HTTP API expose.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/browser"
	"github.com/hyperifyio/svgscout/internal/cache"
	"github.com/hyperifyio/svgscout/internal/detect"
	"github.com/hyperifyio/svgscout/internal/export"
	"github.com/hyperifyio/svgscout/internal/fetch"
	"github.com/hyperifyio/svgscout/internal/helper"
	"github.com/hyperifyio/svgscout/internal/page"
	"github.com/hyperifyio/svgscout/internal/robots"
	"github.com/hyperifyio/svgscout/internal/scan"
	"github.com/hyperifyio/svgscout/internal/store"
)

// maxBodyBytes caps pages, stylesheets and referenced SVGs.
const maxBodyBytes = 32 << 20

var (
	// ErrNoStore is returned by LastScan when persistence is disabled.
	ErrNoStore = errors.New("result store not configured")
	// ErrNotSVG is returned by FetchAsset for content that is not SVG.
	ErrNotSVG = errors.New("not an svg document")
)

type App struct {
	cfg       Config
	httpCache *cache.HTTPCache
	client    *fetch.Client
	relay     *fetch.Client
	loader    *page.Loader
	robots    *robots.Guard
	browser   *browser.Loader
	helper    *helper.Adapter
	exporter  *export.Exporter
	store     *store.Store
}

// Result is one completed scan.
type Result struct {
	PageURL   string        `json:"pageUrl"`
	PageTitle string        `json:"pageTitle"`
	Items     []asset.Asset `json:"items"`
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}
	if cfg.CacheDir != "" {
		// Cache maintenance is best effort; a broken cache only costs refetches.
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged expired cache entries")
			}
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxCount > 0 {
			if n, err := cache.EnforceHTTPCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxCount); err != nil {
				log.Warn().Err(err).Msg("cache eviction failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("evicted cache entries")
			}
		}
		a.httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	hc := newHTTPClient(2 * cfg.FetchTimeout)
	a.client = a.newFetchClient(hc, nil)
	var limiter *rate.Limiter
	if cfg.RelayRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RelayRPS), max(cfg.RelayBurst, 1))
	}
	a.relay = a.newFetchClient(hc, limiter)
	a.loader = &page.Loader{Fetch: a.client}
	if cfg.RespectRobots {
		a.robots = &robots.Guard{Fetch: a.client, UserAgent: cfg.UserAgent}
	}

	if cfg.Browser {
		a.browser = browser.New(browser.Config{
			ControlURL:        cfg.BrowserURL,
			ClosedShadowRoots: cfg.ClosedShadowRoots,
			Stealth:           cfg.BrowserStealth,
			Timeout:           cfg.BrowserTimeout,
		})
	}

	var backend export.Backend = export.Direct{}
	switch strings.ToLower(strings.TrimSpace(cfg.HelperMode)) {
	case HelperInProcess:
		a.helper = helper.NewAdapter(helper.InProcess{})
	case HelperSubprocess:
		a.helper = helper.NewAdapter(helper.Subprocess{})
	}
	if a.helper != nil {
		backend = a.helper
	}
	a.exporter = &export.Exporter{Backend: backend, Settings: a.Settings}

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
	}
	log.Debug().Str("helper", cfg.HelperMode).Bool("browser", cfg.Browser).Bool("cache", a.httpCache != nil).Bool("store", a.store != nil).Msg("app ready")
	return a, nil
}

func (a *App) newFetchClient(hc *http.Client, limiter *rate.Limiter) *fetch.Client {
	return &fetch.Client{
		HTTPClient:        hc,
		UserAgent:         a.cfg.UserAgent,
		MaxAttempts:       a.cfg.FetchAttempts,
		PerRequestTimeout: a.cfg.FetchTimeout,
		Cache:             a.httpCache,
		RedirectMaxHops:   5,
		MaxConcurrent:     a.cfg.MaxConcurrent,
		Limiter:           limiter,
		MaxBodyBytes:      maxBodyBytes,
		// bypass when the user forces a clear without an age policy
		BypassCache: a.cfg.CacheMaxAge == 0 && a.cfg.CacheClear,
	}
}

// Close releases the helper context, the browser and the store.
func (a *App) Close() {
	if a.helper != nil {
		if err := a.helper.Close(); err != nil {
			log.Debug().Err(err).Msg("helper close")
		}
	}
	if a.browser != nil {
		_ = a.browser.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Debug().Err(err).Msg("store close")
		}
	}
}

// Config returns the resolved configuration.
func (a *App) Config() Config { return a.cfg }

// Exporter returns the configured exporter.
func (a *App) Exporter() *export.Exporter { return a.exporter }

// Settings are the export defaults. The exporter calls this on every export.
func (a *App) Settings() export.Settings {
	format, err := archive.ParseFormat(a.cfg.ArchiveFormat)
	if err != nil {
		format = archive.FormatZip
	}
	return export.Settings{
		Scale:        a.cfg.Scale,
		Background:   a.cfg.Background,
		ArchiveType:  format,
		ContactSheet: a.cfg.ContactSheet,
	}
}

// LoadPage reads target, an http(s) URL or a file path, through the browser
// when enabled and otherwise as static markup.
func (a *App) LoadPage(ctx context.Context, target string) (*page.Page, error) {
	if a.robots != nil && isRemote(target) {
		if err := a.robots.Check(ctx, strings.TrimSpace(target)); err != nil {
			return nil, err
		}
	}
	if a.browser == nil {
		return a.loader.Load(ctx, target)
	}
	u := target
	if !isRemote(target) {
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, err
		}
		u = page.FileURL(abs)
	}
	p, err := a.browser.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	a.loader.LoadSheets(ctx, p)
	return p, nil
}

// Scan loads target and runs every detector over it. progress may be nil.
// With a store configured the result replaces the previously saved scan.
func (a *App) Scan(ctx context.Context, target string, progress func(scan.Progress)) (Result, error) {
	p, err := a.LoadPage(ctx, target)
	if err != nil {
		return Result{}, err
	}
	env := detect.NewEnv(p, &detect.Resolver{
		Direct: detect.NewPageFetcher(a.client, p),
		Relay:  &detect.ClientRelay{Client: a.relay},
	})
	env.ClosedShadowRoots = a.cfg.ClosedShadowRoots
	s := scan.New(env)
	s.Progress = progress
	items, err := s.Scan(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{PageURL: p.URL, PageTitle: p.Title, Items: items}
	if a.store != nil {
		if err := a.store.SaveScan(ctx, res.PageURL, res.PageTitle, res.Items); err != nil {
			log.Warn().Err(err).Msg("scan not saved")
		}
	}
	return res, nil
}

// LastScan returns the saved scan.
func (a *App) LastScan(ctx context.Context) (Result, error) {
	if a.store == nil {
		return Result{}, ErrNoStore
	}
	s, err := a.store.LastScan(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{PageURL: s.PageURL, PageTitle: s.PageTitle, Items: s.Items}, nil
}

// FetchAsset retrieves a single SVG by URL through the relay, for exporting
// an image that was never part of a scan.
func (a *App) FetchAsset(ctx context.Context, url string) (asset.Asset, error) {
	sess := (&detect.Resolver{Relay: &detect.ClientRelay{Client: a.relay}}).Session(nil)
	content, ok := sess.Load(ctx, url)
	if !ok {
		return asset.Asset{}, fmt.Errorf("fetch %s: unavailable", url)
	}
	it, ok := asset.New(content, asset.SourceImage, url)
	if !ok {
		return asset.Asset{}, fmt.Errorf("fetch %s: %w", url, ErrNotSVG)
	}
	return it, nil
}

func isRemote(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
