package app

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// BindFlags registers the shared settings on fs. Every flag defaults to the
// value currently held in cfg.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Scale, "scale", cfg.Scale, "Raster scale: 1, 2 or 4")
	fs.StringVar(&cfg.Background, "background", cfg.Background, "Raster background: hex color, CSS color name or transparent")
	fs.BoolVar(&cfg.IncludeRaster, "raster", cfg.IncludeRaster, "Include PNG renditions in archives")
	fs.StringVar(&cfg.ArchiveFormat, "archive.format", cfg.ArchiveFormat, "Archive container: zip or tar.gz")
	fs.BoolVar(&cfg.ContactSheet, "archive.contactSheet", cfg.ContactSheet, "Add a PDF contact sheet to archives")

	fs.StringVar(&cfg.UserAgent, "fetch.ua", cfg.UserAgent, "User-Agent for page and reference fetches")
	fs.DurationVar(&cfg.FetchTimeout, "fetch.timeout", cfg.FetchTimeout, "Per-request timeout")
	fs.IntVar(&cfg.FetchAttempts, "fetch.attempts", cfg.FetchAttempts, "Attempts per request including the first")
	fs.IntVar(&cfg.MaxConcurrent, "fetch.maxConcurrent", cfg.MaxConcurrent, "Concurrent requests per client (0 = unlimited)")
	fs.Float64Var(&cfg.RelayRPS, "relay.rps", cfg.RelayRPS, "Relay requests per second (0 = unlimited)")
	fs.IntVar(&cfg.RelayBurst, "relay.burst", cfg.RelayBurst, "Relay burst size")
	fs.BoolVar(&cfg.RespectRobots, "fetch.robots", cfg.RespectRobots, "Refuse to scan pages disallowed by robots.txt")

	fs.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "HTTP cache directory (empty disables)")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", cfg.CacheMaxAge, "Purge cache entries older than this; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", cfg.CacheClear, "Clear the cache before running")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", cfg.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&cfg.CacheMaxBytes, "cache.maxBytes", cfg.CacheMaxBytes, "Evict least recently used entries above this size; 0 disables")
	fs.IntVar(&cfg.CacheMaxCount, "cache.maxCount", cfg.CacheMaxCount, "Evict least recently used entries above this count; 0 disables")

	fs.BoolVar(&cfg.Browser, "browser", cfg.Browser, "Load pages through headless Chrome")
	fs.StringVar(&cfg.BrowserURL, "browser.url", cfg.BrowserURL, "DevTools WebSocket URL of a running Chrome")
	fs.BoolVar(&cfg.ClosedShadowRoots, "browser.closedShadow", cfg.ClosedShadowRoots, "Pierce closed shadow roots")
	fs.BoolVar(&cfg.BrowserStealth, "browser.stealth", cfg.BrowserStealth, "Hide automation fingerprints")
	fs.DurationVar(&cfg.BrowserTimeout, "browser.timeout", cfg.BrowserTimeout, "Navigation timeout")

	fs.StringVar(&cfg.HelperMode, "helper", cfg.HelperMode, "Helper context: inprocess, subprocess or off")
	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "SQLite file for the last scan (empty disables)")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address for serve")
	fs.BoolVar(&cfg.Debug, "serve.debug", cfg.Debug, "Expose runtime charts under /debug/statsviz/")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
}

// Load resolves configuration for one subcommand. Precedence from low to
// high: defaults, config file, environment, flags. extra registers
// subcommand flags and may be nil. The remaining positional arguments are
// returned.
func Load(name string, args []string, extra func(fs *flag.FlagSet)) (Config, []string, error) {
	var configPath, envFile string
	scratch := DefaultConfig()
	first := flag.NewFlagSet(name, flag.ContinueOnError)
	registerMeta(first, &configPath, &envFile)
	BindFlags(first, &scratch)
	if extra != nil {
		extra(first)
	}
	if err := first.Parse(args); err != nil {
		return Config{}, nil, err
	}

	if err := LoadEnvFiles(strings.Split(envFile, ",")...); err != nil {
		return Config{}, nil, fmt.Errorf("load env file: %w", err)
	}
	cfg := DefaultConfig()
	if strings.TrimSpace(configPath) != "" {
		fc, err := LoadConfigFile(configPath)
		if err != nil {
			return Config{}, nil, fmt.Errorf("load config file: %w", err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	ApplyEnvOverrides(&cfg)

	// Re-parse with the layered values as defaults so only flags that were
	// actually given win.
	second := flag.NewFlagSet(name, flag.ContinueOnError)
	second.SetOutput(io.Discard)
	registerMeta(second, &configPath, &envFile)
	BindFlags(second, &cfg)
	if extra != nil {
		extra(second)
	}
	if err := second.Parse(args); err != nil {
		return Config{}, nil, err
	}
	return cfg, second.Args(), nil
}

func registerMeta(fs *flag.FlagSet, configPath, envFile *string) {
	fs.StringVar(configPath, "config", os.Getenv("SVGSCOUT_CONFIG"), "YAML or JSON config file")
	fs.StringVar(envFile, "env", ".env", "Comma-separated dotenv files to load (missing files are skipped)")
}
