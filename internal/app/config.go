package app

import (
	"time"
)

// Helper modes.
const (
	HelperInProcess  = "inprocess"
	HelperSubprocess = "subprocess"
	HelperOff        = "off"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Export defaults, read at export time.
	Scale         int
	Background    string
	IncludeRaster bool
	ArchiveFormat string
	ContactSheet  bool

	// Fetch
	UserAgent     string
	FetchTimeout  time.Duration
	FetchAttempts int
	MaxConcurrent int
	RelayRPS      float64
	RelayBurst    int
	RespectRobots bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxCount    int

	// Browser
	Browser           bool
	BrowserURL        string
	ClosedShadowRoots bool
	BrowserStealth    bool
	BrowserTimeout    time.Duration

	HelperMode string
	StorePath  string
	Listen     string

	// Debug exposes runtime charts on the HTTP API.
	Debug bool

	Verbose bool
}

// Defaults used when neither flags, environment nor a config file say
// otherwise.
const (
	defaultScale      = 2
	defaultBackground = "transparent"
	defaultFormat     = "zip"
	defaultUserAgent  = "svgscout/1.0 (+https://github.com/hyperifyio/svgscout)"
	defaultCacheDir   = ".svgscout-cache"
	defaultListen     = "127.0.0.1:8089"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Scale:          defaultScale,
		Background:     defaultBackground,
		ArchiveFormat:  defaultFormat,
		UserAgent:      defaultUserAgent,
		FetchTimeout:   15 * time.Second,
		FetchAttempts:  2,
		MaxConcurrent:  8,
		RelayRPS:       4,
		RelayBurst:     4,
		CacheDir:       defaultCacheDir,
		BrowserTimeout: 30 * time.Second,
		HelperMode:     HelperInProcess,
		Listen:         defaultListen,
	}
}
