package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides overrides cfg fields whose environment variables are
// set. It runs after the config file and before explicit flags, so env sits
// between the two in precedence. Unparseable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
			}
		}
	}
	setString(&cfg.Background, "SVGSCOUT_BACKGROUND")
	setString(&cfg.ArchiveFormat, "SVGSCOUT_ARCHIVE_FORMAT")
	setString(&cfg.UserAgent, "SVGSCOUT_USER_AGENT")
	setString(&cfg.CacheDir, "CACHE_DIR", "SVGSCOUT_CACHE_DIR")
	setString(&cfg.BrowserURL, "SVGSCOUT_CHROME_URL")
	setString(&cfg.HelperMode, "SVGSCOUT_HELPER")
	setString(&cfg.StorePath, "SVGSCOUT_STORE")
	setString(&cfg.Listen, "SVGSCOUT_LISTEN")

	setInt := func(dst *int, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				*dst = n
			}
		}
	}
	setInt(&cfg.Scale, "SVGSCOUT_SCALE")
	setInt(&cfg.FetchAttempts, "SVGSCOUT_FETCH_ATTEMPTS")
	setInt(&cfg.RelayBurst, "SVGSCOUT_RELAY_BURST")
	setInt(&cfg.CacheMaxCount, "CACHE_MAX_COUNT")

	if s := strings.TrimSpace(os.Getenv("SVGSCOUT_RELAY_RPS")); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.RelayRPS = f
		}
	}
	if s := strings.TrimSpace(os.Getenv("CACHE_MAX_BYTES")); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.CacheMaxBytes = n
		}
	}

	setDuration := func(dst *time.Duration, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.FetchTimeout, "SVGSCOUT_FETCH_TIMEOUT")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.BrowserTimeout, "SVGSCOUT_BROWSER_TIMEOUT")

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.IncludeRaster, "SVGSCOUT_INCLUDE_RASTER")
	setBool(&cfg.ContactSheet, "SVGSCOUT_CONTACT_SHEET")
	setBool(&cfg.RespectRobots, "SVGSCOUT_RESPECT_ROBOTS")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.Browser, "SVGSCOUT_BROWSER")
	setBool(&cfg.ClosedShadowRoots, "SVGSCOUT_CLOSED_SHADOW")
	setBool(&cfg.BrowserStealth, "SVGSCOUT_STEALTH")
	setBool(&cfg.Debug, "SVGSCOUT_DEBUG")
	setBool(&cfg.Verbose, "VERBOSE")
}
