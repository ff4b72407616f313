package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/render"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Export struct {
		Scale         int    `yaml:"scale" json:"scale"`
		Background    string `yaml:"background" json:"background"`
		IncludeRaster bool   `yaml:"includeRaster" json:"includeRaster"`
		Format        string `yaml:"format" json:"format"`
		ContactSheet  bool   `yaml:"contactSheet" json:"contactSheet"`
	} `yaml:"export" json:"export"`

	Fetch struct {
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		Attempts      int           `yaml:"attempts" json:"attempts"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
		RelayRPS      float64       `yaml:"relayRPS" json:"relayRPS"`
		RelayBurst    int           `yaml:"relayBurst" json:"relayBurst"`
		RespectRobots bool          `yaml:"respectRobots" json:"respectRobots"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int           `yaml:"maxCount" json:"maxCount"`
	} `yaml:"cache" json:"cache"`

	Browser struct {
		Enable            bool          `yaml:"enable" json:"enable"`
		ControlURL        string        `yaml:"controlURL" json:"controlURL"`
		ClosedShadowRoots bool          `yaml:"closedShadowRoots" json:"closedShadowRoots"`
		Stealth           bool          `yaml:"stealth" json:"stealth"`
		Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"browser" json:"browser"`

	Helper struct {
		Mode string `yaml:"mode" json:"mode"`
	} `yaml:"helper" json:"helper"`

	Store struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"store" json:"store"`

	Serve struct {
		Listen string `yaml:"listen" json:"listen"`
		Debug  bool   `yaml:"debug" json:"debug"`
	} `yaml:"serve" json:"serve"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. It is
// applied to the defaults, before environment and flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if v {
			*dst = true
		}
	}

	num(&cfg.Scale, fc.Export.Scale)
	str(&cfg.Background, fc.Export.Background)
	flag(&cfg.IncludeRaster, fc.Export.IncludeRaster)
	str(&cfg.ArchiveFormat, fc.Export.Format)
	flag(&cfg.ContactSheet, fc.Export.ContactSheet)

	str(&cfg.UserAgent, fc.Fetch.UserAgent)
	dur(&cfg.FetchTimeout, fc.Fetch.Timeout)
	num(&cfg.FetchAttempts, fc.Fetch.Attempts)
	num(&cfg.MaxConcurrent, fc.Fetch.MaxConcurrent)
	if fc.Fetch.RelayRPS != 0 {
		cfg.RelayRPS = fc.Fetch.RelayRPS
	}
	num(&cfg.RelayBurst, fc.Fetch.RelayBurst)
	flag(&cfg.RespectRobots, fc.Fetch.RespectRobots)

	str(&cfg.CacheDir, fc.Cache.Dir)
	dur(&cfg.CacheMaxAge, fc.Cache.MaxAge)
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)
	if fc.Cache.MaxBytes != 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	num(&cfg.CacheMaxCount, fc.Cache.MaxCount)

	flag(&cfg.Browser, fc.Browser.Enable)
	str(&cfg.BrowserURL, fc.Browser.ControlURL)
	flag(&cfg.ClosedShadowRoots, fc.Browser.ClosedShadowRoots)
	flag(&cfg.BrowserStealth, fc.Browser.Stealth)
	dur(&cfg.BrowserTimeout, fc.Browser.Timeout)

	str(&cfg.HelperMode, fc.Helper.Mode)
	str(&cfg.StorePath, fc.Store.Path)
	str(&cfg.Listen, fc.Serve.Listen)
	flag(&cfg.Debug, fc.Serve.Debug)
	flag(&cfg.Verbose, fc.Verbose)
}

// ValidateConfig rejects settings the exporter, helper or fetch layer
// cannot honor.
func ValidateConfig(cfg Config) error {
	switch cfg.Scale {
	case 1, 2, 4:
	default:
		return fmt.Errorf("config: export.scale must be 1, 2 or 4, got %d", cfg.Scale)
	}
	if _, _, err := render.ParseBackground(cfg.Background); err != nil {
		return fmt.Errorf("config: export.background: %w", err)
	}
	if _, err := archive.ParseFormat(cfg.ArchiveFormat); err != nil {
		return fmt.Errorf("config: export.format: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.HelperMode)) {
	case HelperInProcess, HelperSubprocess, HelperOff:
	default:
		return fmt.Errorf("config: helper.mode %q is not one of inprocess, subprocess, off", cfg.HelperMode)
	}
	if cfg.FetchAttempts < 0 || cfg.MaxConcurrent < 0 || cfg.RelayBurst < 0 || cfg.CacheMaxCount < 0 || cfg.CacheMaxBytes < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.RelayRPS < 0 {
		return errors.New("config: fetch.relayRPS must not be negative")
	}
	if cfg.FetchTimeout < 0 || cfg.BrowserTimeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	return nil
}
