package app

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SVGSCOUT_CONFIG", "SVGSCOUT_SCALE", "SVGSCOUT_BACKGROUND", "SVGSCOUT_HELPER", "SVGSCOUT_RELAY_RPS", "CACHE_DIR", "CACHE_MAX_AGE", "SVGSCOUT_BROWSER", "VERBOSE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "svgscout.yaml")
	yaml := "export:\n  scale: 4\n  background: '#ffffff'\n  format: tar.gz\ncache:\n  dir: /from/file\n  maxAge: 48h\nhelper:\n  mode: subprocess\nbrowser:\n  enable: true\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SVGSCOUT_BACKGROUND", "black")
	t.Setenv("CACHE_DIR", "/from/env")
	t.Setenv("SVGSCOUT_RELAY_RPS", "0.5")

	var out string
	cfg, rest, err := Load("scan", []string{"-config", cfgPath, "-env", "", "-cache.dir", "/from/flag", "-o", "x.zip", "https://site.test/"}, nil)
	if err == nil {
		t.Fatalf("expected unknown flag -o to fail without extra registration")
	}
	cfg, rest, err = Load("scan", []string{"-config", cfgPath, "-env", "", "-cache.dir", "/from/flag", "-o", "x.zip", "https://site.test/"}, func(fs *flag.FlagSet) {
		fs.StringVar(&out, "o", "", "output")
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scale != 4 || cfg.ArchiveFormat != "tar.gz" || cfg.HelperMode != HelperSubprocess || !cfg.Browser {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CacheMaxAge != 48*time.Hour {
		t.Fatalf("expected yaml duration, got %v", cfg.CacheMaxAge)
	}
	if cfg.Background != "black" || cfg.RelayRPS != 0.5 {
		t.Fatalf("env should beat file: %+v", cfg)
	}
	if cfg.CacheDir != "/from/flag" {
		t.Fatalf("flag should beat env, got %q", cfg.CacheDir)
	}
	if cfg.FetchAttempts != 2 || cfg.UserAgent != defaultUserAgent {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if out != "x.zip" || len(rest) != 1 || rest[0] != "https://site.test/" {
		t.Fatalf("unexpected extra flag %q / args %v", out, rest)
	}
}

func TestApplyEnvOverrides_Booleans(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.Browser = true
	t.Setenv("SVGSCOUT_BROWSER", "off")
	t.Setenv("VERBOSE", "yes")
	t.Setenv("SVGSCOUT_SCALE", "not-a-number")
	ApplyEnvOverrides(&cfg)
	if cfg.Browser || !cfg.Verbose {
		t.Fatalf("unexpected booleans browser=%v verbose=%v", cfg.Browser, cfg.Verbose)
	}
	if cfg.Scale != defaultScale {
		t.Fatalf("unparseable env should be ignored, got %d", cfg.Scale)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(p, []byte(`{"export":{"scale":1,"includeRaster":true},"store":{"path":"s.db"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if cfg.Scale != 1 || !cfg.IncludeRaster || cfg.StorePath != "s.db" || cfg.Background != defaultBackground {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	cases := map[string]func(*Config){
		"scale":      func(c *Config) { c.Scale = 3 },
		"background": func(c *Config) { c.Background = "not-a-color" },
		"format":     func(c *Config) { c.ArchiveFormat = "rar" },
		"helper":     func(c *Config) { c.HelperMode = "thread" },
		"negative":   func(c *Config) { c.MaxConcurrent = -1 },
		"rps":        func(c *Config) { c.RelayRPS = -2 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		err := ValidateConfig(cfg)
		if err == nil || !strings.HasPrefix(err.Error(), "config: ") {
			t.Fatalf("%s: expected config error, got %v", name, err)
		}
	}
}
