package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/hyperifyio/svgscout/internal/api"
	"github.com/hyperifyio/svgscout/internal/app"
	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/export"
	"github.com/hyperifyio/svgscout/internal/helper"
	"github.com/hyperifyio/svgscout/internal/scan"
)

const usage = `usage: svgscout <command> [flags] [args]

commands:
  scan <url|file>     list every SVG on a page as JSON
  export [url|file]   write an archive or a single asset; without a page the
                      last saved scan is used
  serve               run the HTTP API
  helper              serve the helper protocol on stdin/stdout
  version             print the build version

Run "svgscout <command> -h" for the flags of a command.
`

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	_, _ = maxprocs.Set()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "scan":
		return runScan(ctx, rest, stdout)
	case "export":
		return runExport(ctx, rest, stdout)
	case "serve":
		return runServe(ctx, rest)
	case "helper":
		return helper.Serve(ctx, os.Stdin, os.Stdout)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, app.VersionString())
		return nil
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func setLogLevel(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func logProgress(p scan.Progress) {
	if p.Phase == scan.PhaseComplete {
		log.Info().Int("found", p.Found).Msg("scan complete")
		return
	}
	log.Debug().Str("phase", p.Phase).Int("found", p.Found).Int("total", p.Total).Msg("scanning")
}

func runScan(ctx context.Context, args []string, stdout io.Writer) error {
	var out string
	cfg, rest, err := app.Load("scan", args, func(fs *flag.FlagSet) {
		fs.StringVar(&out, "o", "", "Write the JSON result to this file instead of stdout")
	})
	if err != nil {
		return err
	}
	setLogLevel(cfg.Verbose)
	if len(rest) != 1 {
		return errors.New("scan: expected exactly one page URL or file")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	res, err := a.Scan(ctx, rest[0], logProgress)
	if err != nil {
		return err
	}
	if res.Items == nil {
		res.Items = []asset.Asset{}
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if out == "" {
		_, err = stdout.Write(b)
		return err
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	log.Info().Str("path", out).Int("items", len(res.Items)).Msg("wrote scan result")
	return nil
}

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		assetURL string
		kind     string
		index    int
		out      string
	)
	cfg, rest, err := app.Load("export", args, func(fs *flag.FlagSet) {
		fs.StringVar(&assetURL, "url", "", "Export the single SVG at this URL instead of a page")
		fs.StringVar(&kind, "kind", "archive", "Output: archive, vector or raster")
		fs.IntVar(&index, "index", 0, "Position of the asset for vector or raster output")
		fs.StringVar(&out, "o", "", "Output file or directory (default: current directory)")
	})
	if err != nil {
		return err
	}
	setLogLevel(cfg.Verbose)
	if len(rest) > 1 {
		return errors.New("export: expected at most one page URL or file")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	var res app.Result
	switch {
	case assetURL != "":
		it, err := a.FetchAsset(ctx, assetURL)
		if err != nil {
			return err
		}
		res.Items = []asset.Asset{it}
	case len(rest) == 1:
		if res, err = a.Scan(ctx, rest[0], logProgress); err != nil {
			return err
		}
	default:
		if res, err = a.LastScan(ctx); err != nil {
			return fmt.Errorf("no page given and no saved scan: %w", err)
		}
	}

	var p export.Payload
	switch export.Kind(strings.ToLower(kind)) {
	case "archive":
		p, err = a.Exporter().ExportArchive(ctx, res.Items, cfg.IncludeRaster, 0, res.PageTitle)
	case export.KindVector, export.KindRaster:
		if index < 0 || index >= len(res.Items) {
			return fmt.Errorf("export: index %d out of range (%d assets)", index, len(res.Items))
		}
		p, err = a.Exporter().ExportSingle(ctx, res.Items[index], export.Format{Kind: export.Kind(strings.ToLower(kind))}, res.PageTitle)
	default:
		return fmt.Errorf("export: unknown kind %q", kind)
	}
	if err != nil {
		return err
	}

	path := outputPath(out, p.FileName)
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Info().Str("path", path).Int("bytes", len(p.Data)).Msg("export written")
	fmt.Fprintln(stdout, path)
	return nil
}

// outputPath places name inside out when out is empty, an existing
// directory or ends with a separator; otherwise out is the file.
func outputPath(out, name string) string {
	if out == "" {
		return name
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) || strings.HasSuffix(out, "/") {
		return filepath.Join(out, name)
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}

func runServe(ctx context.Context, args []string) error {
	cfg, rest, err := app.Load("serve", args, nil)
	if err != nil {
		return err
	}
	setLogLevel(cfg.Verbose)
	if len(rest) > 0 {
		return fmt.Errorf("serve: unexpected arguments %v", rest)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return api.NewServer(a, api.Options{Debug: cfg.Debug}).Start(ctx, cfg.Listen)
}
