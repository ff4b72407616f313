// Package archive packages discovered assets into a single downloadable
// payload: vector files, optional PNG renditions, a manifest and an optional
// PDF contact sheet.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/render"
)

// Format selects the container.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// ParseFormat accepts "zip", "tar.gz" and "tgz"; empty means zip.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zip":
		return FormatZip, nil
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	}
	return "", fmt.Errorf("unsupported archive format %q", s)
}

// Spec describes one archive.
type Spec struct {
	Items         []asset.Asset
	IncludeRaster bool
	Scale         int
	PageTitle     string
	Format        Format
	ContactSheet  bool
}

// Result is the encoded archive.
type Result struct {
	FileName string
	MimeType string
	Data     []byte
	// Vector and Raster count the asset entries written.
	Vector int
	Raster int
}

// RenderFunc rasterizes one asset.
type RenderFunc func(render.Request) (render.Result, error)

// Builder assembles archives. The zero value renders with render.Render.
type Builder struct {
	Render RenderFunc
	Now    func() time.Time
}

// Build is Builder{}.Build.
func Build(spec Spec) (Result, error) {
	return (&Builder{}).Build(spec)
}

type entry struct {
	name string
	data []byte
}

type manifestEntry struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	Source    string `json:"source"`
	SourceURL string `json:"sourceUrl,omitempty"`
	SHA256    string `json:"sha256"`
	Bytes     int    `json:"bytes"`
	Raster    string `json:"raster,omitempty"`
}

type manifest struct {
	PageTitle   string          `json:"pageTitle,omitempty"`
	Scale       int             `json:"scale,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Items       []manifestEntry `json:"items"`
}

// Build writes every item in order as svg/<base>.svg and, when raster output
// is requested, png/<base>-<scale>x.png. A failed render omits only that
// PNG; the archive still completes.
func (b *Builder) Build(spec Spec) (Result, error) {
	if len(spec.Items) == 0 {
		return Result{}, errors.New("archive: no items")
	}
	if spec.IncludeRaster && spec.Scale <= 0 {
		return Result{}, fmt.Errorf("archive: invalid scale %d", spec.Scale)
	}
	format := spec.Format
	if format == "" {
		format = FormatZip
	}
	renderFn := b.Render
	if renderFn == nil {
		renderFn = render.Render
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	names := newNameSet()
	var entries []entry
	var sheet []sheetItem
	man := manifest{PageTitle: spec.PageTitle, GeneratedAt: now().UTC()}
	if spec.IncludeRaster {
		man.Scale = spec.Scale
	}
	res := Result{}
	for i, it := range spec.Items {
		base := asset.BaseName(names.claim(asset.FileName(it, i, spec.PageTitle)))
		vectorName := "svg/" + base + ".svg"
		entries = append(entries, entry{vectorName, []byte(it.Content)})
		res.Vector++
		sum := sha256.Sum256([]byte(it.Content))
		me := manifestEntry{
			Index:     i,
			Name:      vectorName,
			ID:        it.ID,
			Source:    string(it.Source),
			SourceURL: it.SourceURL,
			SHA256:    hex.EncodeToString(sum[:]),
			Bytes:     len(it.Content),
		}
		si := sheetItem{label: base}
		if spec.IncludeRaster {
			out, err := renderFn(render.Request{Content: it.Content, Scale: float64(spec.Scale), Background: render.Transparent})
			if err != nil {
				log.Warn().Err(err).Str("asset", it.ID).Str("name", base).Msg("raster entry skipped")
			} else {
				pngName := "png/" + asset.RasterFileName(base+".svg", spec.Scale)
				entries = append(entries, entry{pngName, out.PNG})
				res.Raster++
				me.Raster = pngName
				si.png, si.w, si.h = out.PNG, out.Width, out.Height
			}
		}
		if spec.ContactSheet && si.png == nil {
			if out, err := renderFn(render.Request{Content: it.Content, Scale: 1, Background: render.Transparent}); err == nil {
				si.png, si.w, si.h = out.PNG, out.Width, out.Height
			}
		}
		man.Items = append(man.Items, me)
		sheet = append(sheet, si)
	}

	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("archive: manifest: %w", err)
	}
	entries = append(entries, entry{"manifest.json", mb})
	if spec.ContactSheet {
		pdf, err := contactSheet(spec.PageTitle, sheet)
		if err != nil {
			log.Warn().Err(err).Msg("contact sheet skipped")
		} else {
			entries = append(entries, entry{"contact-sheet.pdf", pdf})
		}
	}

	modTime := man.GeneratedAt
	switch format {
	case FormatZip:
		res.Data, err = writeZip(entries, modTime)
		res.MimeType = "application/zip"
		res.FileName = asset.ArchiveName(spec.PageTitle)
	case FormatTarGz:
		res.Data, err = writeTarGz(entries, modTime)
		res.MimeType = "application/gzip"
		res.FileName = strings.TrimSuffix(asset.ArchiveName(spec.PageTitle), ".zip") + ".tar.gz"
	default:
		return Result{}, fmt.Errorf("archive: unsupported format %q", format)
	}
	if err != nil {
		return Result{}, fmt.Errorf("archive: %w", err)
	}
	log.Debug().Int("vector", res.Vector).Int("raster", res.Raster).Int("bytes", len(res.Data)).Str("format", string(format)).Msg("archive built")
	return res, nil
}

// nameSet hands out unique file names, suffixing repeats with -2, -3, ...
// before the extension.
type nameSet map[string]bool

func newNameSet() nameSet { return make(nameSet) }

func (s nameSet) claim(name string) string {
	if !s[name] {
		s[name] = true
		return name
	}
	stem, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := stem + "-" + strconv.Itoa(n) + ext
		if !s[candidate] {
			s[candidate] = true
			return candidate
		}
	}
}
