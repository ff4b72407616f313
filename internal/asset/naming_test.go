package asset

import "testing"

func TestFileName_FallsBackToIndex(t *testing.T) {
	a := Asset{Source: SourceInline}
	if got := FileName(a, 2, ""); got != "svg-3.svg" {
		t.Fatalf("got %q, want svg-3.svg", got)
	}
}

func TestFileName_PrefersNameThenURL(t *testing.T) {
	if got := FileName(Asset{Name: "logo"}, 0, ""); got != "logo.svg" {
		t.Fatalf("got %q", got)
	}
	if got := FileName(Asset{Name: "logo.svg", SourceURL: "/x/y.svg"}, 0, ""); got != "logo.svg" {
		t.Fatalf("got %q", got)
	}
	if got := FileName(Asset{SourceURL: "https://cdn.test/icons/arrow.svg?v=1"}, 4, ""); got != "arrow.svg" {
		t.Fatalf("got %q", got)
	}
	if got := FileName(Asset{SourceURL: "#icon-home"}, 4, ""); got != "svg-5.svg" {
		t.Fatalf("got %q", got)
	}
	if got := FileName(Asset{SourceURL: "data-icon attribute"}, 0, ""); got != "svg-1.svg" {
		t.Fatalf("got %q", got)
	}
}

func TestFileName_TitlePrefix(t *testing.T) {
	got := FileName(Asset{}, 0, `  My "Great" Page: Icons / Logos  `)
	if got != "my-great-page-icons-logos-svg-1.svg" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeTitle_Truncates(t *testing.T) {
	got := SanitizeTitle("A very long page title that keeps going and going", 30)
	if got != "a-very-long-page-title-that-ke" {
		t.Fatalf("got %q", got)
	}
}

func TestArchiveAndRasterNames(t *testing.T) {
	if got := ArchiveName(""); got != "svg-export.zip" {
		t.Fatalf("got %q", got)
	}
	if got := ArchiveName("Docs Home"); got != "docs-home-svgs.zip" {
		t.Fatalf("got %q", got)
	}
	if got := RasterFileName("icon.svg", 4); got != "icon-4x.png" {
		t.Fatalf("got %q", got)
	}
	if got := BaseName("a.svg.svg"); got != "a.svg" {
		t.Fatalf("got %q", got)
	}
}
