package asset

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun   = regexp.MustCompile(`[\s\p{Z}]+`)
	hyphenRun       = regexp.MustCompile(`-+`)
)

const (
	titlePrefixMax  = 30
	archiveTitleMax = 50
)

// SanitizeTitle turns a page title into a file-name fragment: reserved
// characters are removed, whitespace becomes hyphens, hyphen runs collapse,
// edges are trimmed, the result is cut to max characters and lowercased.
func SanitizeTitle(title string, max int) string {
	s := unsafeFileChars.ReplaceAllString(title, "")
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "-")
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return strings.ToLower(s)
}

// FileName derives the export file name of the asset at position index.
// Preference order: the caller-supplied name, the last path segment of the
// source URL when it mentions .svg, then svg-<index+1>.svg. A non-empty page
// title contributes a sanitized prefix.
func FileName(a Asset, index int, pageTitle string) string {
	prefix := ""
	if pageTitle != "" {
		prefix = SanitizeTitle(pageTitle, titlePrefixMax) + "-"
	}
	if a.Name != "" {
		name := a.Name
		if !strings.HasSuffix(name, ".svg") {
			name += ".svg"
		}
		return prefix + name
	}
	if a.SourceURL != "" {
		if u, err := url.Parse(a.SourceURL); err == nil {
			p := exampleBase.ResolveReference(u).EscapedPath()
			last := p[strings.LastIndexByte(p, '/')+1:]
			if last != "" && strings.Contains(last, ".svg") {
				return prefix + last
			}
		}
	}
	return prefix + "svg-" + strconv.Itoa(index+1) + ".svg"
}

// BaseName strips the first ".svg" occurrence from a file name.
func BaseName(fileName string) string {
	return strings.Replace(fileName, ".svg", "", 1)
}

// RasterFileName is the PNG name used for a vector file at the given scale.
func RasterFileName(fileName string, scale int) string {
	return BaseName(fileName) + "-" + strconv.Itoa(scale) + "x.png"
}

// ArchiveName is the download name of a multi-asset archive.
func ArchiveName(pageTitle string) string {
	if pageTitle == "" {
		return "svg-export.zip"
	}
	return SanitizeTitle(pageTitle, archiveTitleMax) + "-svgs.zip"
}
