package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const svgDataPrefix = "data:image/svg+xml"

var exampleBase = &url.URL{Scheme: "https", Host: "example.com", Path: "/"}

// IsSVGDataURI reports whether s is a data URI with the SVG media type.
func IsSVGDataURI(s string) bool {
	return strings.HasPrefix(s, svgDataPrefix)
}

// IsSVGURL reports whether the path of ref, resolved against a neutral base,
// ends in .svg or .svgz.
func IsSVGURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	p := strings.ToLower(exampleBase.ResolveReference(u).EscapedPath())
	return strings.HasSuffix(p, ".svg") || strings.HasSuffix(p, ".svgz")
}

// DecodeDataURI returns the markup embedded in an SVG data URI. Base64
// payloads are decoded; anything else is percent-decoded. Media type
// parameters such as charset are accepted in any order.
func DecodeDataURI(uri string) (string, error) {
	if !IsSVGDataURI(uri) {
		return "", errors.New("not an svg data uri")
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return "", errors.New("data uri without payload")
	}
	header, payload := uri[len(svgDataPrefix):comma], uri[comma+1:]
	if header != "" && !strings.HasPrefix(header, ";") {
		return "", fmt.Errorf("unexpected media type suffix %q", header)
	}
	isBase64 := false
	for _, p := range strings.Split(strings.TrimPrefix(header, ";"), ";") {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if isBase64 {
		b, err := decodeBase64(payload)
		if err != nil {
			return "", fmt.Errorf("decode base64 payload: %w", err)
		}
		return string(b), nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return s, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, s)
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
