// Package helper delegates binary creation, rendering and archive building
// to a separate execution context reached through a line-delimited JSON
// request/response protocol. The context may be a goroutine in this process
// or a child process running "svgscout helper".
package helper

import (
	"errors"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// Request types.
const (
	TypeCreateBinary = "createBinary"
	TypeRender       = "render"
	TypeBuildArchive = "buildArchive"
)

// ErrUnavailable wraps failures to create or reach the helper context.
var ErrUnavailable = errors.New("helper unavailable")

// Request is one line sent to the helper. Fields are used per Type.
type Request struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`

	// createBinary and render
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// render and buildArchive
	Scale      float64 `json:"scale,omitempty"`
	Background string  `json:"backgroundColor,omitempty"`

	// buildArchive
	Items         []asset.Asset `json:"items,omitempty"`
	IncludeRaster bool          `json:"includeRaster,omitempty"`
	PageTitle     string        `json:"pageTitle,omitempty"`
	Format        string        `json:"format,omitempty"`
	ContactSheet  bool          `json:"contactSheet,omitempty"`
}

// Response answers the Request with the same ID. Failures never cross the
// boundary as anything but Success false and an Error message.
type Response struct {
	ID       uint64 `json:"id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}
