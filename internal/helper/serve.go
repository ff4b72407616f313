package helper

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/render"
)

// Serve reads requests from r and writes responses to w until r is exhausted
// or ctx is done. Requests are handled concurrently; each response is
// written as a single line.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	var (
		wg  sync.WaitGroup
		wmu sync.Mutex
	)
	enc := json.NewEncoder(w)
	write := func(resp Response) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := enc.Encode(resp); err != nil {
			log.Warn().Err(err).Uint64("id", resp.ID).Msg("helper response not delivered")
		}
	}
	defer wg.Wait()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			var req Request
			if jerr := json.Unmarshal(line, &req); jerr != nil {
				write(Response{Success: false, Error: "malformed request: " + jerr.Error()})
			} else {
				wg.Add(1)
				go func() {
					defer wg.Done()
					write(handle(req))
				}()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handle executes one request. Panics become failure responses.
func handle(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("type", req.Type).Msg("helper request panicked")
			resp = Response{ID: req.ID, Success: false, Error: fmt.Sprint(r)}
		}
	}()
	switch req.Type {
	case TypeCreateBinary:
		mime := strings.TrimSpace(req.MimeType)
		if mime == "" {
			mime = "application/octet-stream"
		}
		return Response{ID: req.ID, Success: true, Data: []byte(req.Content), MimeType: mime}
	case TypeRender:
		out, err := render.Render(render.Request{Content: req.Content, Scale: req.Scale, Background: req.Background})
		if err != nil {
			return failure(req.ID, err)
		}
		return Response{ID: req.ID, Success: true, Data: out.PNG, MimeType: "image/png", Width: out.Width, Height: out.Height}
	case TypeBuildArchive:
		format, err := archive.ParseFormat(req.Format)
		if err != nil {
			return failure(req.ID, err)
		}
		out, err := archive.Build(archive.Spec{
			Items:         req.Items,
			IncludeRaster: req.IncludeRaster,
			Scale:         int(math.Round(req.Scale)),
			PageTitle:     req.PageTitle,
			Format:        format,
			ContactSheet:  req.ContactSheet,
		})
		if err != nil {
			return failure(req.ID, err)
		}
		return Response{ID: req.ID, Success: true, Data: out.Data, MimeType: out.MimeType, FileName: out.FileName}
	}
	return Response{ID: req.ID, Success: false, Error: "unknown request type"}
}

func failure(id uint64, err error) Response {
	return Response{ID: id, Success: false, Error: err.Error()}
}
