package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/svgscout/internal/archive"
	"github.com/hyperifyio/svgscout/internal/render"
)

// Launcher creates a helper context and returns a connected client.
type Launcher interface {
	Launch(ctx context.Context) (*Client, error)
}

// Adapter owns the single helper context. The first caller that needs it
// triggers creation; concurrent callers wait for that same creation.
type Adapter struct {
	Launcher Launcher

	group    singleflight.Group
	mu       sync.Mutex
	client   *Client
	launches atomic.Int32
}

// NewAdapter returns an Adapter that launches contexts with l.
func NewAdapter(l Launcher) *Adapter {
	return &Adapter{Launcher: l}
}

// Launches reports how many helper contexts have been created.
func (a *Adapter) Launches() int { return int(a.launches.Load()) }

// EnsureReady returns the live helper client, creating it if needed. A
// helper whose connection has dropped is replaced on the next call.
func (a *Adapter) EnsureReady(ctx context.Context) (*Client, error) {
	if c := a.current(); c != nil {
		return c, nil
	}
	v, err, shared := a.group.Do("helper", func() (any, error) {
		if c := a.current(); c != nil {
			return c, nil
		}
		if a.Launcher == nil {
			return nil, fmt.Errorf("%w: no launcher configured", ErrUnavailable)
		}
		a.launches.Add(1)
		c, err := a.Launcher.Launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		a.mu.Lock()
		a.client = c
		a.mu.Unlock()
		log.Debug().Msg("helper context ready")
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Msg("joined in-flight helper creation")
	}
	return v.(*Client), nil
}

func (a *Adapter) current() *Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	select {
	case <-a.client.Done():
		a.client = nil
		return nil
	default:
		return a.client
	}
}

// Close shuts down the helper context if one is running.
func (a *Adapter) Close() error {
	a.mu.Lock()
	c := a.client
	a.client = nil
	a.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func (a *Adapter) call(ctx context.Context, req Request) (Response, error) {
	c, err := a.EnsureReady(ctx)
	if err != nil {
		return Response{}, err
	}
	resp, err := c.Call(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "request failed"
		}
		return Response{}, fmt.Errorf("helper %s: %w", req.Type, errors.New(msg))
	}
	return resp, nil
}

// CreateBinary turns text content into a binary payload of the given type.
func (a *Adapter) CreateBinary(ctx context.Context, content, mimeType string) ([]byte, error) {
	resp, err := a.call(ctx, Request{Type: TypeCreateBinary, Content: content, MimeType: mimeType})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Render rasterizes in the helper context.
func (a *Adapter) Render(ctx context.Context, req render.Request) (render.Result, error) {
	resp, err := a.call(ctx, Request{Type: TypeRender, Content: req.Content, Scale: req.Scale, Background: req.Background})
	if err != nil {
		return render.Result{}, err
	}
	return render.Result{PNG: resp.Data, Width: resp.Width, Height: resp.Height}, nil
}

// BuildArchive assembles an archive in the helper context.
func (a *Adapter) BuildArchive(ctx context.Context, spec archive.Spec) (archive.Result, error) {
	resp, err := a.call(ctx, Request{
		Type:          TypeBuildArchive,
		Items:         spec.Items,
		IncludeRaster: spec.IncludeRaster,
		Scale:         float64(spec.Scale),
		PageTitle:     spec.PageTitle,
		Format:        string(spec.Format),
		ContactSheet:  spec.ContactSheet,
	})
	if err != nil {
		return archive.Result{}, err
	}
	return archive.Result{FileName: resp.FileName, MimeType: resp.MimeType, Data: resp.Data}, nil
}
