package helper

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Client issues requests over a helper connection and matches responses to
// callers by ID.
type Client struct {
	w      io.WriteCloser
	wmu    sync.Mutex
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan Response
	err     error
	done    chan struct{}

	closeOnce sync.Once
	onClose   func() error
}

// NewClient starts reading responses from r. Requests are written to w.
// onClose, when set, runs once after w is closed, for example to reap a
// child process.
func NewClient(r io.Reader, w io.WriteCloser, onClose func() error) *Client {
	c := &Client{w: w, pending: make(map[uint64]chan Response), done: make(chan struct{}), onClose: onClose}
	go c.readLoop(r)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	br := bufio.NewReader(r)
	var err error
	for {
		var line []byte
		line, err = br.ReadBytes('\n')
		if len(line) > 0 {
			var resp Response
			if jerr := json.Unmarshal(line, &resp); jerr != nil {
				log.Warn().Err(jerr).Msg("helper sent malformed response")
			} else {
				c.resolve(resp)
			}
		}
		if err != nil {
			break
		}
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("connection closed")
	}
	c.fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
}

func (c *Client) resolve(resp Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()
	if !ok {
		log.Debug().Uint64("id", resp.ID).Msg("response for unknown request")
		return
	}
	ch <- resp
}

// fail marks the connection dead and releases every waiting caller.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	close(c.done)
}

// Done is closed once the connection is unusable.
func (c *Client) Done() <-chan struct{} { return c.done }

// Call sends req with a fresh ID and waits for its response.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Response{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	b, err := json.Marshal(req)
	if err != nil {
		c.forget(req.ID)
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	c.wmu.Lock()
	_, err = c.w.Write(append(b, '\n'))
	c.wmu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return Response{}, err
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close shuts the request stream and runs the close hook.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.w.Close()
		if c.onClose != nil {
			if cerr := c.onClose(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
