package helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// InProcess runs the helper as a goroutine connected through pipes.
type InProcess struct{}

func (InProcess) Launch(ctx context.Context) (*Client, error) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		// The helper outlives the request that created it.
		err := Serve(context.Background(), reqR, respW)
		_ = respW.CloseWithError(err)
	}()
	return NewClient(respR, reqW, func() error {
		<-served
		return nil
	}), nil
}

// Subprocess runs the helper as a child process speaking the protocol on
// its standard streams.
type Subprocess struct {
	// Path is the executable; empty means the running binary.
	Path string
	// Args follow the executable; empty means "helper".
	Args []string
}

func (s Subprocess) Launch(ctx context.Context) (*Client, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}
	args := s.Args
	if len(args) == 0 {
		args = []string{"helper"}
	}
	// Not bound to ctx: the child lives until Close.
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start helper: %w", err)
	}
	log.Debug().Int("pid", cmd.Process.Pid).Str("path", path).Msg("helper process started")
	var c *Client
	c = NewClient(stdout, stdin, func() error {
		// Wait closes stdout, so let the reader drain it first.
		<-c.Done()
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("helper exited: %w", err)
		}
		return err
	})
	return c, nil
}
