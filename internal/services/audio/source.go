package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"
)

// StreamSource turns a source reference into a readable audio byte stream.
type StreamSource interface {
	Open(ctx context.Context, sourceRef string) (*SourceStream, error)
}

// SourceStream is an audio stream backed by a running process.
// Read returns io.EOF once the process exited cleanly; Wait reports how it exited.
type SourceStream struct {
	io.ReadCloser

	waitOnce sync.Once
	waitErr  error
	exited   chan error
}

// NewSourceStream wraps r. exited must receive exactly one value when the producer ends.
func NewSourceStream(r io.ReadCloser, exited chan error) *SourceStream {
	return &SourceStream{ReadCloser: r, exited: exited}
}

// Wait blocks until the producer ended and returns its exit error, if any.
func (s *SourceStream) Wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = <-s.exited
	})
	return s.waitErr
}

// YtdlpSource streams best-quality audio through yt-dlp's stdout.
type YtdlpSource struct {
	Cookies string
	Proxy   string
}

// Open spawns yt-dlp for sourceRef. Cancelling ctx kills the process.
func (y *YtdlpSource) Open(ctx context.Context, sourceRef string) (*SourceStream, error) {
	builder := ytdlp.New().
		Format("bestaudio").
		Output("-").
		NoPart().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if y.Cookies != "" {
		builder.Cookies(y.Cookies)
	}
	if y.Proxy != "" {
		builder.Proxy(y.Proxy)
	}

	cmd := builder.BuildCommand(ctx, sourceRef)

	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	cmd.Stdout = pw
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("yt-dlp exited: %w: %s", err, lastLine(stderr.String()))
		}
		// nil closes the pipe with io.EOF
		pw.CloseWithError(err)
		exited <- err
	}()

	return NewSourceStream(pr, exited), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
