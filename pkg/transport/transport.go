// Package transport fetches raw log text from files or HTTP and delivers it
// in paced chunks. Transport failures are reported as *Error so callers can
// tell a broken resource apart from a log that is merely incomplete.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"
)

// Error is a transport failure.
type Error struct {
	Op       string // open, decode, read
	Location string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps an *Error.
func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// Source is a readable log resource.
type Source interface {
	// Name returns the file name or URL, used for format detection.
	Name() string
	// Open starts reading the raw, possibly compressed, bytes.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a local file.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string {
	return s.Path
}

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &Error{Op: "open", Location: s.Path, Err: err}
	}
	return f, nil
}

// HTTPSource fetches a URL with GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Name() string {
	return s.URL
}

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &Error{Op: "open", Location: s.URL, Err: err}
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Op: "open", Location: s.URL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &Error{Op: "open", Location: s.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}

// ForLocation returns an HTTPSource for http(s) URLs and a FileSource
// otherwise. A positive timeout bounds the wait for response headers only;
// the body may stream for as long as the server keeps sending.
func ForLocation(loc string, timeout time.Duration) Source {
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		client := &http.Client{}
		if timeout > 0 {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.ResponseHeaderTimeout = timeout
			client.Transport = tr
		}
		return &HTTPSource{URL: loc, Client: client}
	}
	return &FileSource{Path: loc}
}

// Decode wraps r in a decompressor chosen by the suffix of name. Names
// without a compression suffix pass through unchanged.
func Decode(name string, r io.ReadCloser) (io.ReadCloser, error) {
	lower := strings.ToLower(name)
	if i := strings.IndexAny(lower, "?#"); i >= 0 && strings.Contains(lower, "://") {
		lower = lower[:i]
	}

	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, &Error{Op: "decode", Location: name, Err: err}
		}
		return &decodedReader{Reader: zr, closers: []io.Closer{zr, r}}, nil

	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			r.Close()
			return nil, &Error{Op: "decode", Location: name, Err: err}
		}
		return &decodedReader{Reader: zr, closers: []io.Closer{zstdCloser{zr}, r}}, nil
	}
	return r, nil
}

type decodedReader struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedReader) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// zstd.Decoder.Close has no error result.
type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// Chunk is one piece of log text. Last marks the end of the resource; its
// Data may be empty.
type Chunk struct {
	Data string
	Last bool
}

// Options control chunked delivery.
type Options struct {
	ChunkSize int // Bytes per chunk (default: 64 KiB)
	// ChunksPerSecond paces delivery. Zero delivers as fast as possible.
	ChunksPerSecond float64
}

// DefaultChunkSize is used when Options.ChunkSize is not positive.
const DefaultChunkSize = 64 * 1024

// Stream opens src, decodes it and calls fn for every chunk until the
// resource is exhausted, ctx is done or fn returns an error. Errors from fn
// are returned unchanged; read failures are *Error.
func Stream(ctx context.Context, src Source, opts Options, fn func(Chunk) error) error {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	var limiter *rate.Limiter
	if opts.ChunksPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ChunksPerSecond), 1)
	}

	raw, err := src.Open(ctx)
	if err != nil {
		return err
	}
	r, err := Decode(src.Name(), raw)
	if err != nil {
		return err
	}
	defer r.Close()

	buf := make([]byte, size)
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		last := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &Error{Op: "read", Location: src.Name(), Err: err}
		}

		if err := fn(Chunk{Data: string(buf[:n]), Last: last}); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// ReadAll returns the complete decoded text of src.
func ReadAll(ctx context.Context, src Source) (string, error) {
	var b strings.Builder
	err := Stream(ctx, src, Options{}, func(c Chunk) error {
		b.WriteString(c.Data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
