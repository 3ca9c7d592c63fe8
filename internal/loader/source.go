package loader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Source is implemented by each place the case table can come from
// (the JHU repository, a local mirror, a file on disk). Fetch returns the
// raw CSV; the caller closes it.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// HTTPSource downloads the CSV from URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http source: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http source: do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("http source: status %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// FileSource reads the CSV from a local path; a ".gz" suffix is
// decompressed transparently.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	if filepath.Ext(s.Path) != ".gz" {
		return f, nil
	}

	gr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file source: decompress: %w", err)
	}
	return &gzipFile{Reader: gr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	gerr := g.Reader.Close()
	ferr := g.f.Close()
	if gerr != nil {
		return gerr
	}
	return ferr
}
