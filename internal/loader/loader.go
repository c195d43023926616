// Package loader is the Loader (C3): fetches resource bytes from local
// disk or a remote URL, enforces the gitignore gate, and computes content
// hashes.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"os"

	"github.com/compresr/composer/internal/resource"
)

// FileIgnoredError is returned when a local resource matches a gitignore
// pattern of its project root.
type FileIgnoredError struct{ Path string }

func (e *FileIgnoredError) Error() string { return fmt.Sprintf("file ignored: %s", e.Path) }

// RequiredResourceNotFoundError is returned when a Required resource
// cannot be loaded.
type RequiredResourceNotFoundError struct {
	Path string
	Err  error
}

func (e *RequiredResourceNotFoundError) Error() string {
	return fmt.Sprintf("required resource not found: %s: %v", e.Path, e.Err)
}
func (e *RequiredResourceNotFoundError) Unwrap() error { return e.Err }

// RemoteFetchError is returned when a remote fetch fails.
type RemoteFetchError struct {
	URL string
	Err error
}

func (e *RemoteFetchError) Error() string { return fmt.Sprintf("remote fetch failed: %s: %v", e.URL, e.Err) }
func (e *RemoteFetchError) Unwrap() error { return e.Err }

// Loader resolves a Resource's bytes, subject to the gitignore gate.
type Loader struct {
	HTTPClient      *http.Client
	GitignoreGate   bool // matches SPEC_FULL LoaderConfig.GitignoreGate
}

// New builds a Loader with sensible defaults.
func New() *Loader {
	return &Loader{
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		GitignoreGate: true,
	}
}

// LoadBytes fetches the bytes for r, returning the display filename
// alongside them (the base name for Local, filepath.Base of the URL for
// Remote).
func (l *Loader) LoadBytes(ctx context.Context, r resource.Resource) ([]byte, string, error) {
	switch src := r.Source.(type) {
	case resource.LocalSource:
		return l.loadLocal(src.Path)
	case resource.RemoteSource:
		return l.loadRemote(ctx, src.URL)
	default:
		return nil, "", fmt.Errorf("unknown resource source type %T", src)
	}
}

func (l *Loader) loadLocal(path string) ([]byte, string, error) {
	resolved := path
	if canon, err := filepath.EvalSymlinks(path); err == nil {
		resolved = canon
	}

	if l.GitignoreGate {
		if ignored, ignorePath := l.checkGitignore(resolved); ignored {
			return nil, "", &FileIgnoredError{Path: ignorePath}
		}
	}

	b, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", &RequiredResourceNotFoundError{Path: path, Err: err}
	}
	return b, filepath.Base(resolved), nil
}

// checkGitignore reports whether path is ignored relative to its nearest
// project root. If no project root is found, nothing is ignored.
func (l *Loader) checkGitignore(path string) (bool, string) {
	root := FindProjectRoot(path)
	if root == "" {
		return false, ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, ""
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false, ""
	}
	matcher := GetOrCreateMatcher(root)
	if matcher.IsIgnored(rel) {
		return true, rel
	}
	return false, ""
}

func (l *Loader) loadRemote(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &RemoteFetchError{URL: url, Err: err}
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, "", &RemoteFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", &RemoteFetchError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &RemoteFetchError{URL: url, Err: err}
	}
	return b, filepath.Base(url), nil
}

// ContentHash computes the content hash of loaded bytes, hex-formatted.
func ContentHash(b []byte) string {
	return resource.ContentHash(b).String()
}
