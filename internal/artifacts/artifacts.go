// Package artifacts stores failure diagnostics on disk, in S3, or both.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/harness"
)

// Store persists one artifact and returns a reference to it.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

var _ harness.ArtifactSink = Store(nil)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid artifact key")

// cleanKey normalizes key into a relative slash separated path.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// FSStore writes artifacts below a directory.
type FSStore struct {
	dir      string
	compress bool
}

// NewFSStore returns a store rooted at dir. With compress, files are
// brotli encoded and get a ".br" suffix.
func NewFSStore(dir string, compress bool) (*FSStore, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand artifacts dir: %w", err)
	}
	return &FSStore{dir: expanded, compress: compress}, nil
}

// Dir is the root directory.
func (s *FSStore) Dir() string { return s.dir }

// Put writes data to <dir>/<key> and returns the file path.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if s.compress {
		target += ".br"
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact %s: %w", target, err)
	}
	var w io.WriteCloser = f
	if s.compress {
		w = brotli.NewWriterLevel(f, brotli.DefaultCompression)
	}
	if _, err := w.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write artifact %s: %w", target, err)
	}
	if s.compress {
		if err := w.Close(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to finish compressed artifact %s: %w", target, err)
		}
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return target, nil
}

// Open returns a reader over a stored artifact, transparently decoding
// brotli files.
func Open(file string) (io.ReadCloser, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(file, ".br") {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{brotli.NewReader(f), f}, nil
}

// Multi writes every artifact to all stores. The reference of the first
// store that succeeds is returned; it only fails when every store failed.
type Multi struct {
	stores []Store
	logger *zap.Logger
}

// NewMulti fans out to stores in order.
func NewMulti(logger *zap.Logger, stores ...Store) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{stores: stores, logger: logger.Named("artifacts")}
}

func (m *Multi) Put(ctx context.Context, key string, data []byte) (string, error) {
	var (
		ref  string
		errs []error
	)
	for _, s := range m.stores {
		r, err := s.Put(ctx, key, data)
		if err != nil {
			m.logger.Warn("Artifact store failed.", zap.String("key", key), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ref == "" {
			ref = r
		}
	}
	if ref == "" {
		if len(errs) == 0 {
			return "", errors.New("no artifact stores configured")
		}
		return "", errors.Join(errs...)
	}
	return ref, nil
}

// FromConfig builds the store described by cfg: the filesystem store,
// plus S3 when enabled.
func FromConfig(ctx context.Context, cfg config.ArtifactsConfig, logger *zap.Logger) (Store, error) {
	fs, err := NewFSStore(cfg.Dir, cfg.Compress)
	if err != nil {
		return nil, err
	}
	if !cfg.S3.Enabled {
		return fs, nil
	}
	s3, err := NewS3Store(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return NewMulti(logger, fs, s3), nil
}
