// Package fixtures generates the files the upload scenarios send.
package fixtures

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Fixture is one generated upload file.
type Fixture struct {
	Name string
	// Size is the approximate size the file is padded to. Zero keeps the
	// natural size of the encoded document.
	Size  int
	build func(size int) ([]byte, error)
}

const kb = 1000

// All lists every fixture the built-in upload scenarios reference.
var All = []Fixture{
	{Name: "jpg500kb.jpg", Size: 500 * kb, build: buildJPEG},
	{Name: "png500kb.png", Size: 500 * kb, build: buildPNG},
	{Name: "file_example_XLS_100.xls", Size: 26 * kb, build: buildOLE},
	{Name: "file_example_XLSX_100.xlsx", build: buildXLSX},
	{Name: "file-sample_150kB.pdf", Size: 150 * kb, build: buildPDF},
	{Name: "file-sample_500kB.doc", Size: 500 * kb, build: buildOLE},
	{Name: "file-sample_500kB.docx", Size: 500 * kb, build: buildDOCX},
}

// Names returns the file names of All.
func Names() []string {
	out := make([]string, len(All))
	for i, f := range All {
		out[i] = f.Name
	}
	return out
}

// Build renders the fixture's bytes.
func (f Fixture) Build() ([]byte, error) {
	data, err := f.build(f.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", f.Name, err)
	}
	return data, nil
}

// Generate writes every fixture into dir, creating it if needed. Existing
// files are kept unless force is set. It returns the paths it wrote.
func Generate(dir string, force bool, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand fixtures dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fixtures dir: %w", err)
	}

	var written []string
	for _, f := range All {
		path := filepath.Join(dir, f.Name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				logger.Debug("Fixture exists, keeping it.", zap.String("path", path))
				continue
			}
		}
		data, err := f.Build()
		if err != nil {
			return written, err
		}
		if err := writeAtomic(path, data); err != nil {
			return written, err
		}
		logger.Info("Fixture written.", zap.String("path", path), zap.Int("bytes", len(data)))
		written = append(written, path)
	}
	return written, nil
}

// Missing returns the fixtures absent from dir.
func Missing(dir string) ([]string, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range All {
		_, err := os.Stat(filepath.Join(dir, f.Name))
		switch {
		case errors.Is(err, os.ErrNotExist):
			out = append(out, f.Name)
		case err != nil:
			return nil, err
		}
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fixture-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// filler returns n bytes of repeating printable text.
func filler(n int) []byte {
	if n <= 0 {
		return nil
	}
	const pattern = "lancet fixture padding 0123456789 "
	return bytes.Repeat([]byte(pattern), n/len(pattern)+1)[:n]
}
