// Package reporting renders run results as text, JSON, JUnit XML or SARIF.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/harness"
)

// Supported formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatJUnit = "junit"
	FormatSARIF = "sarif"
)

// Formats lists every format New accepts.
var Formats = []string{FormatText, FormatJSON, FormatJUnit, FormatSARIF}

// Reporter collects run results and renders them on Close.
type Reporter interface {
	// Write adds one run to the report.
	Write(run *harness.RunResult) error
	// Close renders the report and closes the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// renderFunc writes every collected run to w.
type renderFunc func(w io.Writer, runs []*harness.RunResult) error

// New creates a reporter for format writing to outputPath, or stdout when
// outputPath is empty or "stdout".
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	render, err := renderer(format, toolVersion)
	if err != nil {
		return nil, err
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
			}
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return newReporter(format, writer, render, logger), nil
}

// NewWriter creates a reporter that takes ownership of w.
func NewWriter(format string, w io.WriteCloser, toolVersion string, logger *zap.Logger) (Reporter, error) {
	render, err := renderer(format, toolVersion)
	if err != nil {
		return nil, err
	}
	return newReporter(format, w, render, logger), nil
}

func renderer(format, toolVersion string) (renderFunc, error) {
	switch format {
	case FormatText:
		return renderText, nil
	case FormatJSON:
		return renderJSON, nil
	case FormatJUnit:
		return renderJUnit, nil
	case FormatSARIF:
		return func(w io.Writer, runs []*harness.RunResult) error {
			return renderSARIF(w, runs, toolVersion)
		}, nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

// reporter buffers runs until Close. It is safe for concurrent use.
type reporter struct {
	format string
	writer io.WriteCloser
	render renderFunc
	logger *zap.Logger

	mu     sync.Mutex
	runs   []*harness.RunResult
	closed bool
}

func newReporter(format string, w io.WriteCloser, render renderFunc, logger *zap.Logger) *reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reporter{format: format, writer: w, render: render, logger: logger.Named("reporter")}
}

func (r *reporter) Write(run *harness.RunResult) error {
	if run == nil {
		return fmt.Errorf("nil run result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("reporter closed")
	}
	r.runs = append(r.runs, run)
	return nil
}

func (r *reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	renderErr := r.render(r.writer, r.runs)
	// Always attempt to close the writer, regardless of render success.
	closeErr := r.writer.Close()

	if renderErr != nil {
		r.logger.Error("Failed to render report.", zap.String("format", r.format), zap.Error(renderErr))
		return fmt.Errorf("failed to render %s report: %w", r.format, renderErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer.", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Debug("Report written.", zap.String("format", r.format), zap.Int("runs", len(r.runs)))
	return nil
}
