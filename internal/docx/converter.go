// converter.go - Best-effort docx to PDF conversion through LibreOffice

package docx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/logger"
	"github.com/bosocmputer/bank_guarantee_ai/internal/processor"
	"go.uber.org/zap"
)

// ErrPDFUnavailable means no PDF could be produced. The docx is still usable.
var ErrPDFUnavailable = errors.New("pdf unavailable")

// DefaultConvertTimeout bounds one office conversion.
const DefaultConvertTimeout = 60 * time.Second

var officeBinaries = []string{"soffice", "libreoffice"}

// Converter turns a filled docx into PDF with a headless office suite
type Converter struct {
	runner  processor.Runner
	binary  string
	timeout time.Duration
}

// NewConverter uses binary when set, otherwise the first of soffice and
// libreoffice found on PATH.
func NewConverter(runner processor.Runner, binary string, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = DefaultConvertTimeout
	}
	return &Converter{runner: runner, binary: binary, timeout: timeout}
}

// ToPDF converts docx bytes. Every failure wraps ErrPDFUnavailable.
func (c *Converter) ToPDF(ctx context.Context, docx []byte) ([]byte, error) {
	bin, err := c.findBinary()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "guarantee-letter-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFUnavailable, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "letter.docx")
	if err := os.WriteFile(in, docx, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, stderr, err := c.runner.Run(ctx, bin, "--headless", "--convert-to", "pdf", "--outdir", dir, in); err != nil {
		logger.Get().Warn("pdf conversion failed", zap.String("binary", bin), zap.ByteString("stderr", stderr), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPDFUnavailable, err)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "letter.pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: no output: %v", ErrPDFUnavailable, err)
	}
	return pdf, nil
}

func (c *Converter) findBinary() (string, error) {
	if c.binary != "" {
		return c.binary, nil
	}
	for _, name := range officeBinaries {
		if path, err := c.runner.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: soffice/libreoffice not found", ErrPDFUnavailable)
}
