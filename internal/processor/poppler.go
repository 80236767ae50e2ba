// poppler.go - PDF rasterization through the poppler command-line tools

package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	pdfinfoPages  = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)
	renderedIndex = regexp.MustCompile(`-(\d+)\.png$`)
)

// PopplerRasterizer shells out to pdfinfo and pdftoppm. Used where MuPDF is
// not available in the build.
type PopplerRasterizer struct {
	cfg    RasterConfig
	runner Runner
}

// NewPopplerRasterizer creates a rasterizer backed by poppler-utils
func NewPopplerRasterizer(cfg RasterConfig, runner Runner) *PopplerRasterizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PopplerRasterizer{cfg: cfg, runner: runner}
}

// Rasterize implements Rasterizer
func (r *PopplerRasterizer) Rasterize(ctx context.Context, doc SourceDocument, maxPages int) ([]PageImage, error) {
	switch doc.Kind() {
	case KindImage:
		return decodeImage(doc)
	case KindPDF:
	default:
		return nil, unsupported(doc)
	}

	tmpDir, err := os.MkdirTemp("", "bg-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	out, errb, err := r.runner.Run(ctx, "pdfinfo", in)
	if err != nil {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: fmt.Errorf("pdfinfo: %w: %s", err, strings.TrimSpace(string(errb)))}
	}
	m := pdfinfoPages.FindStringSubmatch(string(out))
	if len(m) != 2 {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: errors.New("pdfinfo: page count not found")}
	}
	count, _ := strconv.Atoi(m[1])

	n := pageLimit(count, maxPages)
	if n == 0 {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: errors.New("document has no pages")}
	}

	prefix := filepath.Join(tmpDir, "page")
	_, errb, err = r.runner.Run(ctx, "pdftoppm",
		"-r", strconv.Itoa(r.cfg.dpi()),
		"-png",
		"-f", "1",
		"-l", strconv.Itoa(n),
		in, prefix,
	)
	if err != nil {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))}
	}

	files, err := renderedPages(prefix)
	if err != nil {
		return nil, err
	}
	if len(files) != n {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: fmt.Errorf("pdftoppm produced %d pages, expected %d", len(files), n)}
	}

	pages := make([]PageImage, 0, n)
	for i, path := range files {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, &DecodeError{MediaType: doc.MediaType, Err: fmt.Errorf("decode page %d: %w", i+1, err)}
		}
		pages = append(pages, PageImage{Index: i + 1, Image: img})
	}
	return pages, nil
}

// renderedPages lists prefix-N.png files in page order. pdftoppm zero-pads
// N by the document's page count, so sort numerically.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, p := range matches {
		m := renderedIndex.FindStringSubmatch(p)
		if len(m) != 2 {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, numbered{n: n, path: p})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}
