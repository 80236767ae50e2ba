// rasterizer.go - Converts an uploaded document into ordered page images

package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

const (
	// DefaultMaxPages bounds how many pages are sent to the model.
	DefaultMaxPages = 5
	// DefaultDPI balances legibility of small print against payload size.
	DefaultDPI = 200
)

// MediaKind is the declared type of a SourceDocument
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindPDF
	KindImage
)

// SourceDocument is an uploaded file with its declared media type.
type SourceDocument struct {
	Data      []byte
	MediaType string
}

// Kind maps the declared media type to a MediaKind.
func (d SourceDocument) Kind() MediaKind {
	mt := strings.ToLower(strings.TrimSpace(d.MediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf" || mt == "pdf":
		return KindPDF
	case strings.HasPrefix(mt, "image/") || mt == "image":
		return KindImage
	default:
		return KindUnknown
	}
}

// PageImage is one rendered page. Index is 1-based and follows page order.
type PageImage struct {
	Index int
	Image image.Image
}

// DecodeError reports bytes that are not a valid document of the declared type.
type DecodeError struct {
	MediaType string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %q document: %v", e.MediaType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Rasterizer renders a document into at most maxPages page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc SourceDocument, maxPages int) ([]PageImage, error)
}

// RasterConfig holds render settings shared by every Rasterizer.
type RasterConfig struct {
	DPI int
}

func (c RasterConfig) dpi() int {
	if c.DPI <= 0 {
		return DefaultDPI
	}
	return c.DPI
}

func pageLimit(pageCount, maxPages int) int {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if pageCount < maxPages {
		return pageCount
	}
	return maxPages
}

// decodeImage decodes raw image bytes into a one-page sequence.
func decodeImage(doc SourceDocument) ([]PageImage, error) {
	img, err := imaging.Decode(bytes.NewReader(doc.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: err}
	}
	return []PageImage{{Index: 1, Image: img}}, nil
}

func unsupported(doc SourceDocument) error {
	return &DecodeError{
		MediaType: doc.MediaType,
		Err:       errors.New("unsupported media type (expected application/pdf or image/*)"),
	}
}

// FitzRasterizer renders PDFs in memory with MuPDF.
type FitzRasterizer struct {
	cfg RasterConfig
}

// NewFitzRasterizer creates the default in-process rasterizer
func NewFitzRasterizer(cfg RasterConfig) *FitzRasterizer {
	return &FitzRasterizer{cfg: cfg}
}

// Rasterize implements Rasterizer
func (r *FitzRasterizer) Rasterize(ctx context.Context, doc SourceDocument, maxPages int) ([]PageImage, error) {
	switch doc.Kind() {
	case KindImage:
		return decodeImage(doc)
	case KindPDF:
	default:
		return nil, unsupported(doc)
	}

	if len(doc.Data) == 0 {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: errors.New("empty document")}
	}

	pdf, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: err}
	}
	defer pdf.Close()

	n := pageLimit(pdf.NumPage(), maxPages)
	if n == 0 {
		return nil, &DecodeError{MediaType: doc.MediaType, Err: errors.New("document has no pages")}
	}

	dpi := float64(r.cfg.dpi())
	pages := make([]PageImage, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := pdf.ImageDPI(i, dpi)
		if err != nil {
			return nil, &DecodeError{MediaType: doc.MediaType, Err: fmt.Errorf("render page %d: %w", i+1, err)}
		}
		pages = append(pages, PageImage{Index: i + 1, Image: img})
	}
	return pages, nil
}
