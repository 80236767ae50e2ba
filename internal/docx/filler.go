// Package docx fills the Word letter templates and converts them to PDF.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"
	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
)

const documentPart = "word/document.xml"

var (
	// ErrNoTable means the document body has no table to fill.
	ErrNoTable = errors.New("docx: document has no table")
	// ErrCellOutOfRange means a layout cell does not exist in the template.
	ErrCellOutOfRange = errors.New("docx: cell out of range")
)

// TemplateNotFoundError reports a missing template file
type TemplateNotFoundError struct {
	Path string
	Err  error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Path)
}

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// Filler writes guarantee fields into the template chosen by guarantee type
type Filler struct {
	dir     string
	layouts Layouts
}

// NewFiller reads templates from dir.
func NewFiller(dir string, layouts Layouts) *Filler {
	return &Filler{dir: dir, layouts: layouts}
}

// Fill loads the template for guaranteeType and returns the filled document.
func (f *Filler) Fill(fields guarantee.Fields, guaranteeType string) ([]byte, error) {
	layout := f.layouts.For(guaranteeType)
	path := filepath.Join(f.dir, layout.Template)

	tmpl, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &TemplateNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return FillDocument(tmpl, layout, fields)
}

// FillDocument applies layout to the docx bytes in tmpl. Only the main
// document part changes; every other zip entry is copied unchanged.
func FillDocument(tmpl []byte, layout Layout, fields guarantee.Fields) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(tmpl), int64(len(tmpl)))
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	found := false

	for _, zf := range zr.File {
		if zf.Name != documentPart {
			if err := zw.Copy(zf); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", zf.Name, err)
			}
			continue
		}

		found = true
		part, err := readPart(zf)
		if err != nil {
			return nil, err
		}
		filled, err := fillPart(part, layout, fields)
		if err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: zf.Name, Method: zip.Deflate, Modified: zf.Modified})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(filled); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("template has no %s", documentPart)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readPart(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func fillPart(part []byte, layout Layout, fields guarantee.Fields) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(part); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", documentPart, err)
	}

	table := firstTable(doc)
	if table == nil {
		return nil, ErrNoTable
	}
	rows := table.SelectElements("w:tr")

	for _, c := range layout.Cells {
		if c.Row >= len(rows) {
			return nil, fmt.Errorf("%w: row %d (table has %d rows)", ErrCellOutOfRange, c.Row, len(rows))
		}
		tc := cellAt(rows[c.Row], c.Col)
		if tc == nil {
			return nil, fmt.Errorf("%w: row %d col %d", ErrCellOutOfRange, c.Row, c.Col)
		}
		setCellText(tc, c.Prefix+fields.Localized(c.Field))
	}

	return doc.WriteToBytes()
}

// firstTable returns the first table directly under the body.
func firstTable(doc *etree.Document) *etree.Element {
	body := doc.FindElement("//w:body")
	if body == nil {
		return nil
	}
	return body.SelectElement("w:tbl")
}

// cellAt returns the cell covering grid column col, honoring horizontal
// merges.
func cellAt(tr *etree.Element, col int) *etree.Element {
	pos := 0
	for _, tc := range tr.SelectElements("w:tc") {
		span := 1
		if gs := tc.FindElement("w:tcPr/w:gridSpan"); gs != nil {
			if n, err := strconv.Atoi(gs.SelectAttrValue("w:val", "1")); err == nil && n > 1 {
				span = n
			}
		}
		if col < pos+span {
			return tc
		}
		pos += span
	}
	return nil
}

// setCellText puts text into the first run of the first paragraph that has
// runs, keeping that run's properties. Later runs of the paragraph are
// emptied and every other paragraph is removed. A cell with no runs is left
// as is.
func setCellText(tc *etree.Element, text string) {
	var target *etree.Element
	for _, p := range tc.SelectElements("w:p") {
		if p.SelectElement("w:r") != nil {
			target = p
			break
		}
	}
	if target == nil {
		return
	}

	for i, r := range target.SelectElements("w:r") {
		clearRun(r)
		if i == 0 && text != "" {
			t := r.CreateElement("w:t")
			t.CreateAttr("xml:space", "preserve")
			t.SetText(text)
		}
	}

	for _, p := range tc.SelectElements("w:p") {
		if p != target {
			tc.RemoveChild(p)
		}
	}
}

// clearRun drops all run content except the run properties.
func clearRun(r *etree.Element) {
	for _, child := range r.ChildElements() {
		if child.Space == "w" && child.Tag == "rPr" {
			continue
		}
		r.RemoveChild(child)
	}
}
