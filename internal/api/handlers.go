// handlers.go - HTTP handlers for extraction, letters and templates

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bosocmputer/bank_guarantee_ai/internal/ai"
	"github.com/bosocmputer/bank_guarantee_ai/internal/docx"
	"github.com/bosocmputer/bank_guarantee_ai/internal/export"
	"github.com/bosocmputer/bank_guarantee_ai/internal/extraction"
	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
	"github.com/bosocmputer/bank_guarantee_ai/internal/letter"
	"github.com/bosocmputer/bank_guarantee_ai/internal/processor"
	"github.com/bosocmputer/bank_guarantee_ai/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DefaultMaxUploadBytes caps one uploaded document.
	DefaultMaxUploadBytes = 20 << 20

	defaultListLimit = 50
	maxListLimit     = 500
	exportLimit      = 5000
)

// Extractor runs one extraction
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

// TemplateFiller renders the docx letter
type TemplateFiller interface {
	Fill(fields guarantee.Fields, guaranteeType string) ([]byte, error)
}

// PDFConverter turns a docx into PDF
type PDFConverter interface {
	ToPDF(ctx context.Context, docx []byte) ([]byte, error)
}

// Handler holds the collaborators of the HTTP API
type Handler struct {
	extractor      Extractor
	filler         TemplateFiller
	converter      PDFConverter
	store          storage.ExtractionStore
	sem            *semaphore.Weighted
	log            *zap.Logger
	maxUploadBytes int64
}

// NewHandler creates a Handler. Extractions run one at a time.
func NewHandler(extractor Extractor, filler TemplateFiller, converter PDFConverter, store storage.ExtractionStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		extractor:      extractor,
		filler:         filler,
		converter:      converter,
		store:          store,
		sem:            semaphore.NewWeighted(1),
		log:            log,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "bank-guarantee-ai",
		"version": "1.0.0",
	})
}

type extractResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	*extraction.Result
}

// Extract handles a multipart upload: file, guarantee_type and an optional
// model name.
func (h *Handler) Extract(c *gin.Context) {
	guaranteeType := c.PostForm("guarantee_type")
	if !guarantee.ValidType(guaranteeType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid guarantee_type",
			"allowed": guarantee.Types,
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "details": err.Error()})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "max_bytes": h.maxUploadBytes})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload", "details": err.Error()})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload", "details": err.Error()})
		return
	}

	if err := h.sem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled while waiting for a previous extraction"})
		return
	}
	defer h.sem.Release(1)

	res, err := h.extractor.Extract(c.Request.Context(), extraction.Request{
		Data:          data,
		MediaType:     mediaType(file.Filename, file.Header.Get("Content-Type"), data),
		FileName:      file.Filename,
		GuaranteeType: guaranteeType,
		Model:         c.PostForm("model"),
	})
	if err != nil {
		h.extractError(c, err)
		return
	}

	if c.Query("debug") != "true" {
		trimmed := *res
		trimmed.RawResponse = ""
		res = &trimmed
	}

	if res.Fields == nil {
		c.JSON(http.StatusOK, extractResponse{
			Status:  "no_result",
			Message: "Could not read the fields from this document. Please fill them manually.",
			Result:  res,
		})
		return
	}
	c.JSON(http.StatusOK, extractResponse{Status: "success", Result: res})
}

func (h *Handler) extractError(c *gin.Context, err error) {
	_ = c.Error(err)

	var decodeErr *processor.DecodeError
	var nonRetryable *ai.NonRetryableError
	var exhausted *ai.ExhaustedError

	switch {
	case errors.As(err, &decodeErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "could not read the document; upload a PDF, PNG or JPEG",
			"details": err.Error(),
		})
	case errors.As(err, &nonRetryable), errors.As(err, &exhausted):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   ai.UserMessage(err),
			"details": err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "extraction timed out", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed", "details": err.Error()})
	}
}

// mediaType trusts the declared content type unless it is missing or
// generic, then falls back to the file extension and content sniffing.
func mediaType(filename, declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return http.DetectContentType(data)
}

type fieldsRequest struct {
	GuaranteeType string         `json:"guarantee_type"`
	Fields        map[string]any `json:"fields"`
}

// bindFields decodes the request and checks every letter field is filled.
func bindFields(c *gin.Context) (guarantee.Fields, string, bool) {
	var req fieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return nil, "", false
	}
	fields := guarantee.FromMap(req.Fields)
	if missing := fields.Missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Please ensure all fields are filled",
			"missing": missing,
		})
		return nil, "", false
	}
	return fields, req.GuaranteeType, true
}

// Letter composes the bilingual letter
func (h *Handler) Letter(c *gin.Context) {
	fields, _, ok := bindFields(c)
	if !ok {
		return
	}
	draft := letter.Compose(fields)
	c.JSON(http.StatusOK, gin.H{
		"english": draft.English,
		"arabic":  draft.Arabic,
		"joined":  draft.Joined(),
	})
}

func (h *Handler) fillTemplate(c *gin.Context) ([]byte, bool) {
	fields, guaranteeType, ok := bindFields(c)
	if !ok {
		return nil, false
	}
	if !guarantee.ValidType(guaranteeType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guarantee_type", "allowed": guarantee.Types})
		return nil, false
	}

	doc, err := h.filler.Fill(fields, guaranteeType)
	if err != nil {
		_ = c.Error(err)
		var notFound *docx.TemplateNotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found", "template": filepath.Base(notFound.Path)})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fill template", "details": err.Error()})
		return nil, false
	}
	return doc, true
}

// Template returns the filled Word document
func (h *Handler) Template(c *gin.Context) {
	doc, ok := h.fillTemplate(c)
	if !ok {
		return
	}
	attachment(c, "guarantee-letter.docx", docxMIME, doc)
}

// TemplatePDF returns the filled document converted to PDF
func (h *Handler) TemplatePDF(c *gin.Context) {
	doc, ok := h.fillTemplate(c)
	if !ok {
		return
	}
	pdf, err := h.converter.ToPDF(c.Request.Context(), doc)
	if err != nil {
		h.log.Warn("PDF conversion failed, docx download still available", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": docx.ErrPDFUnavailable.Error()})
		return
	}
	attachment(c, "guarantee-letter.pdf", "application/pdf", pdf)
}

// ListExtractions returns recent extractions, newest first
func (h *Handler) ListExtractions(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	recs, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list extractions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"extractions": recs, "count": len(recs)})
}

// GetExtraction returns one stored extraction
func (h *Handler) GetExtraction(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "extraction not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load extraction"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ExportExtractions downloads stored extractions as a spreadsheet
func (h *Handler) ExportExtractions(c *gin.Context) {
	recs, err := h.store.List(c.Request.Context(), exportLimit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list extractions"})
		return
	}
	data, err := export.ExtractionsXLSX(recs)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build spreadsheet"})
		return
	}
	attachment(c, "guarantees.xlsx", xlsxMIME, data)
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
