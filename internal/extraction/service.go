// Package extraction runs the document to fields pipeline for one upload.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/ai"
	"github.com/bosocmputer/bank_guarantee_ai/internal/common"
	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
	"github.com/bosocmputer/bank_guarantee_ai/internal/processor"
	"github.com/bosocmputer/bank_guarantee_ai/internal/storage"
	"go.uber.org/zap"
)

// LetterDateLayout is the DD/MM/YYYY format of the letter date.
const LetterDateLayout = "02/01/2006"

// Invoker is the model call used by the service.
type Invoker interface {
	Invoke(ctx context.Context, reqCtx *common.RequestContext, pages [][]byte, guaranteeType string, models []string) (*ai.Invocation, error)
}

// Request is one uploaded document
type Request struct {
	Data          []byte
	MediaType     string
	FileName      string
	GuaranteeType string
	// Model pins a single model; empty uses the configured fallback list.
	Model string
}

// Result of an extraction. Fields is nil when the model answered but no JSON
// object could be recovered; the caller then asks for manual entry.
type Result struct {
	RequestID    string                  `json:"request_id"`
	RecordID     string                  `json:"record_id,omitempty"`
	DocumentHash string                  `json:"document_hash"`
	Fields       guarantee.Fields        `json:"fields"`
	Completeness *guarantee.Completeness `json:"completeness,omitempty"`
	Model        string                  `json:"model"`
	Attempts     int                     `json:"attempts"`
	Pages        int                     `json:"pages"`
	Cached       bool                    `json:"cached"`
	RawResponse  string                  `json:"raw_response,omitempty"`
	Usage        common.TokenUsage       `json:"usage"`
}

// Config for the service
type Config struct {
	MaxPages int
	Prepare  processor.PrepareOptions
}

// Service wires rasterizer, model invoker, parser and storage together
type Service struct {
	rasterizer processor.Rasterizer
	invoker    Invoker
	store      storage.ExtractionStore
	cache      *storage.ResultCache[*Result]
	cfg        Config
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates a Service. store and cache may be nil.
func NewService(rasterizer processor.Rasterizer, invoker Invoker, store storage.ExtractionStore, cache *storage.ResultCache[*Result], cfg Config, log *zap.Logger) *Service {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = processor.DefaultMaxPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		rasterizer: rasterizer,
		invoker:    invoker,
		store:      store,
		cache:      cache,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// HashDocument returns the hex SHA-256 of data.
func HashDocument(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Extract runs the pipeline. Decode failures return *processor.DecodeError and
// model failures the invoker's typed errors.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	reqCtx := common.NewRequestContext(s.log, req.GuaranteeType)
	hash := HashDocument(req.Data)
	reqCtx.LogInfo("Extraction started | file: %s | %d bytes | hash: %s", req.FileName, len(req.Data), hash[:12])

	load := func() (*Result, bool, error) {
		res, err := s.run(ctx, reqCtx, req, hash)
		if err != nil {
			return nil, false, err
		}
		return res, res.Fields != nil, nil
	}

	if s.cache == nil {
		res, _, err := load()
		return res, err
	}

	key := req.GuaranteeType
	if req.Model != "" {
		key += "|" + req.Model
	}
	res, hit, err := s.cache.GetOrLoad(storage.CacheKey(hash, key), load)
	if err != nil {
		return nil, err
	}
	if hit {
		reqCtx.LogInfo("Cache hit for document %s", hash[:12])
		cached := *res
		cached.RequestID = reqCtx.RequestID
		cached.Fields = cloneFields(res.Fields)
		// The letter is dated the day it is generated, not the day it was cached.
		cached.Fields.Set(guarantee.KeyDate, s.now().Format(LetterDateLayout))
		cached.Cached = true
		return &cached, nil
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, reqCtx *common.RequestContext, req Request, hash string) (*Result, error) {
	reqCtx.StartStep("rasterize")
	pages, err := s.rasterizer.Rasterize(ctx, processor.SourceDocument{Data: req.Data, MediaType: req.MediaType}, s.cfg.MaxPages)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	pageCount := len(pages)
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("encode_pages")
	encoded, err := processor.EncodePages(pages, s.cfg.Prepare)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	reqCtx.EndStep("success", nil, nil)

	var models []string
	if req.Model != "" {
		models = []string{req.Model}
	}

	reqCtx.StartStep("invoke_model")
	inv, err := s.invoker.Invoke(ctx, reqCtx, encoded, req.GuaranteeType, models)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	reqCtx.EndStep("success", &inv.Usage, nil)

	res := &Result{
		RequestID:    reqCtx.RequestID,
		DocumentHash: hash,
		Model:        inv.Model,
		Attempts:     inv.Attempts,
		Pages:        pageCount,
		RawResponse:  inv.Text,
		Usage:        inv.Usage,
	}

	reqCtx.StartStep("parse_response")
	decoded := ai.ParseResponse(inv.Text)
	if decoded == nil {
		reqCtx.LogWarning("No JSON object in model response (%d chars)", len(inv.Text))
		reqCtx.EndStep("no_result", nil, nil)
		return res, nil
	}
	if err := guarantee.Validate(decoded); err != nil {
		reqCtx.LogWarning("Response does not match schema: %v", err)
	}
	res.Fields = guarantee.FromMap(decoded)
	res.Fields.Set(guarantee.KeyDate, s.now().Format(LetterDateLayout))
	completeness := guarantee.Score(res.Fields)
	res.Completeness = &completeness
	reqCtx.EndStep("success", nil, nil)

	s.save(ctx, reqCtx, req, res)

	summary := reqCtx.GetSummary()
	s.log.Info("extraction finished",
		zap.String("request_id", reqCtx.RequestID),
		zap.String("model", res.Model),
		zap.Int("pages", res.Pages),
		zap.Float64("score", completeness.Score),
		zap.Any("duration_ms", summary["total_duration_ms"]),
	)
	return res, nil
}

func (s *Service) save(ctx context.Context, reqCtx *common.RequestContext, req Request, res *Result) {
	if s.store == nil {
		return
	}
	rec := storage.NewExtractionRecord()
	rec.DocumentHash = res.DocumentHash
	rec.FileName = req.FileName
	rec.GuaranteeType = req.GuaranteeType
	rec.Fields = res.Fields.Strings()
	rec.Model = res.Model
	rec.Pages = res.Pages
	rec.Score = res.Completeness.Score
	rec.RequiresReview = res.Completeness.RequiresReview

	// History is best effort; the caller still gets the fields.
	if err := s.store.Save(ctx, rec); err != nil {
		reqCtx.LogWarning("Failed to store extraction: %v", err)
		return
	}
	res.RecordID = rec.ID
}

func cloneFields(f guarantee.Fields) guarantee.Fields {
	if f == nil {
		return nil
	}
	out := make(guarantee.Fields, len(f))
	for k, v := range f {
		if v != nil {
			s := *v
			v = &s
		}
		out[k] = v
	}
	return out
}
