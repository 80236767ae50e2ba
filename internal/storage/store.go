// store.go - Extraction history

package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("extraction not found")

// ExtractionRecord is one stored extraction
type ExtractionRecord struct {
	ID             string            `bson:"_id" json:"id"`
	DocumentHash   string            `bson:"document_hash" json:"document_hash"`
	FileName       string            `bson:"file_name" json:"file_name"`
	GuaranteeType  string            `bson:"guarantee_type" json:"guarantee_type"`
	Fields         map[string]string `bson:"fields" json:"fields"`
	Model          string            `bson:"model" json:"model"`
	Pages          int               `bson:"pages" json:"pages"`
	Score          float64           `bson:"score" json:"score"`
	RequiresReview bool              `bson:"requires_review" json:"requires_review"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`
}

// NewExtractionRecord stamps a record with a fresh ID and creation time.
func NewExtractionRecord() *ExtractionRecord {
	return &ExtractionRecord{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// ExtractionStore persists extraction records
type ExtractionStore interface {
	Save(ctx context.Context, rec *ExtractionRecord) error
	Get(ctx context.Context, id string) (*ExtractionRecord, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]ExtractionRecord, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps records in process memory. Used when no MongoDB URI is
// configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ExtractionRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]ExtractionRecord)}
}

// Save implements ExtractionStore
func (m *MemoryStore) Save(_ context.Context, rec *ExtractionRecord) error {
	if rec.ID == "" {
		return errors.New("record has no ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = cloneRecord(*rec)
	return nil
}

// Get implements ExtractionStore
func (m *MemoryStore) Get(_ context.Context, id string) (*ExtractionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// List implements ExtractionStore
func (m *MemoryStore) List(_ context.Context, limit int) ([]ExtractionRecord, error) {
	m.mu.RLock()
	out := make([]ExtractionRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneRecord(rec))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements ExtractionStore
func (m *MemoryStore) Close(context.Context) error { return nil }

func cloneRecord(rec ExtractionRecord) ExtractionRecord {
	if rec.Fields != nil {
		fields := make(map[string]string, len(rec.Fields))
		for k, v := range rec.Fields {
			fields[k] = v
		}
		rec.Fields = fields
	}
	return rec
}
