package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMemoryStoreSaveGetList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	for i, hash := range []string{"h1", "h2", "h3"} {
		rec := NewExtractionRecord()
		rec.DocumentHash = hash
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		rec.Fields = map[string]string{"amount": hash}
		require.NoError(t, store.Save(ctx, rec))
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "h3", all[0].DocumentHash)
	assert.Equal(t, "h1", all[2].DocumentHash)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	got, err := store.Get(ctx, all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.DocumentHash)

	// Returned records are copies.
	got.Fields["amount"] = "changed"
	again, err := store.Get(ctx, all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", again.Fields["amount"])

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, &ExtractionRecord{}))
}

func TestNewExtractionRecord(t *testing.T) {
	a, b := NewExtractionRecord(), NewExtractionRecord()
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		store := &MongoStore{client: mt.Client, collection: mt.Coll, timeout: time.Second}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		rec := NewExtractionRecord()
		rec.GuaranteeType = "Tender Bond Guarantee"
		assert.NoError(mt, store.Save(context.Background(), rec))
	})

	mt.Run("list", func(mt *mtest.T) {
		store := &MongoStore{client: mt.Client, collection: mt.Coll, timeout: time.Second}
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		created := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "r2"}, {Key: "document_hash", Value: "h2"}, {Key: "created_at", Value: created}},
				bson.D{{Key: "_id", Value: "r1"}, {Key: "document_hash", Value: "h1"}, {Key: "created_at", Value: created}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		recs, err := store.List(context.Background(), 10)
		require.NoError(mt, err)
		require.Len(mt, recs, 2)
		assert.Equal(mt, "r2", recs[0].ID)
		assert.Equal(mt, "h1", recs[1].DocumentHash)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		store := &MongoStore{client: mt.Client, collection: mt.Coll, timeout: time.Second}
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.Get(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
