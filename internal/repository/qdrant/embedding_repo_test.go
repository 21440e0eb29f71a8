package qdrant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecord_FromPayload(t *testing.T) {
	rec := domain.NewEmbeddingRecord(uuid.New(), "http://minio/lens/a.png", "item/a.png", []float32{0.6, 0.8}, "clip/vision.onnx")
	point := domain.NewQdrantPoint(rec)

	retrieved := &qdrant.RetrievedPoint{
		Id:      qdrant.NewIDUUID(point.ID.String()),
		Payload: qdrant.NewValueMap(point.Payloads),
		Vectors: &qdrant.VectorsOutput{
			VectorsOptions: &qdrant.VectorsOutput_Vector{Vector: &qdrant.VectorOutput{Data: point.Vectors}},
		},
	}

	got, err := toRecord(retrieved)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.ItemID, got.ItemID)
	assert.Equal(t, rec.ImageKey, got.ImageKey)
	assert.Equal(t, rec.Backend, got.Backend)
	assert.Equal(t, 2, got.Dimension)
	assert.Equal(t, []float32{0.6, 0.8}, got.Vector)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestToRecord_BadItemID(t *testing.T) {
	retrieved := &qdrant.RetrievedPoint{
		Id:      qdrant.NewIDUUID(uuid.NewString()),
		Payload: qdrant.NewValueMap(map[string]any{"item_id": "nope"}),
	}

	_, err := toRecord(retrieved)
	assert.Error(t, err)
}

func TestBackendFilter(t *testing.T) {
	must := backendFilter("classifier/a.onnx", true)
	assert.Len(t, must.GetMust(), 1)
	assert.Empty(t, must.GetMustNot())

	not := backendFilter("classifier/a.onnx", false)
	assert.Empty(t, not.GetMust())
	assert.Len(t, not.GetMustNot(), 1)
}
