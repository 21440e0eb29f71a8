package converter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingConverter_DimensionFollowsVector(t *testing.T) {
	rec := domain.NewEmbeddingRecord(uuid.New(), "http://minio/lens/a.png", "a.png", []float32{0.6, 0.8}, "classifier/mobilenetv2-12.onnx")
	rec.Dimension = 7

	model := EmbeddingConverter{}.ToModel(rec)
	require.NotNil(t, model)
	assert.Equal(t, int32(2), model.Dimension)

	back := EmbeddingConverter{}.ToEntity(model)
	assert.Equal(t, 2, back.Dimension)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Backend, back.Backend)
}

func TestItemConverter_NilTagsBecomeEmpty(t *testing.T) {
	item := ItemConverter{}.ToEntity(&ItemModel{ID: uuid.New(), Name: "Drill", UpdatedAt: time.Now()})
	require.NotNil(t, item)
	assert.NotNil(t, item.Tags)
	assert.Empty(t, item.Tags)
	assert.False(t, item.HasImage())
}

func TestOutboxEventConverter_Types(t *testing.T) {
	ev := domain.NewOutboxEvent(domain.ItemUnenrolled, uuid.New(), []byte("x"))
	model := OutboxEventConverter{}.ToModel(ev)
	assert.Equal(t, "item_unenrolled", model.EventType)
	assert.Equal(t, "pending", model.Status)

	back := OutboxEventConverter{}.ToArrEntity([]*OutboxEventModel{model})
	require.Len(t, back, 1)
	assert.Equal(t, domain.ItemUnenrolled, back[0].EventType)
	assert.Equal(t, domain.Pending, back[0].Status)
}
