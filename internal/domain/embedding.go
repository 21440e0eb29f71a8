package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingRecord: эталонный эмбеддинг одного изображения предмета.
// Вектор хранится нормированным, Backend и Dimension фиксируют модель, которая его построила.
type EmbeddingRecord struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	ImageURL  string // публичная ссылка на эталонное изображение
	ImageKey  string // ключ объекта в хранилище изображений
	Vector    []float32
	Backend   string // ключ бэкенда в формате kind/artifact
	Dimension int
	CreatedAt time.Time
}

func NewEmbeddingRecord(itemID uuid.UUID, imageURL, imageKey string, vector []float32, backend string) *EmbeddingRecord {
	return &EmbeddingRecord{
		ID:        uuid.New(),
		ItemID:    itemID,
		ImageURL:  imageURL,
		ImageKey:  imageKey,
		Vector:    vector,
		Backend:   backend,
		Dimension: len(vector),
		CreatedAt: time.Now().UTC(),
	}
}

// Payload описывает дополнительную информацию вектора во внешнем векторном хранилище.
type Payload map[string]any

// Payload возвращает атрибуты записи без самого вектора.
func (r *EmbeddingRecord) Payload() Payload {
	return Payload{
		"item_id":    r.ItemID.String(),
		"image_url":  r.ImageURL,
		"image_key":  r.ImageKey,
		"backend":    r.Backend,
		"dimension":  int64(r.Dimension),
		"created_at": r.CreatedAt.UnixNano(),
	}
}

// EmbeddingStats: агрегаты по корпусу эмбеддингов активного бэкенда.
type EmbeddingStats struct {
	EnrolledItems   int64 // число различных предметов
	TotalEmbeddings int64
	StaleEmbeddings int64 // записи, построенные другим бэкендом
}
