package converter

import (
	"time"

	"github.com/google/uuid"
)

// ItemModel представляет запись таблицы items вместе с названием места хранения.
type ItemModel struct {
	ID           uuid.UUID         `db:"id"`
	Name         string            `db:"name"`
	Description  string            `db:"description"`
	Category     string            `db:"category"`
	ImageURL     string            `db:"image_url"`
	LocationID   *uuid.UUID        `db:"location_id"`
	LocationName string            `db:"location_name"`
	Tags         []string          `db:"tags"`
	Attributes   map[string]string `db:"attributes"`
	UpdatedAt    time.Time         `db:"updated_at"`
}

// EmbeddingModel представляет запись таблицы item_embeddings в PostgreSQL.
type EmbeddingModel struct {
	ID        uuid.UUID `db:"id"`
	ItemID    uuid.UUID `db:"item_id"`
	ImageURL  string    `db:"image_url"`
	ImageKey  string    `db:"image_key"`
	Vector    []float32 `db:"vector"`
	Backend   string    `db:"backend"`
	Dimension int32     `db:"dimension"`
	CreatedAt time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     uuid.UUID  `db:"event_id"`
	EventType   string     `db:"event_type"`
	ItemID      uuid.UUID  `db:"item_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
