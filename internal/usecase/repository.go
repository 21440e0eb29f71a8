package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
)

type ItemRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetItemsInfo(ctx context.Context, ids []uuid.UUID) ([]ItemInfo, error)
	SetImageIfEmpty(ctx context.Context, id uuid.UUID, imageURL string) (bool, error)
	ClearImage(ctx context.Context, id uuid.UUID, imageURLs []string) (bool, error)
	UpdateMetadata(ctx context.Context, item *domain.Item) error
}

type EmbeddingRepository interface {
	Create(ctx context.Context, record *domain.EmbeddingRecord) error
	ListByBackend(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error)
	ListStale(ctx context.Context, backend string) ([]domain.EmbeddingRecord, error)
	UpdateVector(ctx context.Context, id uuid.UUID, vector []float32, backend string) error
	DeleteByItem(ctx context.Context, itemID uuid.UUID) ([]domain.EmbeddingRecord, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
	Stats(ctx context.Context, backend string) (*domain.EmbeddingStats, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type CacheRepository interface {
	GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ItemInfo, error)
	SetItems(ctx context.Context, items []ItemInfo) error
	DeleteItems(ctx context.Context, ids []uuid.UUID) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	MarkAsPending(ctx context.Context, id int64) error
}
