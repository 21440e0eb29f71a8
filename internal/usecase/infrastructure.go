package usecase

import (
	"context"

	"github.com/psms-tech/go-backend/internal/domain"
)

// FeatureExtractor превращает изображение или текст в нормированный вектор активного бэкенда.
type FeatureExtractor interface {
	ExtractImage(ctx context.Context, data []byte) (*Features, error)
	ExtractText(ctx context.Context, text string) (*Features, error)
}

// ModelProvider владеет активной моделью и установленными артефактами.
type ModelProvider interface {
	Initialize(ctx context.Context) error
	Ready() bool
	WarmUp()
	Backend() domain.BackendInfo
	List(ctx context.Context) ([]domain.ModelArtifact, error)
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
	Download(ctx context.Context, url, filename string) (*domain.ModelArtifact, error)
	Upload(ctx context.Context, filename string, data []byte) (*domain.ModelArtifact, error)
	Activate(ctx context.Context, filename string) error
	Delete(ctx context.Context, filename string) error
}

type ImagesInfra interface {
	UploadImage(ctx context.Context, req *UploadImageReq) (*UploadImageRes, error)
	FetchImage(ctx context.Context, key string) ([]byte, error)
	CleanupImages(keys []string)
}

// Tagger извлекает теги и атрибуты предмета по фотографии.
type Tagger interface {
	Tag(ctx context.Context, req *TagReq) (*TagRes, error)
}

// EventEncoder сериализует события изменения эталонов для outbox.
type EventEncoder interface {
	EncodeEnrollmentEvent(event *EnrollmentEvent) ([]byte, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

// TxManager выполняет fn в транзакции, доступной репозиториям через контекст.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
