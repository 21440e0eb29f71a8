package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/internal/infrastructure"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/jitter"
	"github.com/psms-tech/go-backend/pkg/logger"
)

// MinioInfrastructure управляет загрузкой и очисткой эталонных изображений в MinIO.
type MinioInfrastructure struct {
	minioRepo   usecase.ImageRepository
	cfg         *cfg.MinIOCfg
	logger      logger.Logger
	shutdownCtx context.Context
	backoff     jitter.Backoff
	wg          sync.WaitGroup
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:   minioRepo,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		backoff: jitter.Backoff{
			Base:     time.Second,
			Max:      8 * time.Second,
			Attempts: 3,
			Factor:   jitter.DefaultJitter,
		},
	}
}

// UploadImage сохраняет изображение под ключом <prefix>/<uuid>.<ext> и возвращает ключ и публичную ссылку.
func (m *MinioInfrastructure) UploadImage(ctx context.Context, req *usecase.UploadImageReq) (*usecase.UploadImageRes, error) {
	const op = "MinioInfrastructure.UploadImage"

	ext, err := infrastructure.GetExtensionFromMIME(req.ContentType)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("invalid mime type %s for %s: %w", req.ContentType, req.Name, err))
	}

	imageID := uuid.NewString()
	objKey := fmt.Sprintf("%s/%s.%s", req.Prefix, imageID, ext)
	image := domain.NewImage(imageID, m.cfg.BucketName, objKey, req.Data, req.ContentType)
	image.Name = req.Name

	key, err := m.minioRepo.Upload(ctx, image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &usecase.UploadImageRes{Key: key, URL: m.PublicURL(key)}, nil
}

// FetchImage читает сохранённое изображение.
func (m *MinioInfrastructure) FetchImage(ctx context.Context, key string) ([]byte, error) {
	const op = "MinioInfrastructure.FetchImage"

	if key == "" {
		return nil, e.Wrap(op, e.ErrNoImage)
	}

	data, err := m.minioRepo.Get(ctx, key)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return data, nil
}

// PublicURL возвращает адрес, по которому клиенты получают объект.
func (m *MinioInfrastructure) PublicURL(key string) string {
	return m.cfg.PublicURL + "/" + key
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done() // сигнализируем завершение компенсации
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d keys", op, len(keys))

	// Создаём контекст с таймаутом на основе shutdownCtx
	ctx, cancel := context.WithTimeout(m.shutdownCtx, m.cfg.CleanupTimeout)
	defer cancel()

	for _, key := range keys {
		err := jitter.Retry(ctx, m.backoff, nil, nil, func(ctx context.Context) error {
			return m.minioRepo.Delete(ctx, key)
		})
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
			return
		}
		m.logger.Errorf(e.Wrap(op, err), "failed to delete object %s", key)
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

var _ usecase.ImagesInfra = (*MinioInfrastructure)(nil)
