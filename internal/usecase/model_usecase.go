package usecase

import (
	"context"
	"net/url"

	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

// ModelUseCase управляет установленными моделями через провайдер.
type ModelUseCase struct {
	provider ModelProvider
	logger   logger.Logger
}

func NewModelUC(provider ModelProvider, logger logger.Logger) *ModelUseCase {
	return &ModelUseCase{provider: provider, logger: logger}
}

func (m *ModelUseCase) ListModels(ctx context.Context) ([]domain.ModelArtifact, error) {
	const op = "ModelUseCase.ListModels"

	models, err := m.provider.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return models, nil
}

func (m *ModelUseCase) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	const op = "ModelUseCase.Catalog"

	catalog, err := m.provider.Catalog(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return catalog, nil
}

// DownloadModel скачивает модель по ссылке, не активируя её.
func (m *ModelUseCase) DownloadModel(ctx context.Context, req *DownloadModelReq) (*domain.ModelArtifact, error) {
	const op = "ModelUseCase.DownloadModel"

	if !domain.ValidModelFilename(req.Filename) {
		return nil, e.Wrap(op, e.ErrInvalidModelFilename)
	}

	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, e.Wrap(op, e.ErrInvalidURL)
	}

	artifact, err := m.provider.Download(ctx, req.URL, req.Filename)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	m.logger.Infof("model %s downloaded (%.1f MB)", artifact.Filename, artifact.SizeMB)
	return artifact, nil
}

// UploadModel сохраняет присланный файл модели, не активируя его.
func (m *ModelUseCase) UploadModel(ctx context.Context, req *UploadModelReq) (*domain.ModelArtifact, error) {
	const op = "ModelUseCase.UploadModel"

	if !domain.ValidModelFilename(req.Filename) {
		return nil, e.Wrap(op, e.ErrInvalidModelFilename)
	}
	if len(req.Data) == 0 {
		return nil, e.Wrap(op, e.ErrMissingFields)
	}

	artifact, err := m.provider.Upload(ctx, req.Filename, req.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	m.logger.Infof("model %s uploaded (%.1f MB)", artifact.Filename, artifact.SizeMB)
	return artifact, nil
}

func (m *ModelUseCase) ActivateModel(ctx context.Context, filename string) error {
	const op = "ModelUseCase.ActivateModel"

	if !domain.ValidModelFilename(filename) {
		return e.Wrap(op, e.ErrInvalidModelFilename)
	}

	if err := m.provider.Activate(ctx, filename); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

func (m *ModelUseCase) DeleteModel(ctx context.Context, filename string) error {
	const op = "ModelUseCase.DeleteModel"

	if !domain.ValidModelFilename(filename) {
		return e.Wrap(op, e.ErrInvalidModelFilename)
	}

	if err := m.provider.Delete(ctx, filename); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

var _ ModelUC = (*ModelUseCase)(nil)
