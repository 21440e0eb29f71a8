package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
)

// LensUC: распознавание предметов по фото и тексту.
type LensUC interface {
	Status(ctx context.Context) (*StatusRes, error)
	IdentifyImage(ctx context.Context, req *IdentifyImageReq) (*IdentifyRes, error)
	IdentifyText(ctx context.Context, req *IdentifyTextReq) (*IdentifyRes, error)
	Enroll(ctx context.Context, req *EnrollReq) (*EnrollRes, error)
	Unenroll(ctx context.Context, itemID uuid.UUID) (*UnenrollRes, error)
	Reindex(ctx context.Context) (*ReindexRes, error)
}

// ModelUC: управление установленными моделями.
type ModelUC interface {
	ListModels(ctx context.Context) ([]domain.ModelArtifact, error)
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
	DownloadModel(ctx context.Context, req *DownloadModelReq) (*domain.ModelArtifact, error)
	UploadModel(ctx context.Context, req *UploadModelReq) (*domain.ModelArtifact, error)
	ActivateModel(ctx context.Context, filename string) error
	DeleteModel(ctx context.Context, filename string) error
}
