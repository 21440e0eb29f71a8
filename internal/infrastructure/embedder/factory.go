package embedder

import (
	"context"
	"fmt"

	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

// ModelPaths разрешает имя файла модели в путь, при необходимости скачивая модель по умолчанию.
type ModelPaths interface {
	Ensure(ctx context.Context, filename string) (string, error)
}

// NewFactory выбирает фабрику бэкендов по настройке LENS_BACKEND.
func NewFactory(c *cfg.LensCfg, paths ModelPaths, logger logger.Logger) (Factory, error) {
	switch c.Backend {
	case domain.BackendClassifier, "":
		return &classifierFactory{paths: paths, ortLib: c.OrtLibPath}, nil
	case domain.BackendCLIP:
		if c.ClipTextModelDir == "" {
			return nil, fmt.Errorf("%w: LENS_CLIP_TEXT_MODEL_DIR is required for the clip backend", e.ErrIncorrectEnvVariable)
		}
		return &clipFactory{paths: paths, ortLib: c.OrtLibPath, textDir: c.ClipTextModelDir}, nil
	case domain.BackendRemote:
		if c.RemoteAddr == "" {
			return nil, fmt.Errorf("%w: LENS_REMOTE_ADDR is required for the remote backend", e.ErrIncorrectEnvVariable)
		}
		return &remoteFactory{addr: c.RemoteAddr, model: c.RemoteModel, retries: c.RemoteMaxRetries, logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown LENS_BACKEND %q", e.ErrIncorrectEnvVariable, c.Backend)
	}
}

type classifierFactory struct {
	paths  ModelPaths
	ortLib string
}

func (f *classifierFactory) Kind() domain.BackendKind { return domain.BackendClassifier }

func (f *classifierFactory) Describe(filename string) domain.BackendInfo {
	return domain.BackendInfo{Kind: domain.BackendClassifier, Artifact: filename}
}

func (f *classifierFactory) Load(ctx context.Context, filename string) (Embedder, error) {
	path, err := f.paths.Ensure(ctx, filename)
	if err != nil {
		return nil, err
	}
	if err := initORT(f.ortLib); err != nil {
		return nil, e.Unavailable(err)
	}
	return NewClassifierEmbedder(path, filename)
}

type clipFactory struct {
	paths   ModelPaths
	ortLib  string
	textDir string
}

func (f *clipFactory) Kind() domain.BackendKind { return domain.BackendCLIP }

func (f *clipFactory) Describe(filename string) domain.BackendInfo {
	return domain.BackendInfo{Kind: domain.BackendCLIP, Artifact: filename, Text: true}
}

func (f *clipFactory) Load(ctx context.Context, filename string) (Embedder, error) {
	path, err := f.paths.Ensure(ctx, filename)
	if err != nil {
		return nil, err
	}
	if err := initORT(f.ortLib); err != nil {
		return nil, e.Unavailable(err)
	}
	return NewClipEmbedder(path, filename, f.textDir)
}

// remoteFactory не использует локальные файлы моделей: артефактом служит имя модели энкодера.
type remoteFactory struct {
	addr    string
	model   string
	retries int
	logger  logger.Logger
}

func (f *remoteFactory) Kind() domain.BackendKind { return domain.BackendRemote }

func (f *remoteFactory) Describe(string) domain.BackendInfo {
	return domain.BackendInfo{Kind: domain.BackendRemote, Artifact: f.model, Text: true}
}

func (f *remoteFactory) Load(context.Context, string) (Embedder, error) {
	return DialRemoteEncoder(f.addr, f.model, f.retries, f.logger)
}
