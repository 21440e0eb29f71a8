package embedder

import (
	"context"

	"github.com/psms-tech/go-backend/internal/domain"
)

// ClassifierEmbedder использует логиты классификатора ONNX как вектор признаков.
type ClassifierEmbedder struct {
	session *onnxSession
	spec    InputSpec
	info    domain.BackendInfo
}

func NewClassifierEmbedder(path, filename string) (*ClassifierEmbedder, error) {
	session, err := newONNXSession(path)
	if err != nil {
		return nil, err
	}

	return &ClassifierEmbedder{
		session: session,
		spec:    specFromDims(session.inputDims),
		info: domain.BackendInfo{
			Kind:      domain.BackendClassifier,
			Artifact:  filename,
			Dimension: session.dimension,
		},
	}, nil
}

func (c *ClassifierEmbedder) Info() domain.BackendInfo { return c.info }

func (c *ClassifierEmbedder) Spec() InputSpec { return c.spec }

func (c *ClassifierEmbedder) EmbedImage(ctx context.Context, in *Input) ([]float32, error) {
	return c.session.run(ctx, in.Tensor)
}

func (c *ClassifierEmbedder) Close() error {
	return c.session.close()
}

var _ Embedder = (*ClassifierEmbedder)(nil)
