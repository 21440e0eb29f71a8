package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
)

// clipSampleText кодируется при загрузке, чтобы сверить размерности башен.
const clipSampleText = "a photo of an object"

// ClipEmbedder объединяет два энкодера: визуальную башню через ONNX Runtime
// и текстовую через конвейер извлечения признаков hugot.
type ClipEmbedder struct {
	vision   *onnxSession
	spec     InputSpec
	info     domain.BackendInfo
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline

	// mu сериализует инференс текстовой башни
	mu sync.Mutex
}

func NewClipEmbedder(visionPath, filename, textModelDir string) (*ClipEmbedder, error) {
	const op = "NewClipEmbedder"

	vision, err := newONNXSession(visionPath)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		_ = vision.close()
		return nil, e.Wrap(op, e.Unavailable(err))
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: textModelDir,
		Name:      "lens-clip-text",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		_ = vision.close()
		return nil, e.Wrap(op, e.Unavailable(err))
	}

	spec := specFromDims(vision.inputDims)
	spec.Mean, spec.Std = clipMean, clipStd
	spec.ResizeMargin = 0
	spec.Bicubic = true

	c := &ClipEmbedder{
		vision:   vision,
		spec:     spec,
		session:  session,
		pipeline: pipeline,
		info: domain.BackendInfo{
			Kind:      domain.BackendCLIP,
			Artifact:  filename,
			Dimension: vision.dimension,
			Text:      true,
		},
	}

	sample, err := c.EmbedText(context.Background(), clipSampleText)
	if err != nil {
		_ = c.Close()
		return nil, e.Wrap(op, e.Unavailable(err))
	}
	if c.info.Dimension > 0 && len(sample) != c.info.Dimension {
		_ = c.Close()
		return nil, e.Wrap(op, e.Unavailable(fmt.Errorf("%w: text tower %d, vision tower %d",
			e.ErrDimensionMismatch, len(sample), c.info.Dimension)))
	}
	c.info.Dimension = len(sample)

	return c, nil
}

func (c *ClipEmbedder) Info() domain.BackendInfo { return c.info }

func (c *ClipEmbedder) Spec() InputSpec { return c.spec }

func (c *ClipEmbedder) EmbedImage(ctx context.Context, in *Input) ([]float32, error) {
	return c.vision.run(ctx, in.Tensor)
}

func (c *ClipEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "ClipEmbedder.EmbedText"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(result.Embeddings) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyVectors)
	}

	return result.Embeddings[0], nil
}

func (c *ClipEmbedder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errors.Join(c.vision.close(), c.session.Destroy())
}

var _ TextEmbedder = (*ClipEmbedder)(nil)
