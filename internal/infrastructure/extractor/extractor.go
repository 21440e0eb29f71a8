package extractor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/psms-tech/go-backend/internal/infrastructure/embedder"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/psms-tech/go-backend/pkg/vecmath"
	"golang.org/x/sync/semaphore"
)

// Backends выдаёт загруженный бэкенд на время одного инференса.
type Backends interface {
	Acquire(ctx context.Context) (embedder.Embedder, func(), error)
}

// Extractor декодирует изображение, удаляет фон, готовит тензор,
// запускает инференс и нормирует вектор.
type Extractor struct {
	backends Backends
	remover  BackgroundRemover
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   logger.Logger
}

// New создаёт конвейер. remover может быть nil; maxConcurrent ограничивает число одновременных инференсов.
func New(backends Backends, remover BackgroundRemover, maxConcurrent int, timeout time.Duration, logger logger.Logger) *Extractor {
	return &Extractor{
		backends: backends,
		remover:  remover,
		sem:      semaphore.NewWeighted(int64(max(maxConcurrent, 1))),
		timeout:  timeout,
		logger:   logger,
	}
}

// ExtractImage возвращает нормированный вектор признаков изображения.
func (x *Extractor) ExtractImage(ctx context.Context, data []byte) (*usecase.Features, error) {
	const op = "Extractor.ExtractImage"

	ctx, release, err := x.begin(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer release()

	emb, done, err := x.backends.Acquire(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer done()

	in := &embedder.Input{Data: data}
	if spec := emb.Spec(); spec.Layout != embedder.LayoutNone {
		img, err := x.prepareImage(ctx, data)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		in.Tensor = preprocess(img, spec)
	}

	vec, err := emb.EmbedImage(ctx, in)
	if err != nil {
		return nil, e.Wrap(op, e.Extraction(err))
	}

	features, err := finalize(vec, emb)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return features, nil
}

// ExtractText кодирует текст в пространство изображений. Доступно только совместным бэкендам.
func (x *Extractor) ExtractText(ctx context.Context, text string) (*usecase.Features, error) {
	const op = "Extractor.ExtractText"

	ctx, release, err := x.begin(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer release()

	emb, done, err := x.backends.Acquire(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer done()

	textEmb, ok := emb.(embedder.TextEmbedder)
	if !ok || !emb.Info().Kind.Joint() {
		return nil, e.Wrap(op, e.ErrNoTextEncoder)
	}

	vec, err := textEmb.EmbedText(ctx, text)
	if err != nil {
		return nil, e.Wrap(op, e.Extraction(err))
	}

	features, err := finalize(vec, emb)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return features, nil
}

// begin ограничивает параллелизм и длительность инференса.
func (x *Extractor) begin(ctx context.Context) (context.Context, func(), error) {
	if err := x.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}

	cancel := context.CancelFunc(func() {})
	if x.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
	}

	return ctx, func() {
		cancel()
		x.sem.Release(1)
	}, nil
}

// prepareImage декодирует изображение и пытается убрать фон.
// Если удаление фона не удалось, используется исходное изображение.
func (x *Extractor) prepareImage(ctx context.Context, data []byte) (*image.RGBA, error) {
	original, err := decode(data)
	if err != nil {
		return nil, err
	}

	if x.remover == nil {
		return original, nil
	}

	out, err := x.remover.Remove(ctx, data)
	if err != nil {
		x.logger.Debugf("background removal skipped: %v", err)
		return original, nil
	}

	img, err := decode(out)
	if err != nil {
		x.logger.Warnf("background remover returned undecodable image: %v", err)
		return original, nil
	}
	return img, nil
}

func finalize(vec []float32, emb embedder.Embedder) (*usecase.Features, error) {
	info := emb.Info()

	if len(vec) == 0 {
		return nil, e.ErrEmptyVectors
	}
	if !vecmath.Finite(vec) {
		return nil, fmt.Errorf("%w: backend %s", e.ErrNonFiniteVector, info.Key())
	}
	if info.Dimension > 0 && len(vec) != info.Dimension {
		return nil, fmt.Errorf("%w: got %d, backend %s declares %d", e.ErrDimensionMismatch, len(vec), info.Key(), info.Dimension)
	}

	normalized := vecmath.Normalize(vec)
	if !vecmath.Finite(normalized) {
		return nil, fmt.Errorf("%w: backend %s", e.ErrNonFiniteVector, info.Key())
	}

	info.Dimension = len(vec)
	return &usecase.Features{Vector: normalized, Backend: info}, nil
}
