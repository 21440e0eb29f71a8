package embedder

import (
	"context"

	"github.com/psms-tech/go-backend/internal/domain"
)

// Layout: порядок осей входного тензора.
type Layout int

const (
	LayoutNone Layout = iota // бэкенду нужен исходный файл изображения
	LayoutCHW
	LayoutHWC
)

// defaultInputSize используется, когда модель объявляет размер входа динамическим.
const defaultInputSize = 224

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}

	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// InputSpec описывает, как подготовить изображение для модели.
type InputSpec struct {
	Width, Height int
	Layout        Layout
	Mean, Std     [3]float32
	// ResizeMargin добавляется к большей стороне входа при масштабировании перед центральной обрезкой.
	ResizeMargin int
	Bicubic      bool
}

// Tensor: входной тензор с батчем из одного изображения.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Input: изображение, подготовленное по InputSpec бэкенда.
type Input struct {
	Data   []byte // исходный файл
	Tensor *Tensor
}

// Embedder превращает изображение в вектор признаков.
type Embedder interface {
	Info() domain.BackendInfo
	Spec() InputSpec
	EmbedImage(ctx context.Context, in *Input) ([]float32, error)
	Close() error
}

// TextEmbedder дополнительно кодирует текст в то же пространство, что и изображения.
type TextEmbedder interface {
	Embedder
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Factory создаёт бэкенды одного вида.
type Factory interface {
	Kind() domain.BackendKind
	// Describe возвращает сведения о бэкенде до его загрузки.
	Describe(filename string) domain.BackendInfo
	Load(ctx context.Context, filename string) (Embedder, error)
}

// specFromDims выводит размер и раскладку входа из формы первого входа модели.
// Форма вида [N,H,W,3] считается NHWC (EfficientNet-Lite), остальные 4-мерные как NCHW.
func specFromDims(dims []int64) InputSpec {
	spec := InputSpec{
		Width:        defaultInputSize,
		Height:       defaultInputSize,
		Layout:       LayoutCHW,
		Mean:         imageNetMean,
		Std:          imageNetStd,
		ResizeMargin: 32,
	}

	if len(dims) != 4 {
		return spec
	}

	h, w := dims[2], dims[3]
	if dims[3] == 3 && dims[1] != 3 {
		spec.Layout = LayoutHWC
		h, w = dims[1], dims[2]
	}

	if h > 0 {
		spec.Height = int(h)
	}
	if w > 0 {
		spec.Width = int(w)
	}

	return spec
}

// outputDimension возвращает длину выхода без оси батча или 0, если она динамическая.
func outputDimension(dims []int64) int {
	if len(dims) == 0 {
		return 0
	}

	start := 0
	if len(dims) > 1 {
		start = 1
	}

	size := 1
	for _, d := range dims[start:] {
		if d <= 0 {
			return 0
		}
		size *= int(d)
	}
	return size
}

// TensorShape возвращает форму тензора с батчем 1 для раскладки спецификации.
func (s InputSpec) TensorShape() []int64 {
	if s.Layout == LayoutHWC {
		return []int64{1, int64(s.Height), int64(s.Width), 3}
	}
	return []int64{1, 3, int64(s.Height), int64(s.Width)}
}
