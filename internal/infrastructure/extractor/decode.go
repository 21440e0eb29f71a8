package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/psms-tech/go-backend/pkg/e"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels ограничивает размер декодируемого изображения (около 50 Мп).
const maxImagePixels = 50_000_000

// decode декодирует изображение и переводит его в RGB на белом фоне.
// Размеры проверяются по заголовку до выделения буфера пикселей.
func decode(data []byte) (*image.RGBA, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(err.Error(), e.ErrCorruptImage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, e.ErrCorruptImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", e.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(err.Error(), e.ErrCorruptImage)
	}
	return toRGB(src), nil
}

// toRGB накладывает изображение на белый фон, убирая прозрачность.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
