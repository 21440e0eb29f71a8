package extractor

import (
	"image"

	"github.com/psms-tech/go-backend/internal/infrastructure/embedder"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// preprocess масштабирует изображение так, чтобы меньшая сторона стала max(H, W)+margin,
// вырезает центр нужного размера и нормализует каналы в тензор с батчем 1.
// Масштабированное изображение целиком не строится: аффинное преобразование
// сразу отображает центральную область источника в буфер W×H.
func preprocess(img *image.RGBA, spec embedder.InputSpec) *embedder.Tensor {
	w, h := spec.Width, spec.Height
	srcW, srcH := img.Bounds().Dx(), img.Bounds().Dy()

	target := float64(max(w, h) + spec.ResizeMargin)
	ratio := target / float64(min(srcW, srcH))
	newW := max(int(float64(srcW)*ratio), w)
	newH := max(int(float64(srcH)*ratio), h)

	left := (newW - w) / 2
	top := (newH - h) / 2

	kernel := draw.BiLinear
	if spec.Bicubic {
		kernel = draw.CatmullRom
	}

	// источник -> кадр: масштаб по осям и сдвиг на левый верхний угол кропа
	sx := float64(newW) / float64(srcW)
	sy := float64(newH) / float64(srcH)
	origin := img.Bounds().Min
	s2d := f64.Aff3{
		sx, 0, -float64(left) - sx*float64(origin.X),
		0, sy, -float64(top) - sy*float64(origin.Y),
	}

	cropped := image.NewRGBA(image.Rect(0, 0, w, h))
	kernel.Transform(cropped, s2d, img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		row := cropped.Pix[y*cropped.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				v := (float32(px[c])/255 - spec.Mean[c]) / spec.Std[c]
				if spec.Layout == embedder.LayoutHWC {
					data[(y*w+x)*3+c] = v
				} else {
					data[c*plane+y*w+x] = v
				}
			}
		}
	}

	return &embedder.Tensor{Data: data, Shape: spec.TensorShape()}
}
