package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecFromDims(t *testing.T) {
	tests := []struct {
		name   string
		dims   []int64
		w, h   int
		layout Layout
	}{
		{"nchw", []int64{1, 3, 224, 224}, 224, 224, LayoutCHW},
		{"nchw dynamic", []int64{-1, 3, -1, -1}, 224, 224, LayoutCHW},
		{"nchw non square", []int64{1, 3, 240, 320}, 320, 240, LayoutCHW},
		{"nhwc efficientnet", []int64{1, 224, 224, 3}, 224, 224, LayoutHWC},
		{"nhwc dynamic batch", []int64{-1, 280, 280, 3}, 280, 280, LayoutHWC},
		{"not 4d", []int64{1, 150528}, 224, 224, LayoutCHW},
		{"unknown", nil, 224, 224, LayoutCHW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := specFromDims(tt.dims)
			assert.Equal(t, tt.w, spec.Width)
			assert.Equal(t, tt.h, spec.Height)
			assert.Equal(t, tt.layout, spec.Layout)
			assert.Equal(t, 32, spec.ResizeMargin)
			assert.Equal(t, imageNetMean, spec.Mean)
		})
	}
}

func TestTensorShape(t *testing.T) {
	spec := InputSpec{Width: 320, Height: 240, Layout: LayoutCHW}
	assert.Equal(t, []int64{1, 3, 240, 320}, spec.TensorShape())

	spec.Layout = LayoutHWC
	assert.Equal(t, []int64{1, 240, 320, 3}, spec.TensorShape())
}

func TestOutputDimension(t *testing.T) {
	assert.Equal(t, 1000, outputDimension([]int64{1, 1000}))
	assert.Equal(t, 1000, outputDimension([]int64{-1, 1000}))
	assert.Equal(t, 512, outputDimension([]int64{1, 512, 1, 1}))
	assert.Equal(t, 0, outputDimension([]int64{1, -1}))
	assert.Equal(t, 7, outputDimension([]int64{7}))
	assert.Equal(t, 0, outputDimension(nil))
}
