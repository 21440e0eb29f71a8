package embedder

import (
	"context"
	"fmt"

	"github.com/psms-tech/go-backend/pkg/e"
	ort "github.com/yalue/onnxruntime_go"
)

// onnxSession: сессия ONNX Runtime с одним входом и одним выходом.
type onnxSession struct {
	session   *ort.DynamicAdvancedSession
	inputDims []int64
	dimension int
}

func newONNXSession(path string) (*onnxSession, error) {
	const op = "newONNXSession"

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, e.Wrap(op, e.Unavailable(err))
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, e.Wrap(op, e.Unavailable(fmt.Errorf("model %s has no inputs or outputs", path)))
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, e.Wrap(op, e.Unavailable(err))
	}

	return &onnxSession{
		session:   session,
		inputDims: inputs[0].Dimensions,
		dimension: outputDimension(outputs[0].Dimensions),
	}, nil
}

// run выполняет инференс и возвращает выход, развёрнутый в плоский вектор.
func (s *onnxSession) run(ctx context.Context, in *Tensor) ([]float32, error) {
	const op = "onnxSession.run"

	if in == nil {
		return nil, e.Wrap(op, e.ErrMissingFields)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	input, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, e.Wrap(op, err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, e.Wrap(op, e.ErrUnexpectedOutputType)
	}

	// Данные тензора освобождаются вместе с ним
	data := out.GetData()
	vec := make([]float32, len(data))
	copy(vec, data)

	return vec, nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}
