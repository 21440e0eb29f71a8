package embedder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/jitter"
	"github.com/psms-tech/go-backend/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Методы внешнего энкодера. Изображение передаётся как BytesValue, текст как StringValue,
// вектор возвращается как ListValue чисел.
const (
	EncodeImageMethod = "/psms.encoder.v1.Encoder/EncodeImage"
	EncodeTextMethod  = "/psms.encoder.v1.Encoder/EncodeText"
)

// RemoteEncoder: клиент внешнего gRPC-энкодера с общим пространством текста и изображений.
type RemoteEncoder struct {
	conn    *grpc.ClientConn
	backoff jitter.Backoff
	logger  logger.Logger

	mu   sync.RWMutex
	info domain.BackendInfo
}

// DialRemoteEncoder подключается к энкодеру. Соединение устанавливается лениво при первом вызове.
func DialRemoteEncoder(addr, model string, maxRetries int, logger logger.Logger, opts ...grpc.DialOption) (*RemoteEncoder, error) {
	const op = "DialRemoteEncoder"

	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, e.Wrap(op, e.Unavailable(err))
	}

	return &RemoteEncoder{
		conn: conn,
		backoff: jitter.Backoff{
			Base:     200 * time.Millisecond,
			Max:      5 * time.Second,
			Attempts: max(maxRetries, 1),
			Factor:   jitter.DefaultJitter,
		},
		logger: logger,
		info: domain.BackendInfo{
			Kind:     domain.BackendRemote,
			Artifact: model,
			Text:     true,
		},
	}, nil
}

func (r *RemoteEncoder) Info() domain.BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

func (r *RemoteEncoder) Spec() InputSpec {
	return InputSpec{Layout: LayoutNone}
}

func (r *RemoteEncoder) EmbedImage(ctx context.Context, in *Input) ([]float32, error) {
	const op = "RemoteEncoder.EmbedImage"

	if len(in.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImage)
	}

	vec, err := r.invoke(ctx, EncodeImageMethod, wrapperspb.Bytes(in.Data))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return vec, nil
}

func (r *RemoteEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "RemoteEncoder.EmbedText"

	vec, err := r.invoke(ctx, EncodeTextMethod, wrapperspb.String(text))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return vec, nil
}

func (r *RemoteEncoder) Close() error {
	return r.conn.Close()
}

// invoke вызывает метод с повторами при временной недоступности энкодера.
func (r *RemoteEncoder) invoke(ctx context.Context, method string, req any) ([]float32, error) {
	res := &structpb.ListValue{}

	err := jitter.Retry(ctx, r.backoff, retryable,
		func(attempt int, delay time.Duration, err error) {
			r.logger.Warnf("remote encoder call %s failed, retrying in %v (attempt %d): %v", method, delay, attempt, err)
		},
		func(ctx context.Context) error {
			return r.conn.Invoke(ctx, method, req, res)
		},
	)
	if err != nil {
		if retryable(err) {
			return nil, e.Unavailable(err)
		}
		return nil, err
	}

	vec, err := toVector(res)
	if err != nil {
		return nil, err
	}

	r.observeDimension(len(vec))
	return vec, nil
}

// observeDimension запоминает размерность по первому ответу.
func (r *RemoteEncoder) observeDimension(dim int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info.Dimension == 0 {
		r.info.Dimension = dim
	}
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func toVector(list *structpb.ListValue) ([]float32, error) {
	values := list.GetValues()
	if len(values) == 0 {
		return nil, e.ErrEmptyVectors
	}

	vec := make([]float32, len(values))
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not a number", e.ErrUnexpectedOutputType, i)
		}
		vec[i] = float32(n.NumberValue)
	}
	return vec, nil
}

var _ TextEmbedder = (*RemoteEncoder)(nil)
