package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type stubLens struct {
	usecase.LensUC
	imageReq *usecase.IdentifyImageReq
	textReq  *usecase.IdentifyTextReq
	err      error
	panic    bool
}

func (s *stubLens) Status(context.Context) (*usecase.StatusRes, error) {
	if s.panic {
		panic("boom")
	}
	return &usecase.StatusRes{ModelReady: true, Backend: "clip/vision.onnx", EnrolledItems: 4, TotalReferenceImages: 7}, nil
}

func (s *stubLens) IdentifyText(_ context.Context, req *usecase.IdentifyTextReq) (*usecase.IdentifyRes, error) {
	s.textReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.IdentifyRes{Matches: []usecase.Match{}, Message: "No items are enrolled for Visual Lens yet."}, nil
}

func (s *stubLens) IdentifyImage(_ context.Context, req *usecase.IdentifyImageReq) (*usecase.IdentifyRes, error) {
	s.imageReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.IdentifyRes{Matches: []usecase.Match{{
		Confidence: 50,
		Similarity: 0.8,
		Item:       usecase.ItemInfo{ID: uuid.New(), Name: "Lamp", Tags: []string{"light"}},
	}}}, nil
}

func dial(t *testing.T, lens *stubLens) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	log := logger.NewSlogLoggerWithWriter(io.Discard, slog.LevelError)
	srv := NewGRPCServer(nil, log)
	srv.RegisterServices(lens)
	go func() { _ = srv.server.Serve(lis) }()
	t.Cleanup(srv.server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestLensService_Status(t *testing.T) {
	conn := dial(t, &stubLens{})

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), "/psms.lens.v1.VisualLens/Status", &emptypb.Empty{}, out))

	m := out.AsMap()
	assert.Equal(t, true, m["model_ready"])
	assert.Equal(t, float64(4), m["enrolled_items"])
	assert.Equal(t, float64(7), m["total_reference_images"])
}

func TestLensService_IdentifyImageWithLimit(t *testing.T) {
	lens := &stubLens{}
	conn := dial(t, lens)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "limit", "3")
	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/psms.lens.v1.VisualLens/IdentifyImage", wrapperspb.Bytes([]byte("img")), out))

	require.NotNil(t, lens.imageReq)
	assert.Equal(t, 3, lens.imageReq.Limit)
	assert.Equal(t, []byte("img"), lens.imageReq.Data)

	matches := out.AsMap()["matches"].([]any)
	require.Len(t, matches, 1)
	item := matches[0].(map[string]any)["item"].(map[string]any)
	assert.Equal(t, "Lamp", item["name"])
	assert.Equal(t, []any{"light"}, item["tags"])
}

func TestLensService_IdentifyText(t *testing.T) {
	lens := &stubLens{}
	conn := dial(t, lens)

	req, err := structpb.NewStruct(map[string]any{"query": "red lamp", "limit": 2})
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), "/psms.lens.v1.VisualLens/IdentifyText", req, out))
	assert.Equal(t, "red lamp", lens.textReq.Query)
	assert.Equal(t, 2, lens.textReq.Limit)
	assert.Equal(t, "No items are enrolled for Visual Lens yet.", out.AsMap()["message"])
}

func TestLensService_ErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{e.ErrNoTextEncoder, codes.Unimplemented},
		{e.ErrEmptyQuery, codes.InvalidArgument},
		{e.Unavailable(io.ErrUnexpectedEOF), codes.Unavailable},
		{io.ErrClosedPipe, codes.Internal},
	}

	for _, tt := range tests {
		conn := dial(t, &stubLens{err: tt.err})
		req, _ := structpb.NewStruct(map[string]any{"query": "x"})

		err := conn.Invoke(context.Background(), "/psms.lens.v1.VisualLens/IdentifyText", req, &structpb.Struct{})
		assert.Equal(t, tt.code, status.Code(err), tt.err.Error())
	}
}

func TestLensService_BadLimitMetadata(t *testing.T) {
	conn := dial(t, &stubLens{})

	ctx := metadata.AppendToOutgoingContext(context.Background(), "limit", "lots")
	err := conn.Invoke(ctx, "/psms.lens.v1.VisualLens/IdentifyImage", wrapperspb.Bytes([]byte("img")), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLensService_PanicRecovered(t *testing.T) {
	conn := dial(t, &stubLens{panic: true})

	err := conn.Invoke(context.Background(), "/psms.lens.v1.VisualLens/Status", &emptypb.Empty{}, &structpb.Struct{})
	assert.Equal(t, codes.Internal, status.Code(err))
}
