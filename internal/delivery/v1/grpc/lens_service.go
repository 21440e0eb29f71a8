package grpc

import (
	"context"
	"strconv"

	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Сервис psms.lens.v1.VisualLens построен на well-known типах protobuf:
// Status(Empty) -> Struct, IdentifyText(Struct{query, limit}) -> Struct,
// IdentifyImage(BytesValue) -> Struct, лимит передаётся в метаданных "limit".
const (
	visualLensService = "psms.lens.v1.VisualLens"
	limitMetadataKey  = "limit"
)

type VisualLensServer interface {
	Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	IdentifyText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IdentifyImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
}

type LensService struct {
	lensUC usecase.LensUC
	logger logger.Logger
}

func NewLensService(lensUC usecase.LensUC, logger logger.Logger) *LensService {
	return &LensService{lensUC: lensUC, logger: logger}
}

func RegisterVisualLensServer(s grpc.ServiceRegistrar, srv VisualLensServer) {
	s.RegisterService(&visualLensServiceDesc, srv)
}

func (g *LensService) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	const op = "grpc.Status"

	res, err := g.lensUC.Status(ctx)
	if err != nil {
		return nil, g.fail(op, err)
	}

	return structpb.NewStruct(map[string]any{
		"model_ready":            res.ModelReady,
		"active_model":           res.ActiveModel,
		"backend":                res.Backend,
		"enrolled_items":         res.EnrolledItems,
		"total_reference_images": res.TotalReferenceImages,
		"stale_embeddings":       res.StaleEmbeddings,
	})
}

func (g *LensService) IdentifyText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.IdentifyText"

	fields := req.GetFields()
	res, err := g.lensUC.IdentifyText(ctx, &usecase.IdentifyTextReq{
		Query: fields["query"].GetStringValue(),
		Limit: int(fields["limit"].GetNumberValue()),
	})
	if err != nil {
		return nil, g.fail(op, err)
	}

	return toGRPCIdentifyRes(res)
}

func (g *LensService) IdentifyImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	const op = "grpc.IdentifyImage"

	limit, err := limitFromMetadata(ctx)
	if err != nil {
		return nil, g.fail(op, err)
	}

	res, err := g.lensUC.IdentifyImage(ctx, &usecase.IdentifyImageReq{Data: req.GetValue(), Limit: limit})
	if err != nil {
		return nil, g.fail(op, err)
	}

	return toGRPCIdentifyRes(res)
}

func (g *LensService) fail(op string, err error) error {
	g.logger.Errorf(e.Wrap(op, err), "%s", op)
	return GRPCErrorResponse(e.Wrap(op, err))
}

func limitFromMetadata(ctx context.Context) (int, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md.Get(limitMetadataKey)) == 0 {
		return 0, nil
	}

	raw := md.Get(limitMetadataKey)[0]
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, e.Wrap(raw, e.ErrInvalidLimit)
	}
	return limit, nil
}

func toGRPCIdentifyRes(res *usecase.IdentifyRes) (*structpb.Struct, error) {
	matches := make([]any, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, map[string]any{
			"confidence":      m.Confidence,
			"similarity":      m.Similarity,
			"reference_image": m.ReferenceImage,
			"item":            toGRPCItem(m.Item),
		})
	}

	out := map[string]any{"matches": matches}
	if res.Message != "" {
		out["message"] = res.Message
	}
	return structpb.NewStruct(out)
}

func toGRPCItem(item usecase.ItemInfo) map[string]any {
	tags := make([]any, 0, len(item.Tags))
	for _, t := range item.Tags {
		tags = append(tags, t)
	}

	out := map[string]any{
		"id":            item.ID.String(),
		"name":          item.Name,
		"description":   item.Description,
		"category":      item.Category,
		"image_url":     item.ImageURL,
		"location_name": item.LocationName,
		"tags":          tags,
	}
	if item.LocationID != nil {
		out["location_id"] = item.LocationID.String()
	}
	return out
}

var visualLensServiceDesc = grpc.ServiceDesc{
	ServiceName: visualLensService,
	HandlerType: (*VisualLensServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "IdentifyText", Handler: identifyTextHandler},
		{MethodName: "IdentifyImage", Handler: identifyImageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "psms/lens/v1/lens.proto",
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisualLensServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + visualLensService + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisualLensServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func identifyTextHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisualLensServer).IdentifyText(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + visualLensService + "/IdentifyText"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisualLensServer).IdentifyText(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func identifyImageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisualLensServer).IdentifyImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + visualLensService + "/IdentifyImage"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisualLensServer).IdentifyImage(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var _ VisualLensServer = (*LensService)(nil)
