package grpc

import (
	"errors"

	"github.com/psms-tech/go-backend/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxErrorMessage = 200

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrInvalidOperation):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, e.ErrUnsupportedOperation):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, e.ErrModelUnavailable):
		return status.Error(codes.Unavailable, truncate(err.Error()))
	case errors.Is(err, e.ErrExtractionFailed):
		return status.Error(codes.Internal, truncate(err.Error()))
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorMessage {
		return s
	}
	return string(r[:maxErrorMessage])
}
