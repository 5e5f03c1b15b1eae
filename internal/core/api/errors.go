package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/opbuilder/internal/rules"
	"github.com/solatis/opbuilder/internal/types"
)

// invalidInput lists sentinels caused by the request itself.
var invalidInput = []error{
	types.ErrInvalidArgument,
	types.ErrMalformedEvent,
	types.ErrPayloadTooLarge,
	types.ErrBatchTooLarge,
}

// toStatus maps domain errors to gRPC status codes:
// build errors and bad input are INVALID_ARGUMENT, unknown definition sets
// are NOT_FOUND, context errors keep their meaning, and anything else
// (storage) is UNAVAILABLE.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var be *rules.BuildError
	if errors.As(err, &be) {
		return status.Error(codes.InvalidArgument, be.Error())
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	switch {
	case errors.Is(err, types.ErrDefinitionSetNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
