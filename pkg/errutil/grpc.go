package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusBadRequest:           codes.InvalidArgument,
	StatusValidationFailed:     codes.InvalidArgument,
	StatusUnsupportedMediaType: codes.InvalidArgument,
	StatusUnauthorized:         codes.Unauthenticated,
	StatusPaymentRequired:      codes.FailedPrecondition,
	StatusUnprocessableEntity:  codes.FailedPrecondition,
	StatusForbidden:            codes.PermissionDenied,
	StatusNotFound:             codes.NotFound,
	StatusConflict:             codes.AlreadyExists,
	StatusPayloadTooLarge:      codes.ResourceExhausted,
	StatusTooManyRequests:      codes.ResourceExhausted,
	StatusClientClosedRequest:  codes.Canceled,
	StatusTimeout:              codes.DeadlineExceeded,
	StatusGatewayTimeout:       codes.DeadlineExceeded,
	StatusNotImplemented:       codes.Unimplemented,
	StatusBadGateway:           codes.Unavailable,
	StatusServiceUnavailable:   codes.Unavailable,
	StatusInternal:             codes.Internal,
}

// GRPCCode maps the CoreStatus onto a gRPC code. Unmapped statuses are Unknown.
func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError turns any error into a gRPC status error. Existing status errors pass through.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var base BaseError
	if errors.As(err, &base) {
		return status.Error(base.Code.GRPCCode(), base.messageWithErr())
	}

	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return status.Error(coder.Status().GRPCCode(), err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
