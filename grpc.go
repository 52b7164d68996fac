package twirp

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This file bridges Twirp errors and gRPC status errors, so that service
// implementations shared between a Twirp server and a gRPC server surface
// the same failure semantics on both, and so that callers holding a *Error
// can hand it to gRPC-aware machinery.

// GRPCCodeFromErrorCode translates a Twirp error code into the closest gRPC
// code:
//
//	Canceled           -> Canceled
//	Unknown            -> Unknown
//	InvalidArgument    -> InvalidArgument
//	Malformed          -> InvalidArgument
//	DeadlineExceeded   -> DeadlineExceeded
//	NotFound           -> NotFound
//	BadRoute           -> Unimplemented
//	AlreadyExists      -> AlreadyExists
//	PermissionDenied   -> PermissionDenied
//	Unauthenticated    -> Unauthenticated
//	ResourceExhausted  -> ResourceExhausted
//	FailedPrecondition -> FailedPrecondition
//	Aborted            -> Aborted
//	OutOfRange         -> OutOfRange
//	Unimplemented      -> Unimplemented
//	Internal           -> Internal
//	Unavailable        -> Unavailable
//	DataLoss           -> DataLoss
//
// Malformed and BadRoute have no gRPC equivalent; they are reported as
// InvalidArgument and Unimplemented, which is what a gRPC server replies for
// an undecodable request or an unknown method. Unrecognized codes translate
// to Unknown.
func GRPCCodeFromErrorCode(code ErrorCode) codes.Code {
	switch code {
	case NoError:
		return codes.OK
	case Canceled:
		return codes.Canceled
	case Unknown:
		return codes.Unknown
	case InvalidArgument:
		return codes.InvalidArgument
	case Malformed:
		return codes.InvalidArgument
	case DeadlineExceeded:
		return codes.DeadlineExceeded
	case NotFound:
		return codes.NotFound
	case BadRoute:
		return codes.Unimplemented
	case AlreadyExists:
		return codes.AlreadyExists
	case PermissionDenied:
		return codes.PermissionDenied
	case Unauthenticated:
		return codes.Unauthenticated
	case ResourceExhausted:
		return codes.ResourceExhausted
	case FailedPrecondition:
		return codes.FailedPrecondition
	case Aborted:
		return codes.Aborted
	case OutOfRange:
		return codes.OutOfRange
	case Unimplemented:
		return codes.Unimplemented
	case Internal:
		return codes.Internal
	case Unavailable:
		return codes.Unavailable
	case DataLoss:
		return codes.DataLoss
	default:
		return codes.Unknown
	}
}

// ErrorCodeFromGRPCCode translates a gRPC code into the corresponding Twirp
// error code. Every gRPC code has a direct Twirp counterpart; OK translates
// to NoError.
func ErrorCodeFromGRPCCode(code codes.Code) ErrorCode {
	switch code {
	case codes.OK:
		return NoError
	case codes.Canceled:
		return Canceled
	case codes.Unknown:
		return Unknown
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.DeadlineExceeded:
		return DeadlineExceeded
	case codes.NotFound:
		return NotFound
	case codes.AlreadyExists:
		return AlreadyExists
	case codes.PermissionDenied:
		return PermissionDenied
	case codes.Unauthenticated:
		return Unauthenticated
	case codes.ResourceExhausted:
		return ResourceExhausted
	case codes.FailedPrecondition:
		return FailedPrecondition
	case codes.Aborted:
		return Aborted
	case codes.OutOfRange:
		return OutOfRange
	case codes.Unimplemented:
		return Unimplemented
	case codes.Internal:
		return Internal
	case codes.Unavailable:
		return Unavailable
	case codes.DataLoss:
		return DataLoss
	default:
		return Unknown
	}
}

// GRPCStatus returns the error as a gRPC status, which makes *Error values
// transparent to status.FromError and friends.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(GRPCCodeFromErrorCode(e.code), e.msg)
}

// errorFromGRPCError converts a gRPC status error into a *Error, or returns
// nil if err does not carry a gRPC status. The original error is retained as
// the cause.
func errorFromGRPCError(err error) *Error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return nil
	}
	return NewError(ErrorCodeFromGRPCCode(st.Code()), st.Message()).withCauseOnly(err)
}
