package twirp

import "net/http"

// ErrorCode is one of the fixed Twirp error codes. The zero value is not a
// valid code; codes arriving from the wire that are not in the set below are
// coerced to Unknown rather than kept.
type ErrorCode string

// Valid error codes. These mirror the wire-level strings exactly.
const (
	// Canceled indicates the operation was cancelled (typically by the caller).
	Canceled ErrorCode = "canceled"

	// Unknown error. For example when handling errors raised by APIs that do
	// not return enough error information.
	Unknown ErrorCode = "unknown"

	// InvalidArgument indicates the client specified an invalid argument.
	// It indicates arguments that are problematic regardless of the state of
	// the system (i.e. a malformed file name, required argument, number out
	// of range, etc.).
	InvalidArgument ErrorCode = "invalid_argument"

	// Malformed indicates the client sent a message which could not be
	// decoded. This may mean that the message was encoded improperly or that
	// the client and server have incompatible message definitions.
	Malformed ErrorCode = "malformed"

	// DeadlineExceeded means the operation expired before completion. For
	// operations that change the state of the system, this error may be
	// returned even if the operation has completed successfully (timeout).
	DeadlineExceeded ErrorCode = "deadline_exceeded"

	// NotFound means some requested entity was not found.
	NotFound ErrorCode = "not_found"

	// BadRoute means that the requested URL path wasn't routable to a Twirp
	// service and method. This is returned by generated server code and by
	// the gateway; application code should use NotFound or Unimplemented
	// instead.
	BadRoute ErrorCode = "bad_route"

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists ErrorCode = "already_exists"

	// PermissionDenied indicates the caller does not have permission to
	// execute the specified operation. It must not be used if the caller
	// cannot be identified (Unauthenticated).
	PermissionDenied ErrorCode = "permission_denied"

	// Unauthenticated indicates the request does not have valid
	// authentication credentials for the operation.
	Unauthenticated ErrorCode = "unauthenticated"

	// ResourceExhausted indicates some resource has been exhausted or
	// rate-limited, perhaps a per-user quota, or perhaps the entire file
	// system is out of space.
	ResourceExhausted ErrorCode = "resource_exhausted"

	// FailedPrecondition indicates operation was rejected because the system
	// is not in a state required for the operation's execution. For example,
	// doing an rmdir operation on a directory that is non-empty.
	FailedPrecondition ErrorCode = "failed_precondition"

	// Aborted indicates the operation was aborted, typically due to a
	// concurrency issue like sequencer check failures, transaction aborts,
	// etc.
	Aborted ErrorCode = "aborted"

	// OutOfRange means operation was attempted past the valid range. For
	// example, seeking or reading past end of a paginated collection.
	OutOfRange ErrorCode = "out_of_range"

	// Unimplemented indicates the operation is not implemented or not
	// supported/enabled in this service.
	Unimplemented ErrorCode = "unimplemented"

	// Internal errors. When some invariants expected by the underlying system
	// have been broken. In other words, something bad happened in the library
	// or backend service. Twirp specific issues like wire and serialization
	// problems are also reported as Internal errors.
	Internal ErrorCode = "internal"

	// Unavailable indicates the service is currently unavailable. This is
	// most likely a transient condition and may be corrected by retrying with
	// a backoff.
	Unavailable ErrorCode = "unavailable"

	// DataLoss indicates unrecoverable data loss or corruption.
	DataLoss ErrorCode = "data_loss"

	// NoError is the zero-value, is considered an empty error and should not
	// be used.
	NoError ErrorCode = ""
)

// ServerHTTPStatusFromErrorCode translates a Twirp error code into the HTTP
// status used for the error response. The following table shows how codes are
// translated:
//
//	Canceled:           408 Request Timeout
//	Unknown:            500 Internal Server Error
//	InvalidArgument:    400 Bad Request
//	Malformed:          400 Bad Request
//	DeadlineExceeded:   408 Request Timeout
//	NotFound:           404 Not Found
//	BadRoute:           404 Not Found
//	AlreadyExists:      409 Conflict
//	PermissionDenied:   403 Forbidden
//	Unauthenticated:    401 Unauthorized
//	ResourceExhausted:  429 Too Many Requests
//	FailedPrecondition: 412 Precondition Failed
//	Aborted:            409 Conflict
//	OutOfRange:         400 Bad Request
//	Unimplemented:      501 Not Implemented
//	Internal:           500 Internal Server Error
//	Unavailable:        503 Service Unavailable
//	DataLoss:           500 Internal Server Error
//
// Any other value returns 0 (invalid), which callers must treat as a
// programming error, not as a response status.
func ServerHTTPStatusFromErrorCode(code ErrorCode) int {
	switch code {
	case Canceled:
		return http.StatusRequestTimeout
	case Unknown:
		return http.StatusInternalServerError
	case InvalidArgument:
		return http.StatusBadRequest
	case Malformed:
		return http.StatusBadRequest
	case DeadlineExceeded:
		return http.StatusRequestTimeout
	case NotFound:
		return http.StatusNotFound
	case BadRoute:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case PermissionDenied:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Aborted:
		return http.StatusConflict
	case OutOfRange:
		return http.StatusBadRequest
	case Unimplemented:
		return http.StatusNotImplemented
	case Internal:
		return http.StatusInternalServerError
	case Unavailable:
		return http.StatusServiceUnavailable
	case DataLoss:
		return http.StatusInternalServerError
	case NoError:
		return 0
	default:
		return 0 // invalid, this should never happen with a checked code
	}
}

// IsValidErrorCode reports whether code is one of the fixed enumerated values.
func IsValidErrorCode(code ErrorCode) bool {
	return ServerHTTPStatusFromErrorCode(code) != 0
}

// errorCodeFromWire interprets a code string read off the wire. Unrecognized
// strings (including the empty string) are treated as Unknown, never rejected.
func errorCodeFromWire(code string) ErrorCode {
	if c := ErrorCode(code); IsValidErrorCode(c) {
		return c
	}
	return Unknown
}

// errorCodeFromHTTPStatus guesses an error code for a non-200 response whose
// body did not carry a Twirp error, e.g. a reply synthesized by a proxy or
// load balancer sitting between the client and the service. This is the
// client-side counterpart of ServerHTTPStatusFromErrorCode.
func errorCodeFromHTTPStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return Internal
	case http.StatusUnauthorized:
		return Unauthenticated
	case http.StatusForbidden:
		return PermissionDenied
	case http.StatusNotFound:
		return BadRoute
	case http.StatusRequestTimeout:
		return DeadlineExceeded
	case http.StatusConflict:
		return Internal
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return Unavailable
	default:
		return Unknown
	}
}
