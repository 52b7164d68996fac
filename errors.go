package twirp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a Twirp error. Every failure that crosses the protocol boundary is
// represented as one of these: it carries one of the fixed error codes, a
// human-readable message, string key/value metadata, and an optional cause.
// The cause is for local introspection only and is never serialized.
//
// Error values are constructed with NewError or one of the specialized
// constructors below, then optionally annotated with WithMeta and WithCause.
// The annotation methods mutate the receiver and return it, so calls chain:
//
//	return nil, twirp.NewError(twirp.PermissionDenied, "thou shall not pass").
//		WithMeta("target", req.Door)
type Error struct {
	code  ErrorCode
	msg   string
	meta  map[string]string
	cause error
}

// NewError builds a Twirp error with the given code and message. The code
// must be one of the enumerated ErrorCode values; anything else renders as an
// internal error when written to the wire.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// NotFoundError constructs a NotFound error.
func NotFoundError(msg string) *Error {
	return NewError(NotFound, msg)
}

// InvalidArgumentError constructs an InvalidArgument error for the named
// argument. The message is "<argument> <validationMsg>" and the argument name
// is recorded in metadata.
func InvalidArgumentError(argument, validationMsg string) *Error {
	return NewError(InvalidArgument, argument+" "+validationMsg).
		WithMeta("argument", argument)
}

// RequiredArgumentError constructs an InvalidArgument error indicating that
// the named argument is required.
func RequiredArgumentError(argument string) *Error {
	return InvalidArgumentError(argument, "is required")
}

// InternalError constructs an Internal error.
func InternalError(msg string) *Error {
	return NewError(Internal, msg)
}

// InternalErrorWith constructs an Internal error that wraps another error.
// The wrapped error's message becomes the Twirp message, its dynamic type
// name is recorded under the "cause" metadata key, and the error itself is
// retained as the cause for local inspection via Cause or errors.Unwrap.
func InternalErrorWith(err error) *Error {
	return NewError(Internal, err.Error()).
		WithMeta("cause", fmt.Sprintf("%T", err)).
		withCauseOnly(err)
}

// BadRouteError constructs a BadRoute error for a request that could not be
// mapped to a service method. The offending "<METHOD> <url>" pair is recorded
// under the "twirp_invalid_route" metadata key.
func BadRouteError(msg, method, url string) *Error {
	return NewError(BadRoute, msg).
		WithMeta("twirp_invalid_route", method+" "+url)
}

// malformedError constructs a Malformed error for a request body that could
// not be decoded, recording the decode failure as both cause and metadata.
func malformedError(msg string, cause error) *Error {
	return NewError(Malformed, msg).WithCause(cause, true)
}

// Code returns the error code.
func (e *Error) Code() ErrorCode { return e.code }

// Msg returns the human-readable message.
func (e *Error) Msg() string { return e.msg }

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("twirp error %s: %s", e.code, e.msg)
}

// WithMeta sets the metadata value for the given key, replacing any previous
// value (last write wins). It mutates the receiver and returns it.
func (e *Error) WithMeta(key, value string) *Error {
	if e.meta == nil {
		e.meta = make(map[string]string)
	}
	e.meta[key] = value
	return e
}

// Meta returns the metadata value for the given key, or "" if the key is not
// set.
func (e *Error) Meta(key string) string {
	return e.meta[key]
}

// MetaMap returns the error's metadata map. The returned map is the error's
// own; callers that need to mutate it independently should copy it first.
func (e *Error) MetaMap() map[string]string {
	return e.meta
}

// WithCause records err as this error's cause. The cause is available through
// Cause and errors.Unwrap but is never serialized. If addToMeta is true, the
// cause's message is additionally recorded under the "cause" metadata key.
// It mutates the receiver and returns it.
func (e *Error) WithCause(err error, addToMeta bool) *Error {
	if addToMeta {
		e.WithMeta("cause", err.Error())
	}
	return e.withCauseOnly(err)
}

func (e *Error) withCauseOnly(err error) *Error {
	e.cause = err
	return e
}

// Cause returns the wrapped cause, or nil.
func (e *Error) Cause() error { return e.cause }

// Unwrap supports errors.Is and errors.As over the cause chain.
func (e *Error) Unwrap() error { return e.cause }

// wireError is the canonical JSON form: {"code": ..., "msg": ..., "meta": {...}}.
type wireError struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Meta map[string]string `json:"meta"`
}

// MarshalJSON renders the error in its canonical wire form. The meta field is
// always present, as an empty object when no metadata is set. The cause is
// not serialized.
func (e *Error) MarshalJSON() ([]byte, error) {
	meta := e.meta
	if meta == nil {
		meta = map[string]string{}
	}
	return json.Marshal(wireError{
		Code: string(e.code),
		Msg:  e.msg,
		Meta: meta,
	})
}

// ErrorFromJSON reconstructs an Error from its wire form. A missing or
// unrecognized code becomes Unknown and a missing msg becomes "unknown", so
// any JSON object yields a usable error; only malformed JSON fails.
func ErrorFromJSON(data []byte) (*Error, error) {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Msg == "" {
		w.Msg = "unknown"
	}
	e := NewError(errorCodeFromWire(w.Code), w.Msg)
	for k, v := range w.Meta {
		e.WithMeta(k, v)
	}
	return e, nil
}

// WriteError writes err to w as a Twirp error response: the JSON wire form
// with the HTTP status mapped from the error code. Errors that are not
// *twirp.Error values are coerced first (see the propagation policy on
// Server). This is what generated servers and the gateway use to surface
// failures; it is exported so middleware outside this package can reply in
// the same shape.
func WriteError(w http.ResponseWriter, err error) error {
	terr := asTwirpError(err)
	if !IsValidErrorCode(terr.code) {
		terr = InternalError("invalid error code: " + string(terr.code))
	}

	body, merr := json.Marshal(terr)
	if merr != nil {
		// marshaling a map[string]string cannot fail; guard anyway
		body = []byte(`{"code":"internal","msg":"there was an error but it could not be serialized into JSON","meta":{}}`)
	}

	w.Header().Set("Content-Type", "application/json") // errors are always JSON
	w.WriteHeader(ServerHTTPStatusFromErrorCode(terr.code))
	if _, werr := w.Write(body); werr != nil {
		return werr
	}
	return nil
}

// asTwirpError normalizes any failure into a *Error:
//
//   - *Error values (anywhere in the wrap chain) pass through unchanged
//   - gRPC status errors keep their code via the bridge in grpc.go
//   - context cancellation and deadline errors map to Canceled and
//     DeadlineExceeded
//   - everything else is wrapped as Internal with the cause retained
func asTwirpError(err error) *Error {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	if terr := errorFromGRPCError(err); terr != nil {
		return terr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(Canceled, err.Error()).withCauseOnly(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(DeadlineExceeded, err.Error()).withCauseOnly(err)
	}
	return InternalErrorWith(err)
}
