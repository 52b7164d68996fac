package twirp

import (
	"context"

	"google.golang.org/protobuf/proto"
)

// ClientOptions is the materialized client configuration, consumed by
// generated client constructors.
type ClientOptions struct {
	// Interceptor is the chained client interceptor, nil when none were
	// registered. Generated clients wrap each call through it; its
	// innermost next performs the serialization and the channel request.
	Interceptor Interceptor
}

// ClientOption configures a generated client at construction time.
type ClientOption interface {
	apply(*clientOptions)
}

type clientOptions struct {
	interceptors []Interceptor
}

type clientOptionFunc func(*clientOptions)

func (f clientOptionFunc) apply(opts *clientOptions) { f(opts) }

// WithClientInterceptors returns an option that registers interceptors on a
// client. The first interceptor registered is outermost, per
// ChainInterceptors.
func WithClientInterceptors(interceptors ...Interceptor) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.interceptors = append(opts.interceptors, interceptors...)
	})
}

// NewClientOptions evaluates options into a ClientOptions value.
func NewClientOptions(opts ...ClientOption) ClientOptions {
	var options clientOptions
	for _, opt := range opts {
		opt.apply(&options)
	}
	return ClientOptions{Interceptor: ChainInterceptors(options.interceptors...)}
}

// DoJSONRequest executes one RPC over ch with JSON encoding: in is
// serialized with the canonical JSON codec, and the response is decoded into
// out. Protocol failures come back as *Error; transport failures come back
// as the channel's underlying error.
func DoJSONRequest(ctx context.Context, ch Channel, service, method string, in, out proto.Message) error {
	data, err := defaultJSONCodec.marshal.Marshal(in)
	if err != nil {
		return clientError("failed to marshal json request", err)
	}
	respData, err := ch.Request(ctx, service, method, "application/json", data)
	if err != nil {
		return err
	}
	if err := defaultJSONCodec.unmarshal.Unmarshal(respData, out); err != nil {
		return clientError("failed to unmarshal json response", err)
	}
	return nil
}

// DoProtobufRequest executes one RPC over ch with binary protobuf encoding.
// Error semantics match DoJSONRequest.
func DoProtobufRequest(ctx context.Context, ch Channel, service, method string, in, out proto.Message) error {
	data, err := proto.Marshal(in)
	if err != nil {
		return clientError("failed to marshal proto request", err)
	}
	respData, err := ch.Request(ctx, service, method, "application/protobuf", data)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(respData, out); err != nil {
		return clientError("failed to unmarshal proto response", err)
	}
	return nil
}

// clientError tags a client-side local failure (bad marshal, undecodable
// success response) as Internal, keeping the underlying error as cause.
func clientError(msg string, err error) *Error {
	return NewError(Internal, msg+": "+err.Error()).withCauseOnly(err)
}
