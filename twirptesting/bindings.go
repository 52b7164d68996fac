package twirptesting

// This file contains the client and server bindings for TestService, in the
// same shape code generation would produce for test.proto. The service only
// uses well-known message types, so the bindings are small enough to
// maintain by hand.

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hopin-team/twirp-go"
)

// TestService is the interface shared by the clients and the server
// implementations of twirptesting.TestService.
type TestService interface {
	Echo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Ping(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

// =====================
// TestService JSON client
// =====================

type testServiceJSONClient struct {
	ch   twirp.Channel
	opts twirp.ClientOptions
}

// NewTestServiceJSONClient creates a JSON client that implements the
// TestService interface over the given channel.
func NewTestServiceJSONClient(ch twirp.Channel, opts ...twirp.ClientOption) TestService {
	return &testServiceJSONClient{ch: ch, opts: twirp.NewClientOptions(opts...)}
}

func (c *testServiceJSONClient) Echo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = twirp.WithPackageName(ctx, "twirptesting")
	ctx = twirp.WithServiceName(ctx, "TestService")
	ctx = twirp.WithMethodName(ctx, "Echo")
	caller := c.callEcho
	if c.opts.Interceptor != nil {
		caller = wrapStructCall(c.opts.Interceptor, c.callEcho)
	}
	return caller(ctx, in)
}

func (c *testServiceJSONClient) callEcho(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := twirp.DoJSONRequest(ctx, c.ch, "twirptesting.TestService", "Echo", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *testServiceJSONClient) Ping(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	ctx = twirp.WithPackageName(ctx, "twirptesting")
	ctx = twirp.WithServiceName(ctx, "TestService")
	ctx = twirp.WithMethodName(ctx, "Ping")
	caller := c.callPing
	if c.opts.Interceptor != nil {
		caller = wrapEmptyCall(c.opts.Interceptor, c.callPing)
	}
	return caller(ctx, in)
}

func (c *testServiceJSONClient) callPing(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := twirp.DoJSONRequest(ctx, c.ch, "twirptesting.TestService", "Ping", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// =========================
// TestService Protobuf client
// =========================

type testServiceProtobufClient struct {
	ch   twirp.Channel
	opts twirp.ClientOptions
}

// NewTestServiceProtobufClient creates a Protobuf client that implements the
// TestService interface over the given channel.
func NewTestServiceProtobufClient(ch twirp.Channel, opts ...twirp.ClientOption) TestService {
	return &testServiceProtobufClient{ch: ch, opts: twirp.NewClientOptions(opts...)}
}

func (c *testServiceProtobufClient) Echo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = twirp.WithPackageName(ctx, "twirptesting")
	ctx = twirp.WithServiceName(ctx, "TestService")
	ctx = twirp.WithMethodName(ctx, "Echo")
	caller := c.callEcho
	if c.opts.Interceptor != nil {
		caller = wrapStructCall(c.opts.Interceptor, c.callEcho)
	}
	return caller(ctx, in)
}

func (c *testServiceProtobufClient) callEcho(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := twirp.DoProtobufRequest(ctx, c.ch, "twirptesting.TestService", "Echo", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *testServiceProtobufClient) Ping(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	ctx = twirp.WithPackageName(ctx, "twirptesting")
	ctx = twirp.WithServiceName(ctx, "TestService")
	ctx = twirp.WithMethodName(ctx, "Ping")
	caller := c.callPing
	if c.opts.Interceptor != nil {
		caller = wrapEmptyCall(c.opts.Interceptor, c.callPing)
	}
	return caller(ctx, in)
}

func (c *testServiceProtobufClient) callPing(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := twirp.DoProtobufRequest(ctx, c.ch, "twirptesting.TestService", "Ping", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// wrapStructCall threads a client interceptor around a Struct-typed call.
func wrapStructCall(interceptor twirp.Interceptor, call func(context.Context, *structpb.Struct) (*structpb.Struct, error)) func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
		resp, err := interceptor(ctx, req, func(ctx context.Context, req any) (any, error) {
			typedReq, ok := req.(*structpb.Struct)
			if !ok {
				return nil, twirp.InternalError("failed type assertion req.(*structpb.Struct) when calling interceptor")
			}
			return call(ctx, typedReq)
		})
		if resp != nil {
			typedResp, ok := resp.(*structpb.Struct)
			if !ok {
				return nil, twirp.InternalError("failed type assertion resp.(*structpb.Struct) when calling interceptor")
			}
			return typedResp, err
		}
		return nil, err
	}
}

// wrapEmptyCall threads a client interceptor around an Empty-typed call.
func wrapEmptyCall(interceptor twirp.Interceptor, call func(context.Context, *emptypb.Empty) (*emptypb.Empty, error)) func(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return func(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
		resp, err := interceptor(ctx, req, func(ctx context.Context, req any) (any, error) {
			typedReq, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, twirp.InternalError("failed type assertion req.(*emptypb.Empty) when calling interceptor")
			}
			return call(ctx, typedReq)
		})
		if resp != nil {
			typedResp, ok := resp.(*emptypb.Empty)
			if !ok {
				return nil, twirp.InternalError("failed type assertion resp.(*emptypb.Empty) when calling interceptor")
			}
			return typedResp, err
		}
		return nil, err
	}
}

// =====================
// TestService server
// =====================

// NewTestServiceServer builds an HTTP handler serving svc at
// [<prefix>]/twirptesting.TestService/.
func NewTestServiceServer(svc TestService, opts ...twirp.ServerOption) *twirp.Server {
	return twirp.NewServer(&testServiceDesc, svc, opts...)
}

// RegisterTestServiceServer registers svc with a service registry, such as a
// twirp.HandlerMap or an in-process channel.
func RegisterTestServiceServer(reg twirp.ServiceRegistry, svc TestService) {
	reg.RegisterService(&testServiceDesc, svc)
}

func _TestService_Echo_Handler(srv any, ctx context.Context, dec func(any) error, interceptor twirp.Interceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TestService).Echo(ctx, in)
	}
	return interceptor(ctx, in, func(ctx context.Context, req any) (any, error) {
		return srv.(TestService).Echo(ctx, req.(*structpb.Struct))
	})
}

func _TestService_Ping_Handler(srv any, ctx context.Context, dec func(any) error, interceptor twirp.Interceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TestService).Ping(ctx, in)
	}
	return interceptor(ctx, in, func(ctx context.Context, req any) (any, error) {
		return srv.(TestService).Ping(ctx, req.(*emptypb.Empty))
	})
}

var testServiceDesc = twirp.ServiceDesc{
	PackageName: "twirptesting",
	ServiceName: "TestService",
	HandlerType: (*TestService)(nil),
	Methods: []twirp.MethodDesc{
		{MethodName: "Echo", Handler: _TestService_Echo_Handler},
		{MethodName: "Ping", Handler: _TestService_Ping_Handler},
	},
}
