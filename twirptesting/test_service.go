package twirptesting

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hopin-team/twirp-go"
)

// TestServer has default behaviors for the TestService methods, driven by
// fields of the request:
//
//	"delay_millis"  number: sleep this long before replying, honoring
//	                context cancellation
//	"error_code"    string: fail with a Twirp error of this code, using
//	                "error_msg" as the message and the string fields of
//	                "error_meta" as metadata
//	"payload"       any value: echoed back under the same field
//
// Successful Echo responses also report the package, service, method, and
// request content type the server observed in its context.
type TestServer struct{}

var _ TestService = (*TestServer)(nil)

// Echo implements the TestService server interface.
func (s *TestServer) Echo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if d := numberField(req, "delay_millis"); d > 0 {
		select {
		case <-time.After(time.Duration(d) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if code := stringField(req, "error_code"); code != "" {
		terr := twirp.NewError(twirp.ErrorCode(code), stringField(req, "error_msg"))
		for k, v := range stringMapField(req, "error_meta") {
			terr = terr.WithMeta(k, v)
		}
		return nil, terr
	}

	fields := map[string]*structpb.Value{}
	if payload, ok := req.GetFields()["payload"]; ok {
		fields["payload"] = payload
	}
	pkg, _ := twirp.PackageName(ctx)
	svc, _ := twirp.ServiceName(ctx)
	method, _ := twirp.MethodName(ctx)
	ct, _ := twirp.RequestContentType(ctx)
	fields["package"] = structpb.NewStringValue(pkg)
	fields["service"] = structpb.NewStringValue(svc)
	fields["method"] = structpb.NewStringValue(method)
	fields["content_type"] = structpb.NewStringValue(ct)
	return &structpb.Struct{Fields: fields}, nil
}

// Ping implements the TestService server interface.
func (s *TestServer) Ping(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func numberField(msg *structpb.Struct, name string) float64 {
	return msg.GetFields()[name].GetNumberValue()
}

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func stringMapField(msg *structpb.Struct, name string) map[string]string {
	fields := msg.GetFields()[name].GetStructValue().GetFields()
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		m[k] = v.GetStringValue()
	}
	return m
}
