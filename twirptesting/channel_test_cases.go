package twirptesting

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hopin-team/twirp-go"
)

// RunChannelTestCases runs numerous test cases to exercise the behavior of
// the given channel. The server side of the channel needs to have a
// *TestServer (in this package) registered to provide the implementation of
// twirptesting.TestService (proto in this package).
//
// The test cases will be defined as child tests by invoking t.Run on the
// given *testing.T.
func RunChannelTestCases(t *testing.T, ch twirp.Channel) {
	t.Run("json client", func(t *testing.T) {
		testClient(t, NewTestServiceJSONClient(ch), "application/json")
	})
	t.Run("protobuf client", func(t *testing.T) {
		testClient(t, NewTestServiceProtobufClient(ch), "application/protobuf")
	})
	t.Run("client interceptors", func(t *testing.T) {
		testClientInterceptors(t, ch)
	})
}

var testErrorMeta = map[string]any{
	"cause": "a test",
	"where": "the test server",
}

func testClient(t *testing.T, cli TestService, contentType string) {
	t.Run("success", func(t *testing.T) {
		rsp, err := cli.Echo(context.Background(), mustStruct(t, map[string]any{
			"payload": "a test payload",
		}))
		if err != nil {
			t.Fatalf("RPC failed: %v", err)
		}
		if got := stringField(rsp, "payload"); got != "a test payload" {
			t.Fatalf("wrong payload returned: expecting %q; got %q", "a test payload", got)
		}
		if got := stringField(rsp, "package"); got != "twirptesting" {
			t.Fatalf("wrong package observed: expecting %q; got %q", "twirptesting", got)
		}
		if got := stringField(rsp, "service"); got != "TestService" {
			t.Fatalf("wrong service observed: expecting %q; got %q", "TestService", got)
		}
		if got := stringField(rsp, "method"); got != "Echo" {
			t.Fatalf("wrong method observed: expecting %q; got %q", "Echo", got)
		}
		if got := stringField(rsp, "content_type"); got != contentType {
			t.Fatalf("wrong content type observed: expecting %q; got %q", contentType, got)
		}
	})

	t.Run("second method", func(t *testing.T) {
		if _, err := cli.Ping(context.Background(), &emptypb.Empty{}); err != nil {
			t.Fatalf("RPC failed: %v", err)
		}
	})

	t.Run("failure", func(t *testing.T) {
		_, err := cli.Echo(context.Background(), mustStruct(t, map[string]any{
			"error_code": "already_exists",
			"error_msg":  "it already exists",
			"error_meta": testErrorMeta,
		}))
		terr := checkError(t, err, twirp.AlreadyExists, "it already exists")
		for k, v := range testErrorMeta {
			if terr.Meta(k) != v {
				t.Fatalf("wrong metadata echoed back: expecting %s to be %q, instead was %q", k, v, terr.Meta(k))
			}
		}
	})

	t.Run("invalid error code", func(t *testing.T) {
		// a server returning a code outside the protocol's set must be
		// reported to clients as an internal error
		_, err := cli.Echo(context.Background(), mustStruct(t, map[string]any{
			"error_code": "tea_time",
		}))
		checkError(t, err, twirp.Internal, "invalid error code: tea_time")
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := cli.Echo(cctx, mustStruct(t, map[string]any{"payload": "late"}))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expecting a canceled context error; got %v", err)
		}
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		tctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
		defer cancel()
		_, err := cli.Echo(tctx, mustStruct(t, map[string]any{"payload": "late"}))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expecting a deadline error; got %v", err)
		}
	})
}

func testClientInterceptors(t *testing.T, ch twirp.Channel) {
	var order []string
	named := func(name string) twirp.Interceptor {
		return func(ctx context.Context, req any, next twirp.Method) (any, error) {
			order = append(order, name+" before")
			resp, err := next(ctx, req)
			order = append(order, name+" after")
			return resp, err
		}
	}
	cli := NewTestServiceJSONClient(ch, twirp.WithClientInterceptors(named("first"), named("second")))

	rsp, err := cli.Echo(context.Background(), mustStruct(t, map[string]any{"payload": "through the chain"}))
	if err != nil {
		t.Fatalf("RPC failed: %v", err)
	}
	if got := stringField(rsp, "payload"); got != "through the chain" {
		t.Fatalf("wrong payload returned: expecting %q; got %q", "through the chain", got)
	}

	want := []string{"first before", "second before", "second after", "first after"}
	if len(order) != len(want) {
		t.Fatalf("wrong interceptor invocations: expecting %v; got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("wrong interceptor order: expecting %v; got %v", want, order)
		}
	}
}

func mustStruct(t testing.TB, fields map[string]any) *structpb.Struct {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return msg
}

func checkError(t *testing.T, err error, expectedCode twirp.ErrorCode, expectedMsg string) *twirp.Error {
	var terr *twirp.Error
	if !errors.As(err, &terr) {
		t.Fatalf("wrong type of error: %v", err)
	}
	if terr.Code() != expectedCode {
		t.Fatalf("wrong response code: %v != %v", terr.Code(), expectedCode)
	}
	if expectedMsg != "" && terr.Msg() != expectedMsg {
		t.Fatalf("wrong response message: %q != %q", terr.Msg(), expectedMsg)
	}
	return terr
}
