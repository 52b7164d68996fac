package inproctwirp_test

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hopin-team/twirp-go"
	"github.com/hopin-team/twirp-go/inproctwirp"
	"github.com/hopin-team/twirp-go/twirptesting"
)

func TestInProcessChannel(t *testing.T) {
	svr := &twirptesting.TestServer{}

	var ch inproctwirp.Channel
	twirptesting.RegisterTestServiceServer(&ch, svr)

	twirptesting.RunChannelTestCases(t, &ch)
}

func TestInProcessChannelServerOptions(t *testing.T) {
	var events []string
	hooks := &twirp.ServerHooks{
		RequestReceived: func(ctx context.Context) (context.Context, error) {
			events = append(events, "received")
			return ctx, nil
		},
		RequestRouted: func(ctx context.Context) (context.Context, error) {
			method, _ := twirp.MethodName(ctx)
			events = append(events, "routed "+method)
			return ctx, nil
		},
		ResponseSent: func(ctx context.Context) {
			events = append(events, "sent")
		},
	}

	ch := new(inproctwirp.Channel).WithServerOptions(twirp.WithServerHooks(hooks))
	twirptesting.RegisterTestServiceServer(ch, &twirptesting.TestServer{})

	cli := twirptesting.NewTestServiceJSONClient(ch)
	if _, err := cli.Echo(context.Background(), &structpb.Struct{}); err != nil {
		t.Fatalf("RPC failed: %v", err)
	}

	want := []string{"received", "routed Echo", "sent"}
	if len(events) != len(want) {
		t.Fatalf("wrong hook invocations: expecting %v; got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("wrong hook order: expecting %v; got %v", want, events)
		}
	}
}

func TestInProcessChannelUnknownService(t *testing.T) {
	var ch inproctwirp.Channel

	cli := twirptesting.NewTestServiceJSONClient(&ch)
	_, err := cli.Echo(context.Background(), &structpb.Struct{})

	var terr *twirp.Error
	if !errors.As(err, &terr) {
		t.Fatalf("wrong type of error: %v", err)
	}
	if terr.Code() != twirp.BadRoute {
		t.Fatalf("wrong response code: %v != %v", terr.Code(), twirp.BadRoute)
	}
	wantMsg := "no handler for path /twirp/twirptesting.TestService/Echo"
	if terr.Msg() != wantMsg {
		t.Fatalf("wrong error message: %q != %q", terr.Msg(), wantMsg)
	}
	wantRoute := "POST /twirp/twirptesting.TestService/Echo"
	if got := terr.Meta("twirp_invalid_route"); got != wantRoute {
		t.Fatalf("wrong invalid route: expecting %q; got %q", wantRoute, got)
	}
}
