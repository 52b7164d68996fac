package twirp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hopin-team/twirp-go"
	"github.com/hopin-team/twirp-go/twirptesting"
)

func newTestServer(t *testing.T, opts ...twirp.ServerOption) *httptest.Server {
	t.Helper()
	hs := httptest.NewServer(twirptesting.NewTestServiceServer(&twirptesting.TestServer{}, opts...))
	t.Cleanup(hs.Close)
	return hs
}

func jsonClient(t *testing.T, hs *httptest.Server) twirptesting.TestService {
	t.Helper()
	baseURL, err := url.Parse(hs.URL + twirp.DefaultPathPrefix)
	if err != nil {
		t.Fatalf("failed to parse URL: %v", err)
	}
	return twirptesting.NewTestServiceJSONClient(&twirp.HTTPChannel{BaseURL: baseURL})
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readTwirpError(t *testing.T, resp *http.Response) *twirp.Error {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("wrong error content type: %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	terr, err := twirp.ErrorFromJSON(body)
	if err != nil {
		t.Fatalf("response is not a twirp error: %v (body %q)", err, body)
	}
	return terr
}

func TestServerEchoJSON(t *testing.T) {
	hs := newTestServer(t)
	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"boomerang"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("wrong response code: %v != %v", resp.StatusCode, 200)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("wrong content type: %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("response is not JSON: %v (body %q)", err, body)
	}
	want := map[string]any{
		"payload":      "boomerang",
		"package":      "twirptesting",
		"service":      "TestService",
		"method":       "Echo",
		"content_type": "application/json",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("wrong response: %v != %v", fields, want)
	}
}

func TestServerEchoProtobuf(t *testing.T) {
	hs := newTestServer(t)
	req, err := structpb.NewStruct(map[string]any{"payload": "high five"})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	data, err := proto.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := http.Post(hs.URL+"/twirp/twirptesting.TestService/Echo",
		"application/protobuf", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("wrong response code: %v != %v", resp.StatusCode, 200)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/protobuf" {
		t.Errorf("wrong content type: %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	out := &structpb.Struct{}
	if err := proto.Unmarshal(body, out); err != nil {
		t.Fatalf("response is not a proto message: %v", err)
	}
	if got := out.GetFields()["payload"].GetStringValue(); got != "high five" {
		t.Errorf("wrong payload returned: %q", got)
	}
	if got := out.GetFields()["content_type"].GetStringValue(); got != "application/protobuf" {
		t.Errorf("wrong content type observed by the server: %q", got)
	}
}

func TestServerContentTypeParameters(t *testing.T) {
	hs := newTestServer(t)
	resp, err := http.Post(hs.URL+"/twirp/twirptesting.TestService/Echo",
		"application/json; charset=utf-8", strings.NewReader(`{"payload":"x"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
	}
}

func TestServerBadRoutes(t *testing.T) {
	hs := newTestServer(t)
	testCases := []struct {
		name        string
		method      string
		path        string
		contentType string
		expectMsg   string
	}{
		{
			name: "non-post", method: "GET",
			path:        "/twirp/twirptesting.TestService/Echo",
			contentType: "application/json",
			expectMsg:   "unsupported method GET (only POST is allowed)",
		},
		{
			name: "unknown service", method: "POST",
			path:        "/twirp/example.Haberdasher/MakeHat",
			contentType: "application/json",
			expectMsg:   "no handler for path /twirp/example.Haberdasher/MakeHat",
		},
		{
			name: "wrong prefix", method: "POST",
			path:        "/api/twirptesting.TestService/Echo",
			contentType: "application/json",
			expectMsg:   "invalid path prefix /api, expected /twirp, on path /api/twirptesting.TestService/Echo",
		},
		{
			name: "missing prefix", method: "POST",
			path:        "/twirptesting.TestService/Echo",
			contentType: "application/json",
			expectMsg:   "invalid path prefix , expected /twirp, on path /twirptesting.TestService/Echo",
		},
		{
			name: "bad content type", method: "POST",
			path:        "/twirp/twirptesting.TestService/Echo",
			contentType: "text/plain",
			expectMsg:   "unexpected Content-Type: text/plain",
		},
		{
			name: "unknown method", method: "POST",
			path:        "/twirp/twirptesting.TestService/MakeHat",
			contentType: "application/json",
			expectMsg:   "no handler found",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(testCase.method, hs.URL+testCase.path, strings.NewReader("{}"))
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			req.Header.Set("Content-Type", testCase.contentType)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != 404 {
				t.Errorf("wrong response code: %v != %v", resp.StatusCode, 404)
			}
			terr := readTwirpError(t, resp)
			if terr.Code() != twirp.BadRoute {
				t.Errorf("wrong error code: %v != %v", terr.Code(), twirp.BadRoute)
			}
			if terr.Msg() != testCase.expectMsg {
				t.Errorf("wrong error message: %q != %q", terr.Msg(), testCase.expectMsg)
			}
			expectRoute := testCase.method + " " + testCase.path
			if got := terr.Meta("twirp_invalid_route"); got != expectRoute {
				t.Errorf("wrong route metadata: %q != %q", got, expectRoute)
			}
		})
	}
}

func TestServerMalformedRequest(t *testing.T) {
	hs := newTestServer(t)

	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":`)
	if resp.StatusCode != 400 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 400)
	}
	terr := readTwirpError(t, resp)
	if terr.Code() != twirp.Malformed {
		t.Errorf("wrong error code: %v", terr.Code())
	}
	if terr.Msg() != "the json request could not be decoded" {
		t.Errorf("wrong error message: %q", terr.Msg())
	}

	presp, err := http.Post(hs.URL+"/twirp/twirptesting.TestService/Echo",
		"application/protobuf", bytes.NewReader([]byte{0xFF}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer presp.Body.Close()
	if presp.StatusCode != 400 {
		t.Errorf("wrong response code: %v != %v", presp.StatusCode, 400)
	}
	terr = readTwirpError(t, presp)
	if terr.Code() != twirp.Malformed {
		t.Errorf("wrong error code: %v", terr.Code())
	}
	if terr.Msg() != "the protobuf request could not be decoded" {
		t.Errorf("wrong error message: %q", terr.Msg())
	}
}

func TestServerHandlerError(t *testing.T) {
	hs := newTestServer(t)
	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo",
		`{"error_code":"out_of_range","error_msg":"page fell off the end","error_meta":{"page":"94"}}`)
	if resp.StatusCode != 400 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 400)
	}
	terr := readTwirpError(t, resp)
	if terr.Code() != twirp.OutOfRange {
		t.Errorf("wrong error code: %v", terr.Code())
	}
	if terr.Msg() != "page fell off the end" {
		t.Errorf("wrong error message: %q", terr.Msg())
	}
	if terr.Meta("page") != "94" {
		t.Errorf("wrong metadata: %q", terr.Meta("page"))
	}
}

type panickyService struct {
	twirptesting.TestServer
}

func (s *panickyService) Echo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	panic("cannot echo today")
}

func TestServerPanicRecovery(t *testing.T) {
	hs := httptest.NewServer(twirptesting.NewTestServiceServer(&panickyService{}))
	defer hs.Close()
	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{}`)
	if resp.StatusCode != 500 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 500)
	}
	terr := readTwirpError(t, resp)
	if terr.Code() != twirp.Internal {
		t.Errorf("wrong error code: %v", terr.Code())
	}
	if terr.Msg() != "Internal service panic" {
		t.Errorf("wrong error message: %q", terr.Msg())
	}
}

// lifecycleHooks records every hook invocation, and returns a wait function
// that blocks until a request has been fully handled before reporting the
// recorded events. ResponseSent runs after the response body is written, so
// without the handshake a test could observe the response before the final
// events are recorded.
func lifecycleHooks() (*twirp.ServerHooks, func(t *testing.T) []string) {
	var mu sync.Mutex
	var events []string
	record := func(ev string) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	done := make(chan struct{}, 16)
	hooks := &twirp.ServerHooks{
		RequestReceived: func(ctx context.Context) (context.Context, error) {
			record("received")
			return ctx, nil
		},
		RequestRouted: func(ctx context.Context) (context.Context, error) {
			method, _ := twirp.MethodName(ctx)
			record("routed " + method)
			return ctx, nil
		},
		ResponsePrepared: func(ctx context.Context) context.Context {
			record("prepared")
			return ctx
		},
		Error: func(ctx context.Context, terr *twirp.Error) context.Context {
			record("error " + string(terr.Code()))
			return ctx
		},
		ResponseSent: func(ctx context.Context) {
			status, _ := twirp.StatusCode(ctx)
			record(fmt.Sprintf("sent %d", status))
			done <- struct{}{}
		},
	}
	wait := func(t *testing.T) []string {
		t.Helper()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for the response to be sent")
		}
		mu.Lock()
		defer mu.Unlock()
		evs := events
		events = nil
		return evs
	}
	return hooks, wait
}

func TestServerHooks(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		hooks, wait := lifecycleHooks()
		hs := newTestServer(t, twirp.WithServerHooks(hooks))
		postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
		want := []string{"received", "routed Echo", "prepared", "sent 200"}
		if evs := wait(t); !reflect.DeepEqual(evs, want) {
			t.Errorf("wrong events: %v != %v", evs, want)
		}
	})
	t.Run("bad route", func(t *testing.T) {
		hooks, wait := lifecycleHooks()
		hs := newTestServer(t, twirp.WithServerHooks(hooks))
		postJSON(t, hs.URL+"/twirp/twirptesting.TestService/MakeHat", `{}`)
		want := []string{"received", "error bad_route", "sent 404"}
		if evs := wait(t); !reflect.DeepEqual(evs, want) {
			t.Errorf("wrong events: %v != %v", evs, want)
		}
	})
	t.Run("handler error", func(t *testing.T) {
		hooks, wait := lifecycleHooks()
		hs := newTestServer(t, twirp.WithServerHooks(hooks))
		postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"error_code":"already_exists"}`)
		want := []string{"received", "routed Echo", "error already_exists", "sent 409"}
		if evs := wait(t); !reflect.DeepEqual(evs, want) {
			t.Errorf("wrong events: %v != %v", evs, want)
		}
	})
}

func TestServerHookVeto(t *testing.T) {
	t.Run("twirp error", func(t *testing.T) {
		hooks := &twirp.ServerHooks{
			RequestReceived: func(ctx context.Context) (context.Context, error) {
				return ctx, twirp.NewError(twirp.Unauthenticated, "credentials required")
			},
		}
		hs := newTestServer(t, twirp.WithServerHooks(hooks))
		resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 401 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 401)
		}
		terr := readTwirpError(t, resp)
		if terr.Code() != twirp.Unauthenticated || terr.Msg() != "credentials required" {
			t.Errorf("wrong error: %v", terr)
		}
	})
	t.Run("plain error", func(t *testing.T) {
		hooks := &twirp.ServerHooks{
			RequestRouted: func(ctx context.Context) (context.Context, error) {
				return ctx, errors.New("nope")
			},
		}
		hs := newTestServer(t, twirp.WithServerHooks(hooks))
		resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 500 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 500)
		}
		terr := readTwirpError(t, resp)
		if terr.Code() != twirp.Internal || terr.Msg() != "nope" {
			t.Errorf("wrong error: %v", terr)
		}
	})
}

// taggingInterceptor appends name to the request payload, so response
// payloads reveal the order interceptors ran in.
func taggingInterceptor(name string) twirp.Interceptor {
	return func(ctx context.Context, request any, next twirp.Method) (any, error) {
		st := request.(*structpb.Struct)
		payload := st.GetFields()["payload"].GetStringValue()
		st.Fields["payload"] = structpb.NewStringValue(payload + "," + name)
		return next(ctx, st)
	}
}

func TestServerInterceptors(t *testing.T) {
	hs := newTestServer(t, twirp.WithServerInterceptors(
		taggingInterceptor("first"), taggingInterceptor("second")))
	cli := jsonClient(t, hs)

	req, err := structpb.NewStruct(map[string]any{"payload": "req"})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := cli.Echo(context.Background(), req)
	if err != nil {
		t.Fatalf("RPC failed: %v", err)
	}
	if got := resp.GetFields()["payload"].GetStringValue(); got != "req,first,second" {
		t.Errorf("wrong payload returned: %q", got)
	}
}

func TestServerHTTPRequestContext(t *testing.T) {
	if _, ok := twirp.HTTPRequest(context.Background()); ok {
		t.Error("HTTPRequest reported a request on a fresh context")
	}

	tagRequest := func(ctx context.Context, request any, next twirp.Method) (any, error) {
		st := request.(*structpb.Struct)
		if req, ok := twirp.HTTPRequest(ctx); ok {
			st.Fields["payload"] = structpb.NewStringValue(req.Method + " " + req.URL.Path)
		}
		return next(ctx, st)
	}
	hs := newTestServer(t, twirp.WithServerInterceptors(tagRequest))
	cli := jsonClient(t, hs)

	req, err := structpb.NewStruct(map[string]any{"payload": "x"})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := cli.Echo(context.Background(), req)
	if err != nil {
		t.Fatalf("RPC failed: %v", err)
	}
	want := "POST /twirp/twirptesting.TestService/Echo"
	if got := resp.GetFields()["payload"].GetStringValue(); got != want {
		t.Errorf("wrong payload returned: %q != %q", got, want)
	}
}

func TestWithServerMiddleware(t *testing.T) {
	done := make(chan struct{}, 1)
	hooks := twirp.ServerHooks{
		ResponseSent: func(ctx context.Context) { done <- struct{}{} },
	}
	tag := func(ctx context.Context, request any, next twirp.Method) (any, error) {
		st := request.(*structpb.Struct)
		payload := st.GetFields()["payload"].GetStringValue()
		st.Fields["payload"] = structpb.NewStringValue(payload + ",tagged")
		return next(ctx, st)
	}
	hs := newTestServer(t, twirp.WithServerMiddleware(hooks, tag))
	cli := jsonClient(t, hs)

	req, err := structpb.NewStruct(map[string]any{"payload": "req"})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := cli.Echo(context.Background(), req)
	if err != nil {
		t.Fatalf("RPC failed: %v", err)
	}
	if got := resp.GetFields()["payload"].GetStringValue(); got != "req,tagged" {
		t.Errorf("wrong payload returned: %q", got)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("the hook middleware never fired")
	}

	t.Run("rejects junk", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("middleware of the wrong type should panic")
			}
		}()
		twirptesting.NewTestServiceServer(&twirptesting.TestServer{}, twirp.WithServerMiddleware(42))
	})
}

func TestServerPathPrefix(t *testing.T) {
	t.Run("custom", func(t *testing.T) {
		hs := newTestServer(t, twirp.WithServerPathPrefix("/api/v2"))
		resp := postJSON(t, hs.URL+"/api/v2/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 200 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
		}

		resp = postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 404 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 404)
		}
		terr := readTwirpError(t, resp)
		expectMsg := "invalid path prefix /twirp, expected /api/v2, on path /twirp/twirptesting.TestService/Echo"
		if terr.Msg() != expectMsg {
			t.Errorf("wrong error message: %q != %q", terr.Msg(), expectMsg)
		}
	})
	t.Run("empty", func(t *testing.T) {
		hs := newTestServer(t, twirp.WithServerPathPrefix(""))
		resp := postJSON(t, hs.URL+"/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 200 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
		}
	})
	t.Run("normalized", func(t *testing.T) {
		hs := newTestServer(t, twirp.WithServerPathPrefix("api/"))
		resp := postJSON(t, hs.URL+"/api/twirptesting.TestService/Echo", `{"payload":"x"}`)
		if resp.StatusCode != 200 {
			t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
		}
	})
}

func TestServerPathAccessors(t *testing.T) {
	s := twirptesting.NewTestServiceServer(&twirptesting.TestServer{})
	if got := s.BaseURI(); got != "/twirp/twirptesting.TestService" {
		t.Errorf("wrong base URI: %q", got)
	}
	if got := s.PathPrefix(); got != "/twirp/twirptesting.TestService/" {
		t.Errorf("wrong path prefix: %q", got)
	}
	s = twirptesting.NewTestServiceServer(&twirptesting.TestServer{}, twirp.WithServerPathPrefix("api"))
	if got := s.PathPrefix(); got != "/api/twirptesting.TestService/" {
		t.Errorf("wrong path prefix: %q", got)
	}
}

func TestHandleServers(t *testing.T) {
	mux := http.NewServeMux()
	twirp.HandleServers(mux.HandleFunc, twirptesting.NewTestServiceServer(&twirptesting.TestServer{}))
	hs := httptest.NewServer(mux)
	defer hs.Close()
	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
	if resp.StatusCode != 200 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
	}
}

func TestHandlerMap(t *testing.T) {
	reg := twirp.HandlerMap{}
	twirptesting.RegisterTestServiceServer(reg, &twirptesting.TestServer{})

	desc, impl := reg.QueryService("twirptesting.TestService")
	if desc == nil || impl == nil {
		t.Fatalf("registered service not found")
	}
	if desc.FullName() != "twirptesting.TestService" {
		t.Errorf("wrong service name: %q", desc.FullName())
	}
	if desc, impl := reg.QueryService("example.Missing"); desc != nil || impl != nil {
		t.Errorf("unregistered service should not be found: %v, %v", desc, impl)
	}

	count := 0
	reg.ForEach(func(desc *twirp.ServiceDesc, impl any) { count++ })
	if count != 1 {
		t.Errorf("wrong number of services: %v != %v", count, 1)
	}

	servers := reg.Servers()
	if len(servers) != 1 {
		t.Fatalf("wrong number of servers: %v != %v", len(servers), 1)
	}
	hs := httptest.NewServer(servers[0])
	defer hs.Close()
	resp := postJSON(t, hs.URL+"/twirp/twirptesting.TestService/Echo", `{"payload":"x"}`)
	if resp.StatusCode != 200 {
		t.Errorf("wrong response code: %v != %v", resp.StatusCode, 200)
	}

	t.Run("duplicate registration", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("registering a service twice should panic")
			}
		}()
		twirptesting.RegisterTestServiceServer(reg, &twirptesting.TestServer{})
	})
}

func TestNewServerTypeCheck(t *testing.T) {
	desc := &twirp.ServiceDesc{
		PackageName: "example",
		ServiceName: "Haberdasher",
		HandlerType: (*twirptesting.TestService)(nil),
	}
	defer func() {
		if recover() == nil {
			t.Errorf("a mismatched implementation should panic")
		}
	}()
	twirp.NewServer(desc, "not a service implementation")
}
