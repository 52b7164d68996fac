package twirp

import (
	"context"
	"net/http"
)

// Request metadata is carried on the context so that handlers, hooks, and
// interceptors can identify the call they are serving without threading extra
// parameters. Servers populate package, service, and method names as routing
// resolves them; the negotiated content type is set once the header is
// classified; the HTTP status code is set just before the response is
// written, so it is visible to ResponseSent hooks.

type contextKey int

const (
	packageNameKey contextKey = iota
	serviceNameKey
	methodNameKey
	contentTypeKey
	statusCodeKey
	httpRequestKey
)

// WithPackageName stores the proto package name of the service being invoked.
func WithPackageName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, packageNameKey, name)
}

// PackageName extracts the proto package name of the service being invoked.
// It is "" (with ok true) for services defined outside any package.
func PackageName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(packageNameKey).(string)
	return name, ok
}

// WithServiceName stores the name of the service being invoked.
func WithServiceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, serviceNameKey, name)
}

// ServiceName extracts the name of the service being invoked.
func ServiceName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(serviceNameKey).(string)
	return name, ok
}

// WithMethodName stores the name of the method being invoked.
func WithMethodName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, methodNameKey, name)
}

// MethodName extracts the name of the method being invoked. It is not set
// until routing resolves the method, so RequestReceived hooks will not see
// it.
func MethodName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(methodNameKey).(string)
	return name, ok
}

func withRequestContentType(ctx context.Context, t contentType) context.Context {
	return context.WithValue(ctx, contentTypeKey, t)
}

// RequestContentType extracts the negotiated request encoding, either
// "application/json" or "application/protobuf".
func RequestContentType(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(contentTypeKey).(contentType)
	if !ok {
		return "", false
	}
	return t.String(), true
}

func withHTTPRequest(ctx context.Context, req *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey, req)
}

// HTTPRequest extracts the inbound *http.Request a server is handling, so
// hooks and handlers can read headers and other transport details. The
// request is shared, not a copy: treat it as read-only, and do not retain it
// past the call. The request body is consumed by the server; read it through
// the decoded message instead.
func HTTPRequest(ctx context.Context) (*http.Request, bool) {
	req, ok := ctx.Value(httpRequestKey).(*http.Request)
	return req, ok
}

func withStatusCode(ctx context.Context, status int) context.Context {
	return context.WithValue(ctx, statusCodeKey, status)
}

// StatusCode extracts the HTTP status code written to the response. It is set
// immediately before the response is written, so it is available to
// ResponseSent hooks but not earlier in the request lifecycle.
func StatusCode(ctx context.Context) (int, bool) {
	status, ok := ctx.Value(statusCodeKey).(int)
	return status, ok
}
