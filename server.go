package twirp

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
)

// ServiceRegistry accumulates service registrations. Servers and in-process
// channels implement this interface for accumulating the services they
// expose.
type ServiceRegistry interface {
	// RegisterService registers the given implementation to be used for the
	// given service. Only a single implementation can be registered for a
	// given service, identified by its fully-qualified name (e.g.
	// "package.name.Service"). Attempting to register the same service more
	// than once panics.
	RegisterService(desc *ServiceDesc, impl any)
}

// HandlerMap is used to accumulate service registrations into a map. The
// implementations can be registered once in the map and then re-used to
// expose the same services over multiple surfaces, e.g. an HTTP server and
// an in-process channel.
type HandlerMap map[string]service

var _ ServiceRegistry = HandlerMap(nil)

type service struct {
	desc *ServiceDesc
	impl any
}

// RegisterService registers the given implementation to be used for the
// given service. The implementation must satisfy the interface type named by
// desc.HandlerType or this panics.
func (m HandlerMap) RegisterService(desc *ServiceDesc, impl any) {
	checkServiceImpl(desc, impl)
	if _, ok := m[desc.FullName()]; ok {
		panic(fmt.Sprintf("service %s: handler already registered", desc.FullName()))
	}
	m[desc.FullName()] = service{desc: desc, impl: impl}
}

// QueryService returns the service descriptor and implementation for the
// named service, or nil, nil if none has been registered.
func (m HandlerMap) QueryService(name string) (*ServiceDesc, any) {
	svc := m[name]
	return svc.desc, svc.impl
}

// ForEach calls the given function for each registered service. This can be
// used to contribute all registered implementations to another registry, or
// to build a server per service:
//
//	reg := twirp.HandlerMap{}
//	// (these registration functions are generated)
//	haberdasherpb.RegisterHaberdasherServer(reg, newHaberdasher())
//
//	// Expose over HTTP:
//	twirp.HandleServers(mux.HandleFunc, reg.Servers()...)
//	// And in-process, without a network:
//	ch := &inproctwirp.Channel{}
//	reg.ForEach(ch.RegisterService)
func (m HandlerMap) ForEach(fn func(desc *ServiceDesc, impl any)) {
	for _, svc := range m {
		fn(svc.desc, svc.impl)
	}
}

// Servers builds one Server per registered service, all sharing the given
// options.
func (m HandlerMap) Servers(opts ...ServerOption) []*Server {
	servers := make([]*Server, 0, len(m))
	for _, svc := range m {
		servers = append(servers, NewServer(svc.desc, svc.impl, opts...))
	}
	return servers
}

func checkServiceImpl(desc *ServiceDesc, impl any) {
	if desc.HandlerType == nil {
		return
	}
	ht := reflect.TypeOf(desc.HandlerType).Elem()
	st := reflect.TypeOf(impl)
	if !st.Implements(ht) {
		panic(fmt.Sprintf("service %s: handler of type %v does not satisfy %v", desc.FullName(), st, ht))
	}
}

// DefaultPathPrefix is the URL path prefix servers expect and clients send
// when no other prefix is configured.
const DefaultPathPrefix = "/twirp"

// Server is an http.Handler that serves one Twirp service: requests to
// POST [<prefix>]/<package>.<Service>/<Method> with a JSON or protobuf body
// are routed to the registered implementation. Generated code provides a
// constructor per service (e.g. NewHaberdasherServer) that builds one of
// these from the service's descriptor.
//
// A Server's configuration is fixed at construction, so a single value is
// safe for concurrent use by multiple goroutines.
type Server struct {
	desc        *ServiceDesc
	impl        any
	prefix      string
	hooks       *ServerHooks
	interceptor Interceptor
	json        jsonCodec
}

var _ http.Handler = (*Server)(nil)

// NewServer builds a Server from a service descriptor and an implementation
// of the service interface. It panics if impl does not satisfy the interface
// type named by desc.HandlerType, so a mismatched registration fails at
// startup rather than per request.
func NewServer(desc *ServiceDesc, impl any, opts ...ServerOption) *Server {
	checkServiceImpl(desc, impl)
	options := serverOptions{prefix: DefaultPathPrefix, json: defaultJSONCodec}
	for _, opt := range opts {
		opt.apply(&options)
	}
	return &Server{
		desc:        desc,
		impl:        impl,
		prefix:      options.prefix,
		hooks:       ChainHooks(options.hooks...),
		interceptor: ChainInterceptors(options.interceptors...),
		json:        options.json,
	}
}

// PathPrefix returns the URL path prefix of this server's routes, with a
// trailing slash: "<prefix>/<package>.<Service>/". Mount the server on an
// external router under this pattern.
func (s *Server) PathPrefix() string {
	return s.BaseURI() + "/"
}

// BaseURI returns "<prefix>/<package>.<Service>", the URL under which this
// server's methods live.
func (s *Server) BaseURI() string {
	return s.prefix + "/" + s.desc.FullName()
}

// Mux is a function that can register an HTTP handler for a path pattern.
// Its signature matches that of the HandleFunc method of the http.ServeMux
// type, and it also matches that of the http.HandleFunc function (for
// registering handlers with the default mux).
//
// Callers can provide custom Mux functions that further decorate the handler
// (for example, adding authentication checks, logging, error handling, etc).
type Mux func(pattern string, handler func(http.ResponseWriter, *http.Request))

// HandleServers uses the given mux to register each server under its
// PathPrefix:
//
//	mux := http.NewServeMux()
//	twirp.HandleServers(mux.HandleFunc, haberdasherServer, valetServer)
func HandleServers(mux Mux, servers ...*Server) {
	for _, s := range servers {
		mux(s.PathPrefix(), s.ServeHTTP)
	}
}

// ServeHTTP drives one request through the protocol state machine. Whatever
// happens, the ResponseSent hook fires exactly once at the end, and on any
// failure the Error hook fires exactly once with the normalized *Error
// before the error response is written.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	ctx := req.Context()
	ctx = WithPackageName(ctx, s.desc.PackageName)
	ctx = WithServiceName(ctx, s.desc.ServiceName)
	ctx = withHTTPRequest(ctx, req)
	defer drainAndClose(req.Body)

	ctx, terr := s.safeHandle(ctx, tw, req)
	if terr != nil {
		if !IsValidErrorCode(terr.Code()) {
			terr = InternalError("invalid error code: " + string(terr.Code()))
		}
		ctx = callError(ctx, s.hooks, terr)
		if !tw.wroteHeader {
			ctx = withStatusCode(ctx, ServerHTTPStatusFromErrorCode(terr.Code()))
			_ = WriteError(tw, terr)
		}
	}
	callResponseSent(ctx, s.hooks)
}

// safeHandle runs the request flow with a recovery barrier: a panic in a
// hook, interceptor, or service implementation becomes an Internal error
// instead of killing the connection without a response.
func (s *Server) safeHandle(ctx context.Context, w *trackingWriter, req *http.Request) (hctx context.Context, terr *Error) {
	defer func() {
		if r := recover(); r != nil {
			hctx = ctx
			terr = InternalError("Internal service panic").
				withCauseOnly(fmt.Errorf("panic serving %s: %v", req.URL.Path, r))
		}
	}()
	return s.handle(ctx, w, req)
}

func (s *Server) handle(ctx context.Context, w *trackingWriter, req *http.Request) (context.Context, *Error) {
	ct := contentTypeFromHeader(req.Header.Get("Content-Type"))
	if ct != contentTypeUnknown {
		ctx = withRequestContentType(ctx, ct)
	}

	ctx, err := callRequestReceived(ctx, s.hooks)
	if err != nil {
		return ctx, asTwirpError(err)
	}

	methodName, terr := s.validateRequest(req, ct)
	if terr != nil {
		return ctx, terr
	}
	md, ok := s.desc.method(methodName)
	if !ok {
		return ctx, BadRouteError("no handler found", req.Method, req.URL.Path)
	}
	ctx = WithMethodName(ctx, methodName)
	ctx, err = callRequestRouted(ctx, s.hooks)
	if err != nil {
		return ctx, asTwirpError(err)
	}

	body, terr := readRequestBody(req)
	if terr != nil {
		return ctx, terr
	}
	dec := func(msg any) error {
		reqMsg, ok := msg.(proto.Message)
		if !ok {
			return InternalError(fmt.Sprintf("request type %T does not implement proto.Message", msg))
		}
		if err := s.json.unmarshalMessage(ct, body, reqMsg); err != nil {
			if ct == contentTypeJSON {
				return malformedError("the json request could not be decoded", err)
			}
			return malformedError("the protobuf request could not be decoded", err)
		}
		return nil
	}

	resp, err := md.Handler(s.impl, ctx, dec, s.interceptor)
	if err != nil {
		return ctx, asTwirpError(err)
	}
	respMsg, ok := resp.(proto.Message)
	if !ok {
		return ctx, InternalError(fmt.Sprintf("response type %T does not implement proto.Message", resp))
	}
	respBytes, merr := s.json.marshalMessage(ct, respMsg)
	if merr != nil {
		return ctx, InternalErrorWith(merr)
	}

	ctx = callResponsePrepared(ctx, s.hooks)
	ctx = withStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", ct.String())
	w.Header().Set("Content-Length", strconv.Itoa(len(respBytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBytes) // response is committed; a write error here has nowhere to go
	return ctx, nil
}

// validateRequest checks the protocol-level preconditions that apply before
// any method is resolved. All failures are BadRoute errors carrying the
// "<METHOD> <url>" pair in metadata.
func (s *Server) validateRequest(req *http.Request, ct contentType) (string, *Error) {
	if req.Method != http.MethodPost {
		msg := fmt.Sprintf("unsupported method %s (only POST is allowed)", req.Method)
		return "", BadRouteError(msg, req.Method, req.URL.Path)
	}
	prefix, serviceName, methodName := parsePath(req.URL.Path)
	if serviceName != s.desc.FullName() {
		msg := fmt.Sprintf("no handler for path %s", req.URL.Path)
		return "", BadRouteError(msg, req.Method, req.URL.Path)
	}
	if prefix != s.prefix {
		msg := fmt.Sprintf("invalid path prefix %s, expected %s, on path %s", prefix, s.prefix, req.URL.Path)
		return "", BadRouteError(msg, req.Method, req.URL.Path)
	}
	if ct == contentTypeUnknown {
		msg := "unexpected Content-Type: " + req.Header.Get("Content-Type")
		return "", BadRouteError(msg, req.Method, req.URL.Path)
	}
	return methodName, nil
}

// parsePath splits a request path into prefix, qualified service name, and
// method name: "/twirp/pkg.Service/Method" yields ("/twirp", "pkg.Service",
// "Method"). The last segment is the method, the second-to-last the service,
// and everything before is the prefix; paths with fewer than two segments
// yield empty strings.
func parsePath(path string) (prefix, serviceName, methodName string) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "", "", ""
	}
	methodName = parts[len(parts)-1]
	serviceName = parts[len(parts)-2]
	prefix = strings.Join(parts[:len(parts)-2], "/")
	return prefix, serviceName, methodName
}

// trackingWriter records whether a response has been started, so late
// failures can be distinguished from ones where an error response can still
// be written.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(statusCode int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
