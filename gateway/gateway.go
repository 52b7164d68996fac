// Package gateway maps REST-shaped HTTP requests onto the Twirp wire
// protocol. A Gateway is built from a table of HTTPRoute bindings and can
// operate in two modes: as middleware that rewrites matching requests in
// flight for a downstream Twirp server mounted on the same stack, or as a
// standalone reverse proxy that performs the Twirp call itself over a
// Channel.
package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hopin-team/twirp-go"
	"github.com/hopin-team/twirp-go/internal/keypath"
)

// Gateway matches REST requests against a route table and reduces them to
// Twirp requests. Its configuration is fixed at construction, so a single
// value is safe for concurrent use by multiple goroutines.
type Gateway struct {
	prefix string
	routes map[string][]compiledRoute
}

type compiledRoute struct {
	HTTPRoute
	pat *pattern
}

// Option configures a Gateway at construction time.
type Option interface {
	apply(*options)
}

type options struct {
	prefix string
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) { f(opts) }

// WithPathPrefix returns an option that replaces the default "/twirp" prefix
// used for the rewritten request paths. It must match the prefix of the
// downstream server.
func WithPathPrefix(prefix string) Option {
	return optionFunc(func(opts *options) {
		opts.prefix = prefix
	})
}

// New compiles a route table into a Gateway. Additional bindings are
// flattened into the table after their parent route. Within one HTTP method,
// routes match in the order given.
func New(routes []HTTPRoute, opts ...Option) (*Gateway, error) {
	o := options{prefix: twirp.DefaultPathPrefix}
	for _, opt := range opts {
		opt.apply(&o)
	}
	g := &Gateway{prefix: o.prefix, routes: make(map[string][]compiledRoute)}
	for i := range routes {
		if err := g.add(routes[i]); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Gateway) add(route HTTPRoute) error {
	if err := route.validate(); err != nil {
		return err
	}
	pat, err := compilePattern(route.Path)
	if err != nil {
		return fmt.Errorf("route for %s.%s: %w", route.FullServiceName(), route.MethodName, err)
	}
	bindings := route.AdditionalBindings
	route.AdditionalBindings = nil
	g.routes[route.HTTPMethod] = append(g.routes[route.HTTPMethod], compiledRoute{HTTPRoute: route, pat: pat})
	for _, b := range bindings {
		b.PackageName = route.PackageName
		b.ServiceName = route.ServiceName
		b.MethodName = route.MethodName
		if err := g.add(b); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns middleware that rewrites matching requests into Twirp
// requests and hands them to next: the URL becomes
// "<prefix>/<package>.<Service>/<Method>", the method becomes POST, and the
// body becomes the assembled JSON request. Requests that match no route, and
// failures coded NotFound, pass through to next untouched so other routes on
// the same stack still work; any other failure is answered immediately as a
// Twirp error.
func (g *Gateway) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route, params, ok := g.match(req.Method, req.URL.Path)
		if !ok {
			next.ServeHTTP(w, req)
			return
		}
		body, err := g.prepareTwirpBody(req, route, params)
		if err != nil {
			var terr *twirp.Error
			if errors.As(err, &terr) && terr.Code() == twirp.NotFound {
				next.ServeHTTP(w, req)
				return
			}
			_ = twirp.WriteError(w, err)
			return
		}

		r2 := req.Clone(req.Context())
		r2.Method = http.MethodPost
		r2.URL.Path = g.prefix + "/" + route.FullServiceName() + "/" + route.MethodName
		r2.URL.RawQuery = ""
		r2.Header.Set("Content-Type", "application/json")
		r2.ContentLength = int64(len(body))
		r2.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r2)
	})
}

// ReverseProxy returns a standalone handler that serves REST requests by
// performing the Twirp call itself over ch, typically an
// *twirp.HTTPChannel pointed at a remote backend. Unlike Handler, nothing
// falls through: a request that matches no route is answered with a
// NotFound Twirp error.
func (g *Gateway) ReverseProxy(ch twirp.Channel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route, params, ok := g.match(req.Method, req.URL.Path)
		if !ok {
			terr := twirp.NotFoundError(fmt.Sprintf("no route matches %s %s", req.Method, req.URL.Path))
			_ = twirp.WriteError(w, terr)
			return
		}
		body, err := g.prepareTwirpBody(req, route, params)
		if err != nil {
			_ = twirp.WriteError(w, err)
			return
		}
		respData, err := ch.Request(req.Context(), route.FullServiceName(), route.MethodName, "application/json", body)
		if err != nil {
			_ = twirp.WriteError(w, err)
			return
		}
		if route.ResponseBodyKey != "" {
			respData, err = json.Marshal(map[string]json.RawMessage{route.ResponseBodyKey: respData})
			if err != nil {
				_ = twirp.WriteError(w, twirp.InternalErrorWith(err))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(respData)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respData)
	})
}

// match finds the first route registered for the verb whose pattern accepts
// the path.
func (g *Gateway) match(method, path string) (*compiledRoute, map[string]string, bool) {
	rs := g.routes[method]
	for i := range rs {
		if params, ok := rs[i].pat.match(path); ok {
			return &rs[i], params, true
		}
	}
	return nil, nil, false
}

// prepareTwirpBody assembles the JSON request body for a matched route:
//
//  1. if the route declares a BodyKey, the request body is read and JSON
//     parsed: "*" makes it the whole message, a field name nests it under
//     that field
//  2. unless the BodyKey is "*", query-string pairs are inflated into
//     nested fields on top (keypath syntax, repeated keys keep the last
//     value, scalar values coerced)
//  3. path parameters are inflated on top last as string fields (never
//     coerced, so an all-digits id stays a string)
//
// Each step wins field collisions with the steps before it, so path and
// query parameters take precedence over same-named body fields.
func (g *Gateway) prepareTwirpBody(req *http.Request, route *compiledRoute, params map[string]string) ([]byte, error) {
	assembled := make(map[string]any, len(params))

	if route.BodyKey != "" {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, twirp.NewError(twirp.Malformed, "failed to read request body").WithCause(err, true)
		}
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, twirp.NewError(twirp.Malformed, "the json request could not be decoded").WithCause(err, true)
		}
		if route.BodyKey == "*" {
			obj, ok := parsed.(map[string]any)
			if !ok {
				return nil, twirp.NewError(twirp.Malformed, "the json request body must be an object")
			}
			assembled = obj
		} else {
			assembled[route.BodyKey] = parsed
		}
	}

	if req.URL.RawQuery != "" && route.BodyKey != "*" {
		query, err := url.ParseQuery(req.URL.RawQuery)
		if err != nil {
			return nil, twirp.NewError(twirp.Malformed, "the query string could not be parsed").WithCause(err, true)
		}
		flat := make(map[string]any, len(query))
		for key, vals := range query {
			if len(vals) == 0 {
				continue
			}
			flat[key] = coerceScalar(vals[len(vals)-1])
		}
		inflated, err := keypath.Inflate(flat)
		if err != nil {
			return nil, twirp.NewError(twirp.Malformed, "the query string could not be parsed").WithCause(err, true)
		}
		mergeFields(assembled, inflated)
	}

	if len(params) > 0 {
		flat := make(map[string]any, len(params))
		for key, val := range params {
			flat[key] = val
		}
		inflated, err := keypath.Inflate(flat)
		if err != nil {
			return nil, twirp.InternalErrorWith(err)
		}
		mergeFields(assembled, inflated)
	}
	return json.Marshal(assembled)
}

// mergeFields overlays src onto dst in place. Objects merge recursively;
// for any other collision the src value replaces the dst value.
func mergeFields(dst, src map[string]any) {
	for key, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[key].(map[string]any); ok {
				mergeFields(dm, sm)
				continue
			}
		}
		dst[key] = sv
	}
}

// coerceScalar converts a query-string value to the JSON type a Twirp
// request expects: integers, floats, and the literals true/false become
// typed values, anything else stays a string.
func coerceScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
