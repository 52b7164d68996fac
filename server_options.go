package twirp

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
)

type serverOptions struct {
	prefix       string
	hooks        []*ServerHooks
	interceptors []Interceptor
	json         jsonCodec
}

// ServerOption configures a Server at construction time. A Server is
// immutable once built; all configuration goes through options passed to
// NewServer or to a generated server constructor.
type ServerOption interface {
	apply(*serverOptions)
}

type serverOptionFunc func(*serverOptions)

func (f serverOptionFunc) apply(opts *serverOptions) { f(opts) }

// WithServerPathPrefix returns an option that replaces the default "/twirp"
// path prefix. The empty string means routes have no prefix segment at all,
// i.e. requests go to "/<package>.<Service>/<Method>". A missing leading
// slash is added and a trailing slash is dropped, so "my/api" and "/my/api/"
// both configure the prefix "/my/api".
func WithServerPathPrefix(prefix string) ServerOption {
	return serverOptionFunc(func(opts *serverOptions) {
		opts.prefix = normalizePrefix(prefix)
	})
}

// WithServerHooks returns an option that registers lifecycle hooks. Hooks
// registered across all options run in registration order at each lifecycle
// point.
func WithServerHooks(hooks ...*ServerHooks) ServerOption {
	return serverOptionFunc(func(opts *serverOptions) {
		opts.hooks = append(opts.hooks, hooks...)
	})
}

// WithServerInterceptors returns an option that registers interceptors. The
// first interceptor registered is outermost, per ChainInterceptors.
func WithServerInterceptors(interceptors ...Interceptor) ServerOption {
	return serverOptionFunc(func(opts *serverOptions) {
		opts.interceptors = append(opts.interceptors, interceptors...)
	})
}

// WithServerJSONOptions returns an option that replaces the JSON codec
// options of the server. By default servers marshal with unpopulated fields
// emitted under their proto names, and unmarshal discarding unknown fields;
// this option allows, for example, omitting zero-valued fields from
// responses or rejecting requests that carry unknown fields. It does not
// affect the protobuf encoding or the error responses, which have a fixed
// JSON form.
func WithServerJSONOptions(marshal protojson.MarshalOptions, unmarshal protojson.UnmarshalOptions) ServerOption {
	return serverOptionFunc(func(opts *serverOptions) {
		opts.json = jsonCodec{marshal: marshal, unmarshal: unmarshal}
	})
}

// WithServerMiddleware returns an option that registers a mixed bag of
// middleware, sorting each value into the hook list or the interceptor list
// by type. It accepts *ServerHooks (or ServerHooks) values and Interceptor
// values (or bare functions with the Interceptor signature) in any order,
// and panics on anything else. It exists for callers that assemble
// middleware generically; when the kinds are known, WithServerHooks and
// WithServerInterceptors say the same thing more plainly.
func WithServerMiddleware(middleware ...any) ServerOption {
	return serverOptionFunc(func(opts *serverOptions) {
		for _, mw := range middleware {
			switch mw := mw.(type) {
			case *ServerHooks:
				opts.hooks = append(opts.hooks, mw)
			case ServerHooks:
				h := mw
				opts.hooks = append(opts.hooks, &h)
			case Interceptor:
				opts.interceptors = append(opts.interceptors, mw)
			case func(context.Context, any, Method) (any, error):
				opts.interceptors = append(opts.interceptors, Interceptor(mw))
			default:
				panic(fmt.Sprintf("twirp: middleware of type %T is neither a hook set nor an interceptor", mw))
			}
		}
	})
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
