package twirp

import "context"

// ServerHooks is a container for callbacks that observe the lifecycle of a
// server-side request. A nil *ServerHooks and a ServerHooks with nil fields
// are both valid; unset callbacks are skipped.
//
// The lifecycle of a request that reaches a handler is:
//
//	RequestReceived -> RequestRouted -> ResponsePrepared -> ResponseSent
//
// Error fires between routing and ResponseSent whenever the request fails,
// whether the failure came from routing, decoding, a hook, or the handler
// itself. ResponseSent always fires exactly once per request, on both
// success and failure paths.
//
// RequestReceived and RequestRouted may veto the request by returning an
// error; the error is coerced to a *Error and sent to the client, and the
// rest of the lifecycle (except Error and ResponseSent) is skipped. Hooks
// that return a context must return a non-nil one, typically derived from
// their argument; it replaces the request context for the remainder of the
// lifecycle.
//
// Hooks observe but do not rewrite messages. To modify requests or
// responses, use an Interceptor instead.
type ServerHooks struct {
	// RequestReceived is called as soon as a request enters the server,
	// before routing, so method metadata is not yet on the context.
	RequestReceived func(context.Context) (context.Context, error)

	// RequestRouted is called when a request is successfully routed to a
	// method, before the body is decoded. MethodName and ServiceName are
	// available on the context.
	RequestRouted func(context.Context) (context.Context, error)

	// ResponsePrepared is called when a handler's response has been
	// serialized and is about to be written.
	ResponsePrepared func(context.Context) context.Context

	// ResponseSent is called when the response has been written, on both
	// success and error paths. StatusCode is available on the context. It
	// is always the final hook.
	ResponseSent func(context.Context)

	// Error is called when a request fails at any point after
	// RequestReceived. The error has already been normalized to a *Error.
	// The response sent to the client is not affected by this hook.
	Error func(context.Context, *Error) context.Context

	// RequestPrepared is an older name for ResponsePrepared and fires at
	// the same point, after it.
	//
	// Deprecated: set ResponsePrepared instead.
	RequestPrepared func(context.Context) context.Context

	// RequestSent is an older name for ResponseSent and fires at the same
	// point, after it.
	//
	// Deprecated: set ResponseSent instead.
	RequestSent func(context.Context)
}

// ChainHooks composes hook containers into one. Callbacks run in the order
// the containers are given: context-modifying hooks thread the context from
// one to the next, and an error from RequestReceived or RequestRouted stops
// the chain. Nil entries are skipped; with zero or one (after dropping nils)
// containers the input is returned as is.
func ChainHooks(hooks ...*ServerHooks) *ServerHooks {
	var nonNil []*ServerHooks
	for _, h := range hooks {
		if h != nil {
			nonNil = append(nonNil, h)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	return &ServerHooks{
		RequestReceived: func(ctx context.Context) (context.Context, error) {
			var err error
			for _, h := range nonNil {
				ctx, err = callRequestReceived(ctx, h)
				if err != nil {
					return ctx, err
				}
			}
			return ctx, nil
		},
		RequestRouted: func(ctx context.Context) (context.Context, error) {
			var err error
			for _, h := range nonNil {
				ctx, err = callRequestRouted(ctx, h)
				if err != nil {
					return ctx, err
				}
			}
			return ctx, nil
		},
		ResponsePrepared: func(ctx context.Context) context.Context {
			for _, h := range nonNil {
				ctx = callResponsePrepared(ctx, h)
			}
			return ctx
		},
		ResponseSent: func(ctx context.Context) {
			for _, h := range nonNil {
				callResponseSent(ctx, h)
			}
		},
		Error: func(ctx context.Context, err *Error) context.Context {
			for _, h := range nonNil {
				ctx = callError(ctx, h, err)
			}
			return ctx
		},
	}
}

// The call* helpers below are the single dispatch points for each lifecycle
// event. They tolerate nil containers and nil fields, and they fire the
// deprecated alias alongside its replacement so that either spelling works.

func callRequestReceived(ctx context.Context, h *ServerHooks) (context.Context, error) {
	if h == nil || h.RequestReceived == nil {
		return ctx, nil
	}
	return h.RequestReceived(ctx)
}

func callRequestRouted(ctx context.Context, h *ServerHooks) (context.Context, error) {
	if h == nil || h.RequestRouted == nil {
		return ctx, nil
	}
	return h.RequestRouted(ctx)
}

func callResponsePrepared(ctx context.Context, h *ServerHooks) context.Context {
	if h == nil {
		return ctx
	}
	if h.ResponsePrepared != nil {
		ctx = h.ResponsePrepared(ctx)
	}
	if h.RequestPrepared != nil {
		ctx = h.RequestPrepared(ctx)
	}
	return ctx
}

func callResponseSent(ctx context.Context, h *ServerHooks) {
	if h == nil {
		return
	}
	if h.ResponseSent != nil {
		h.ResponseSent(ctx)
	}
	if h.RequestSent != nil {
		h.RequestSent(ctx)
	}
}

func callError(ctx context.Context, h *ServerHooks, err *Error) context.Context {
	if h == nil || h.Error == nil {
		return ctx
	}
	return h.Error(ctx, err)
}
