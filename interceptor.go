package twirp

import "context"

// Method is a generic representation of a unary RPC method: it consumes a
// request message and produces a response message or an error. Request and
// response are typed as any because interceptors are shared across methods;
// the concrete types are the generated proto messages of whichever method is
// being invoked, which can be identified with the MethodName and ServiceName
// context accessors.
type Method func(ctx context.Context, request any) (any, error)

// Interceptor runs code before and/or after an RPC method. It receives the
// decoded request message and a next function; calling next continues the
// chain, ending at the actual method implementation. An interceptor may
// short-circuit by not calling next, and may substitute the request passed
// down or the response returned up, as long as the concrete message types are
// preserved.
//
// Interceptors run on both servers and clients: on a server, next ends at the
// registered service implementation; on a client, next serializes the request
// and performs the HTTP call.
type Interceptor func(ctx context.Context, request any, next Method) (any, error)

// ChainInterceptors combines interceptors into one. The first interceptor in
// the set is outermost: it is invoked first, and when it delegates to next,
// that calls the second interceptor, and so on, until the innermost next
// reaches the method itself. Nil entries are skipped; chaining zero
// interceptors yields nil and chaining one yields that interceptor.
func ChainInterceptors(interceptors ...Interceptor) Interceptor {
	var ints []Interceptor
	for _, i := range interceptors {
		if i != nil {
			ints = append(ints, i)
		}
	}
	switch len(ints) {
	case 0:
		return nil
	case 1:
		return ints[0]
	}
	return func(ctx context.Context, request any, next Method) (any, error) {
		for i := len(ints) - 1; i > 0; i-- {
			currInterceptor := ints[i] // going backwards through the chain
			currNext := next
			next = func(ctx context.Context, request any) (any, error) {
				return currInterceptor(ctx, request, currNext)
			}
		}
		return ints[0](ctx, request, next)
	}
}
