// Package twirp implements the Twirp wire protocol: RPCs carried over plain
// HTTP 1.1 POST requests, with JSON or binary protobuf payloads and a fixed
// JSON error envelope. It is intended for environments where gRPC is not
// possible or not worth its cost: the protocol runs through ordinary HTTP
// stacks, load balancers, and middleware, and can be called with curl.
//
// Servers are plain http.Handler values built from a generated service
// descriptor and an implementation of the generated service interface, so
// they can be mounted on any router. Clients are generated stubs over the
// Channel abstraction; HTTPChannel carries calls over a real network, and
// alternate implementations (such as an in-process channel) can substitute
// it without touching calling code.
//
// Requests can be observed with ServerHooks, which see the lifecycle of each
// request but cannot modify messages, and with Interceptors, which wrap the
// method call itself and may rewrite requests and responses. Both compose
// in registration order.
//
// # Anatomy of a Twirp request
//
// Every RPC is an HTTP POST to "[<prefix>]/<package>.<Service>/<Method>",
// where the prefix defaults to "/twirp". The Content-Type header selects the
// encoding and must be "application/json" or "application/protobuf"; the
// response is encoded the same way and answered with status 200. Both sides
// buffer whole messages; there is no streaming.
//
// Failures are always JSON, regardless of the request encoding: an object
// with "code", "msg", and "meta" string fields, where code is one of the
// fixed ErrorCode values and the HTTP status follows from it (see
// ServerHTTPStatusFromErrorCode). Anything that fails before a method is
// resolved, including wrong HTTP verbs, unknown paths, and unsupported
// content types, is reported as "bad_route" with the offending method and
// URL in metadata.
//
// The gateway subpackage maps REST-shaped requests (GET /hat/{hat_id} and
// friends) onto this wire form, either by rewriting requests in flight for
// a downstream Server or by proxying to a remote one.
package twirp
