// Package inproctwirp provides an in-process twirp.Channel: clients and
// servers wired through it communicate directly, without any network or HTTP
// parsing in between.
//
// This is useful when a program hosts both halves of a service, for example
// a server binary that also consumes its own APIs, or tests that want real
// client and server code paths without sockets. Requests still pass through
// the full server state machine, so hooks, interceptors, and error
// normalization behave exactly as they do over HTTP.
package inproctwirp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hopin-team/twirp-go"
)

// Channel is an in-process twirp.Channel. Register service implementations
// with RegisterService (typically via generated registration functions), then
// hand the channel to generated client constructors.
//
// The zero value is usable. Registration and configuration must complete
// before the first request; afterwards the channel is safe for concurrent
// use by multiple goroutines.
type Channel struct {
	handlers twirp.HandlerMap
	opts     []twirp.ServerOption

	once    sync.Once
	servers map[string]*twirp.Server
}

var _ twirp.Channel = (*Channel)(nil)
var _ twirp.ServiceRegistry = (*Channel)(nil)

// RegisterService registers the given implementation to be used for the
// given service, like twirp.HandlerMap.RegisterService.
func (ch *Channel) RegisterService(desc *twirp.ServiceDesc, impl any) {
	if ch.handlers == nil {
		ch.handlers = twirp.HandlerMap{}
	}
	ch.handlers.RegisterService(desc, impl)
}

// WithServerOptions adds server options, such as hooks and interceptors,
// applied to every service on this channel. It returns the channel, for
// chaining during setup. Path prefixes are meaningless in process and are
// overridden.
func (ch *Channel) WithServerOptions(opts ...twirp.ServerOption) *Channel {
	ch.opts = append(ch.opts, opts...)
	return ch
}

// Request implements twirp.Channel by dispatching to the registered service
// implementation in this same process. Protocol failures are returned as
// *twirp.Error values that were never serialized to the wire; a context that
// is already done returns its error as the transport would.
func (ch *Channel) Request(ctx context.Context, service, method, contentType string, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch.once.Do(ch.buildServers)

	path := twirp.DefaultPathPrefix + "/" + service + "/" + method
	srv, ok := ch.servers[service]
	if !ok {
		msg := fmt.Sprintf("no handler for path %s", path)
		return nil, twirp.BadRouteError(msg, http.MethodPost, path)
	}

	// the server sees the client's cancellation and deadline, but not its
	// context values, same as if a network separated them
	req, err := http.NewRequestWithContext(noValuesContext{ctx}, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, twirp.InternalErrorWith(err)
	}
	req.Header.Set("Content-Type", contentType)

	var w responseWriter
	srv.ServeHTTP(&w, req)

	if w.status != http.StatusOK {
		terr, perr := twirp.ErrorFromJSON(w.body.Bytes())
		if perr != nil {
			return nil, twirp.InternalErrorWith(perr)
		}
		return nil, terr
	}
	return w.body.Bytes(), nil
}

func (ch *Channel) buildServers() {
	ch.servers = make(map[string]*twirp.Server, len(ch.handlers))
	// force the default prefix last so it wins over any configured one; the
	// request paths synthesized above use it
	opts := append(append([]twirp.ServerOption{}, ch.opts...), twirp.WithServerPathPrefix(twirp.DefaultPathPrefix))
	ch.handlers.ForEach(func(desc *twirp.ServiceDesc, impl any) {
		ch.servers[desc.FullName()] = twirp.NewServer(desc, impl, opts...)
	})
}

// responseWriter is a minimal in-memory http.ResponseWriter for capturing a
// server response without a network peer.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

var _ http.ResponseWriter = (*responseWriter)(nil)

func (w *responseWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}
