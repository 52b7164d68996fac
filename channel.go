package twirp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

// Channel is an abstraction of the Twirp transport: it carries an encoded
// request to a service method and returns the encoded response. With
// corresponding generated code, alternate implementations can substitute the
// standard HTTP transport, for example an in-process transport that skips
// the network entirely.
type Channel interface {
	// Request executes one RPC. The request data must already be encoded
	// per the given content type ("application/json" or
	// "application/protobuf"), and the returned bytes are the encoded
	// response in that same content type.
	//
	// A protocol-level failure is returned as a *Error. A transport-level
	// failure (DNS, connection reset, ...) is returned as the underlying
	// error, so callers can tell the two apart.
	Request(ctx context.Context, service, method, contentType string, data []byte) ([]byte, error)
}

// HTTPChannel is a Channel carried over HTTP. The server endpoint, including
// any path prefix, is configured with the BaseURL field: requests go to
// "<BaseURL>/<service>/<method>".
type HTTPChannel struct {
	// Transport performs the HTTP round trips. nil means
	// http.DefaultTransport. Note that an *http.Client is not a
	// RoundTripper; pass its Transport, or wrap the client.
	Transport http.RoundTripper
	// BaseURL locates the server, e.g. the parse of
	// "http://localhost:8080/twirp". Required.
	BaseURL *url.URL
}

var _ Channel = (*HTTPChannel)(nil)

// Request implements Channel over one POST round trip.
func (ch *HTTPChannel) Request(ctx context.Context, service, method, contentType string, data []byte) ([]byte, error) {
	reqURL := *ch.BaseURL
	reqURL.Path = path.Join(reqURL.Path, service, method)
	if len(reqURL.Path) == 0 || reqURL.Path[0] != '/' {
		reqURL.Path = "/" + reqURL.Path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	transport := ch.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		// transport failure, not a protocol one; hand it back as is
		return nil, err
	}
	defer drainAndClose(resp.Body)

	// read the response in a goroutine so that we properly respect any
	// context deadline instead of blocking on the socket long past it
	var body []byte
	respCh := make(chan struct{})
	go func() {
		defer close(respCh)
		body, err = io.ReadAll(resp.Body)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-respCh:
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp, body)
	}
	return body, nil
}

// errorFromResponse builds the *Error for a non-200 response. Twirp servers
// always reply with the JSON error form, so a body that does not parse as
// one means some intermediary (load balancer, proxy, gateway) answered
// instead of the server; such responses get a code inferred from the HTTP
// status and metadata describing what was actually received.
func errorFromResponse(resp *http.Response, body []byte) *Error {
	statusCode := resp.StatusCode
	statusText := http.StatusText(statusCode)

	if isHTTPRedirect(statusCode) {
		// twirp uses POST exclusively; a redirect is never from a twirp server
		location := resp.Header.Get("Location")
		msg := fmt.Sprintf("unexpected HTTP status code %d %q received, Location=%q", statusCode, statusText, location)
		return NewError(Internal, msg).
			WithMeta("http_error_from_intermediary", "true").
			WithMeta("status_code", strconv.Itoa(statusCode)).
			WithMeta("location", location)
	}

	if json.Valid(body) {
		if terr, err := ErrorFromJSON(body); err == nil {
			return terr
		}
	}
	msg := fmt.Sprintf("Error from intermediary with HTTP status code %d %q", statusCode, statusText)
	return NewError(errorCodeFromHTTPStatus(statusCode), msg).
		WithMeta("http_error_from_intermediary", "true").
		WithMeta("status_code", strconv.Itoa(statusCode)).
		WithMeta("body", string(body))
}

func isHTTPRedirect(statusCode int) bool {
	return statusCode >= 300 && statusCode <= 399
}
