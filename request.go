package twirp

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// readRequestBody reads the whole request body, classifying failures: a
// disconnect or cancellation shows up as Canceled, a blown deadline as
// DeadlineExceeded, and anything else as Malformed. The distinction matters
// for hooks and metrics, which should not count an impatient client as a bad
// request.
func readRequestBody(req *http.Request) ([]byte, *Error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, requestReadError(req.Context(), err)
	}
	return data, nil
}

func requestReadError(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, context.Canceled), ctx.Err() == context.Canceled:
		return NewError(Canceled, "failed to read request: context canceled").withCauseOnly(err)
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() == context.DeadlineExceeded:
		return NewError(DeadlineExceeded, "failed to read request: deadline exceeded").withCauseOnly(err)
	default:
		return malformedError("failed to read request body", err)
	}
}

func drainAndClose(r io.ReadCloser) error {
	_, copyErr := io.Copy(io.Discard, r)
	closeErr := r.Close()
	// error from io.Copy likely more useful than the one from Close
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
