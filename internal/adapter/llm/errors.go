// Package llm holds the text generation backends and the resilient client that wraps them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"google.golang.org/genai"
)

// StatusError reports a non-2xx answer from a generation backend.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation backend returned status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("generation backend returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// statusCode extracts the upstream HTTP status from a backend error, or 0.
func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// isClientError reports a 4xx answer: bad request, auth failure or quota exceeded.
func isClientError(err error) bool {
	code := statusCode(err)
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}

type statusRecorderKey struct{}

// statusTransport records the last error status seen by a request so that
// backends whose SDKs hide the status behind opaque errors can still be classified.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if rec, ok := req.Context().Value(statusRecorderKey{}).(*atomic.Int32); ok && resp.StatusCode >= http.StatusBadRequest {
		rec.Store(int32(resp.StatusCode))
	}
	return resp, nil
}

func newStatusRecordingClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := *base
	client.Transport = &statusTransport{base: transport}
	return &client
}

func withStatusRecorder(ctx context.Context) (context.Context, *atomic.Int32) {
	rec := new(atomic.Int32)
	return context.WithValue(ctx, statusRecorderKey{}, rec), rec
}
