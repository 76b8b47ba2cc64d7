package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// DefaultRetryAttempts is the maximum number of attempts per request.
	DefaultRetryAttempts = 5
	// DefaultRetryDelay is the initial retry delay.
	DefaultRetryDelay = 1 * time.Second
	// retryMaxDelay is the maximum retry delay.
	retryMaxDelay = 1 * time.Minute
	// retryMaxJitter adds randomness to prevent thundering herd.
	retryMaxJitter = 500 * time.Millisecond
	// maxRequestSize limits request body size to prevent memory issues.
	maxRequestSize = 1 * 1024 * 1024
)

// RetryTransport wraps an http.RoundTripper with retry logic using exponential
// backoff with jitter. It retries on 429 and 5xx responses and on transport errors.
type RetryTransport struct {
	Base     http.RoundTripper
	Logger   *slog.Logger
	Attempts uint          // zero means DefaultRetryAttempts
	Delay    time.Duration // zero means DefaultRetryDelay
}

// RoundTrip implements the http.RoundTripper interface with retry logic.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := t.Attempts
	if attempts == 0 {
		attempts = DefaultRetryAttempts
	}
	delay := t.Delay
	if delay == 0 {
		delay = DefaultRetryDelay
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	err = retry.Do(
		func() error {
			if resp != nil {
				// The previous attempt got a retryable status; only the last response reaches the caller.
				_ = resp.Body.Close()
				resp = nil
			}
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
			}

			start := time.Now()
			r, err := base.RoundTrip(req)
			if err != nil {
				logger.WarnContext(req.Context(), "gitlab request failed",
					"method", req.Method,
					"url", req.URL.String(),
					"error", err)
				return err
			}
			resp = r

			logger.DebugContext(req.Context(), "gitlab response",
				"method", req.Method,
				"status", r.StatusCode,
				"url", req.URL.String(),
				"elapsed", time.Since(start))

			if !retryableStatus(r.StatusCode) {
				return nil
			}
			logger.InfoContext(req.Context(), "retrying gitlab request",
				"status", r.StatusCode,
				"url", req.URL.String())
			return &retryableError{StatusCode: r.StatusCode}
		},
		retry.Context(req.Context()),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.RetryIf(func(err error) bool {
			var statusErr *retryableError
			return errors.As(err, &statusErr) || req.Context().Err() == nil
		}),
	)
	if resp != nil {
		// The final 429/5xx response is returned as is so the SDK reports it.
		return resp, nil
	}
	return nil, err
}

// bufferBody reads the request body once so every attempt can replay it.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(io.LimitReader(req.Body, maxRequestSize))
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryableError indicates a response that should be retried.
type retryableError struct {
	StatusCode int
}

func (e *retryableError) Error() string {
	return http.StatusText(e.StatusCode)
}
