// Package completion is the narrow interface to a language-model
// completion service, plus the plumbing every enrichment stage shares
// around it: provider adapters, pricing, response extraction, failure
// kinds, usage accounting and a retrying, paced Runner.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
)

type Request struct {
	Model     string
	MaxTokens int
	Prompt    string
}

type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Service executes one prompt. Implementations return *RateLimitError for
// provider backpressure and *APIError for transient faults.
type Service interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (Response, error)

func (f ServiceFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return "rate limited: " + errText(e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, errText(e.Err))
	}
	return "api error: " + errText(e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

var statusCodeRe = regexp.MustCompile(`\b([45]\d\d)\b`)

// classifyStatus maps an HTTP status onto the provider error types. Client
// errors other than 429 are returned unchanged and are not retried.
func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return &RateLimitError{Err: err}
	case status >= 500:
		return &APIError{StatusCode: status, Err: err}
	}
	return err
}

// classifyTransport handles errors that carry no typed status. ctx is the
// caller's context: once it is done the error is final.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &APIError{Err: err}
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return classifyStatus(code, err)
	}
	if strings.Contains(msg, "rate limit") {
		return &RateLimitError{Err: err}
	}
	if strings.Contains(msg, "overloaded") || strings.Contains(msg, "server error") || strings.Contains(msg, "connection reset") {
		return &APIError{Err: err}
	}
	return err
}

// IsRetryable reports whether err is provider backpressure or a transient fault.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	var api *APIError
	return errors.As(err, &rl) || errors.As(err, &api)
}
