package completion

import (
	"errors"
	"fmt"

	"github.com/joelkehle/techtransfer-enrich/internal/retry"
)

// Kind tags a Failure so callers can branch without reading messages.
type Kind string

const (
	KindRateLimit  Kind = "rate_limit"
	KindAPIError   Kind = "api_error"
	KindParse      Kind = "parse_error"
	KindUnknown    Kind = "unknown"
	KindMaxRetries Kind = "max_retries"
)

func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindAPIError, KindMaxRetries:
		return true
	}
	return false
}

// Failure is the caller-facing error of an enrichment call.
type Failure struct {
	Kind      Kind   `json:"error_type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (f *Failure) Error() string { return fmt.Sprintf("%s: %s", f.Kind, f.Message) }
func (f *Failure) Unwrap() error { return f.Err }

func NewFailure(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Message: errText(err), Retryable: kind.Retryable(), Err: err}
}

// AsFailure tags any error with its Kind. An exhausted retry budget becomes
// max_retries regardless of the last attempt's error.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return &Failure{
			Kind:      KindMaxRetries,
			Message:   fmt.Sprintf("max retries exceeded after %d attempts: %s", exhausted.Attempts, errText(exhausted.Err)),
			Retryable: true,
			Err:       err,
		}
	}
	var rl *RateLimitError
	var api *APIError
	var pe *ParseError
	switch {
	case errors.As(err, &rl):
		return NewFailure(KindRateLimit, err)
	case errors.As(err, &api):
		return NewFailure(KindAPIError, err)
	case errors.As(err, &pe):
		return NewFailure(KindParse, err)
	}
	return NewFailure(KindUnknown, err)
}
