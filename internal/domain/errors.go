package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a dispatch failure for the retry state machine.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindAuthInvalid ErrorKind = "auth_invalid"
	KindNoAccounts  ErrorKind = "no_accounts"
	KindMaxRetries  ErrorKind = "max_retries"
	KindAPIError    ErrorKind = "api_error"
	KindNetwork     ErrorKind = "network_error"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// ProxyError is the single error type surfaced by the dispatcher. It carries
// enough context (kind, retryability, account, status code) for handlers to
// decide the next retry step and for callers to render a useful failure.
type ProxyError struct {
	Kind           ErrorKind
	Err            error
	Message        string
	Retryable      bool
	RetryAfter     time.Duration
	AccountEmail   string
	HTTPStatusCode int
	AllRateLimited bool
	Attempts       int
}

func (e *ProxyError) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ProxyError) Unwrap() error { return e.Err }

func NewRateLimitedError(email string, retryAfter time.Duration) *ProxyError {
	return &ProxyError{
		Kind:         KindRateLimited,
		Message:      "account rate limited",
		Retryable:    true,
		RetryAfter:   retryAfter,
		AccountEmail: email,
	}
}

func NewAuthInvalidError(email string, err error) *ProxyError {
	return &ProxyError{
		Kind:         KindAuthInvalid,
		Err:          err,
		Message:      "account credentials invalid",
		Retryable:    false,
		AccountEmail: email,
	}
}

func NewNoAccountsError(allRateLimited bool) *ProxyError {
	return &ProxyError{
		Kind:           KindNoAccounts,
		Message:        "no accounts available",
		Retryable:      allRateLimited,
		AllRateLimited: allRateLimited,
	}
}

func NewMaxRetriesError(attempts int, last error) *ProxyError {
	return &ProxyError{
		Kind:      KindMaxRetries,
		Err:       last,
		Message:   "max retries exceeded",
		Retryable: false,
		Attempts:  attempts,
	}
}

func NewAPIError(statusCode int, body string) *ProxyError {
	return &ProxyError{
		Kind:           KindAPIError,
		Message:        fmt.Sprintf("upstream returned status %d", statusCode),
		Err:            errors.New(body),
		Retryable:      statusCode >= 500,
		HTTPStatusCode: statusCode,
	}
}

func NewNetworkError(err error) *ProxyError {
	return &ProxyError{
		Kind:      KindNetwork,
		Err:       err,
		Message:   "network error",
		Retryable: true,
	}
}

// IsRetryable reports whether err (a *ProxyError or not) should drive the
// handler's retry loop another step.
func IsRetryable(err error) bool {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
