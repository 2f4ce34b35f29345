package weather

import (
	"fmt"
	"net/http"
)

// FailureReason classifies a failed fetch.
type FailureReason string

const (
	// ReasonNetwork covers connection failures, timeouts and an open circuit.
	ReasonNetwork FailureReason = "network"
	// ReasonUpstream is a non-success HTTP status from upstream.
	ReasonUpstream FailureReason = "upstream_error"
	// ReasonParse is a payload that is present but not in the expected shape.
	ReasonParse FailureReason = "parse_error"
)

// FetchError is the classified failure of one fetch.
type FetchError struct {
	Reason FailureReason

	// StatusCode is set for ReasonUpstream.
	StatusCode int

	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.Reason == ReasonUpstream:
		return fmt.Sprintf("%s(%d): %s", e.Reason, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	default:
		return string(e.Reason)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *FetchError {
	return &FetchError{Reason: ReasonNetwork, Err: err}
}

// UpstreamError records a non-success status.
func UpstreamError(status int) *FetchError {
	return &FetchError{Reason: ReasonUpstream, StatusCode: status}
}

// ParseError wraps a payload shape failure.
func ParseError(err error) *FetchError {
	return &FetchError{Reason: ReasonParse, Err: err}
}

// Result is the outcome of one fetch: either a value or a classified failure.
type Result[T any] struct {
	Value T
	Err   *FetchError
}

// Success wraps a fetched value.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps a classified failure.
func Failure[T any](err *FetchError) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
