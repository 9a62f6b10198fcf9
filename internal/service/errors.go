package service

import (
	"errors"
	"fmt"
)

// ErrMissingAuthorization is returned by credential-gated routes before any
// upstream call when the caller sent no Authorization header.
var ErrMissingAuthorization = errors.New("missing authorization header")

// PayloadDecodeError reports a JSON body that could not be parsed. For the
// upstream response this means the exchange completed but its payload was
// not what the route expects.
type PayloadDecodeError struct {
	Op  string
	Err error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PayloadDecodeError) Unwrap() error { return e.Err }

// RequestBodyError reports a failure to read the caller's request body.
type RequestBodyError struct {
	Err error
}

func (e *RequestBodyError) Error() string {
	return fmt.Sprintf("read request body: %v", e.Err)
}

func (e *RequestBodyError) Unwrap() error { return e.Err }
