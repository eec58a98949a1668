package models

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is returned when quote values break the snapshot invariants
var ErrInvalidSnapshot = errors.New("invalid market snapshot")

// FetchRejectedError is returned when the quote request did not succeed.
// Status is 0 when the transport itself failed.
type FetchRejectedError struct {
	Status int
	Body   string
	Cause  error
}

// Error implements the error interface
func (e *FetchRejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("HTTP Response was rejected: %d - %s: %v", e.Status, e.Body, e.Cause)
	}
	return fmt.Sprintf("HTTP Response was rejected: %d - %s", e.Status, e.Body)
}

func (e *FetchRejectedError) Unwrap() error { return e.Cause }

// DecodeError is returned when a successful response does not match the quote schema
type DecodeError struct {
	Cause error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding quote response: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
