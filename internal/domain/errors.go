package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBadStatus signals a non-2xx response from the provider portal.
	ErrBadStatus = errors.New("unexpected http status")
	// ErrParse signals that the provider page lacked the expected structure.
	ErrParse = errors.New("page structure not recognized")
)

// FetchError wraps a transient fetch failure with the source that produced
// it. Fetch errors are logged and absorbed; the previous snapshot stays
// available.
type FetchError struct {
	Source string // "balance" or "recharge"
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err for the given source.
func NewFetchError(source string, err error) error {
	return &FetchError{Source: source, Err: err}
}
