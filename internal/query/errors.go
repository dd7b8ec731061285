package query

import (
	"errors"
	"fmt"
)

// Kind classifies a query failure.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindSourceUnavailable Kind = "source_unavailable"
	KindStoreRead         Kind = "store_read"
	KindStoreWrite        Kind = "store_write"
)

// Error is returned by every Service method.
type Error struct {
	Kind Kind
	// Subject is the program id or key the call was about.
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" if err is not a query error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// IsNotFound reports whether nothing exists for the subject, in the store or on the ledger.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsSourceUnavailable reports whether the ledger could not be queried.
func IsSourceUnavailable(err error) bool { return KindOf(err) == KindSourceUnavailable }

// IsInvalidInput reports whether the request was rejected before any I/O.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsStoreRead reports whether reading the graph failed.
func IsStoreRead(err error) bool { return KindOf(err) == KindStoreRead }

// IsStoreWrite reports whether writing fetched records to the graph failed.
func IsStoreWrite(err error) bool { return KindOf(err) == KindStoreWrite }
