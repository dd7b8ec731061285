// Package ledger lists the raw accounts owned by an on-chain program.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Account is one program-owned account: its address and raw data.
type Account struct {
	Pubkey string
	Data   []byte
}

// Source lists the accounts currently owned by a program.
// Implementations must be safe for concurrent use.
type Source interface {
	ListAccounts(ctx context.Context, programID string) ([]Account, error)
}

// ErrInvalidProgramID is returned when a program id is not a valid address.
var ErrInvalidProgramID = errors.New("invalid program id")

// UnavailableError reports that the ledger could not be reached or refused the request.
type UnavailableError struct {
	Endpoint  string
	ProgramID string
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ledger %s unavailable for program %s: %v", e.Endpoint, e.ProgramID, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err carries an *UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsInvalidProgramID reports whether the program id was rejected before any request.
func IsInvalidProgramID(err error) bool {
	return errors.Is(err, ErrInvalidProgramID)
}
