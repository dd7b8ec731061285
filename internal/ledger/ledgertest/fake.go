// Package ledgertest provides an in-memory ledger.Source for tests.
package ledgertest

import (
	"context"
	"sync"

	"github.com/dyluth/discgraph/internal/ledger"
)

// Source serves configured accounts per program and counts calls.
type Source struct {
	mu       sync.Mutex
	accounts map[string][]ledger.Account
	errs     map[string]error
	calls    map[string]int

	// Fetched, when set, receives the program id after every call.
	Fetched chan string
}

var _ ledger.Source = (*Source)(nil)

// New creates an empty source. Unknown programs have no accounts.
func New() *Source {
	return &Source{
		accounts: make(map[string][]ledger.Account),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Set replaces the accounts served for programID.
func (s *Source) Set(programID string, accounts ...ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[programID] = accounts
}

// Fail makes calls for programID return err until cleared with Fail(programID, nil).
func (s *Source) Fail(programID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, programID)
		return
	}
	s.errs[programID] = err
}

// Calls returns how many times programID was listed.
func (s *Source) Calls(programID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[programID]
}

// ListAccounts implements ledger.Source.
func (s *Source) ListAccounts(ctx context.Context, programID string) ([]ledger.Account, error) {
	s.mu.Lock()
	s.calls[programID]++
	accounts := append([]ledger.Account(nil), s.accounts[programID]...)
	err := s.errs[programID]
	s.mu.Unlock()

	if s.Fetched != nil {
		select {
		case s.Fetched <- programID:
		default:
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, &ledger.UnavailableError{Endpoint: "fake", ProgramID: programID, Err: err}
	}
	return accounts, nil
}

// Account builds an account whose data is n bytes counting up from first.
func Account(pubkey string, n int, first byte) ledger.Account {
	data := make([]byte, n)
	for i := range data {
		data[i] = first + byte(i)
	}
	return ledger.Account{Pubkey: pubkey, Data: data}
}
