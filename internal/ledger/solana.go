package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/dyluth/discgraph/internal/metrics"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// Commitment levels accepted by the Solana RPC API.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// PubkeyLen is the decoded length of a Solana address.
const PubkeyLen = 32

// SolanaOptions configures a SolanaSource.
type SolanaOptions struct {
	Endpoint   string
	Commitment string
	Timeout    time.Duration

	// ValidateProgramIDs rejects ids that are not base58 encoded 32-byte keys
	// before issuing a request.
	ValidateProgramIDs bool
}

// SolanaSource lists program accounts over the Solana JSON-RPC API.
type SolanaSource struct {
	client *jrpc2.Client
	opts   SolanaOptions
	logger *zap.Logger
}

var _ Source = (*SolanaSource)(nil)

// NewSolanaSource creates a source for the given endpoint.
func NewSolanaSource(opts SolanaOptions, logger *zap.Logger) (*SolanaSource, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint cannot be empty")
	}
	if opts.Commitment == "" {
		opts.Commitment = CommitmentConfirmed
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ch := jhttp.NewChannel(opts.Endpoint, &jhttp.ChannelOptions{
		Client: &http.Client{Timeout: opts.Timeout},
	})

	return &SolanaSource{
		client: jrpc2.NewClient(ch, nil),
		opts:   opts,
		logger: logger.Named("ledger"),
	}, nil
}

// Close releases the underlying client.
func (s *SolanaSource) Close() error {
	return s.client.Close()
}

// Endpoint returns the RPC endpoint.
func (s *SolanaSource) Endpoint() string {
	return s.opts.Endpoint
}

type accountsConfig struct {
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment,omitempty"`
}

type programAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		// Data is [payload, encoding].
		Data     []string `json:"data"`
		Owner    string   `json:"owner"`
		Lamports uint64   `json:"lamports"`
	} `json:"account"`
}

// ListAccounts calls getProgramAccounts with base64 encoding.
func (s *SolanaSource) ListAccounts(ctx context.Context, programID string) ([]Account, error) {
	if s.opts.ValidateProgramIDs {
		if err := ValidateProgramID(programID); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	var result []programAccount
	err := s.client.CallResult(ctx, "getProgramAccounts", []any{
		programID,
		accountsConfig{Encoding: "base64", Commitment: s.opts.Commitment},
	}, &result)
	metrics.LedgerFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &UnavailableError{Endpoint: s.opts.Endpoint, ProgramID: programID, Err: err}
	}

	accounts := make([]Account, 0, len(result))
	for _, pa := range result {
		data, err := decodeAccountData(pa.Account.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable account",
				zap.String("event", "account_data_invalid"),
				zap.String("program_id", programID),
				zap.String("pubkey", pa.Pubkey),
				zap.Error(err))
			continue
		}
		accounts = append(accounts, Account{Pubkey: pa.Pubkey, Data: data})
	}

	s.logger.Debug("listed program accounts",
		zap.String("event", "ledger_fetch"),
		zap.String("program_id", programID),
		zap.Int("accounts", len(accounts)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()))
	return accounts, nil
}

// Health calls getHealth and returns an error unless the node reports "ok".
func (s *SolanaSource) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var status string
	if err := s.client.CallResult(ctx, "getHealth", nil, &status); err != nil {
		return &UnavailableError{Endpoint: s.opts.Endpoint, Err: err}
	}
	if status != "ok" {
		return &UnavailableError{Endpoint: s.opts.Endpoint, Err: fmt.Errorf("node health is %q", status)}
	}
	return nil
}

// ValidateProgramID checks that id is a base58 encoded 32-byte public key.
func ValidateProgramID(id string) error {
	raw, err := base58.Decode(id)
	if err != nil {
		return fmt.Errorf("%w: %q is not base58: %v", ErrInvalidProgramID, id, err)
	}
	if len(raw) != PubkeyLen {
		return fmt.Errorf("%w: %q decodes to %d bytes, want %d", ErrInvalidProgramID, id, len(raw), PubkeyLen)
	}
	return nil
}

func decodeAccountData(data []string) ([]byte, error) {
	if len(data) != 2 {
		return nil, fmt.Errorf("unexpected data shape: %d elements", len(data))
	}
	if data[1] != "base64" {
		return nil, fmt.Errorf("unexpected data encoding %q", data[1])
	}
	return base64.StdEncoding.DecodeString(data[0])
}
