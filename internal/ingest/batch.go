package ingest

import (
	"context"
	"fmt"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ledger"
	"github.com/dyluth/discgraph/internal/metrics"
	"go.uber.org/zap"
)

// BatchPolicy decides what happens when one record of a batch fails to ingest.
type BatchPolicy string

const (
	// BatchFailFast aborts the rest of the batch at the first ingest failure.
	BatchFailFast BatchPolicy = "fail_fast"
	// BatchSkipAndContinue logs the failure and moves on to the next record.
	BatchSkipAndContinue BatchPolicy = "skip_and_continue"
)

// ParseBatchPolicy parses a policy name. The empty string selects BatchFailFast.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch BatchPolicy(s) {
	case "", BatchFailFast:
		return BatchFailFast, nil
	case BatchSkipAndContinue:
		return BatchSkipAndContinue, nil
	}
	return "", fmt.Errorf("unknown batch policy %q (must be %q or %q)", s, BatchFailFast, BatchSkipAndContinue)
}

// Skip reasons, also used as metric labels.
const (
	SkipMalformed = "malformed"
	SkipFailed    = "ingest_failed"
)

// BatchResult summarises one pass over a program's accounts.
type BatchResult struct {
	Accounts  int
	Ingested  int
	Malformed int
	Failed    int

	// Err is the first ingest failure, or the context error if the batch was cancelled.
	Err error
}

// RecordFromAccount decodes acct into a record contributed by the account address.
func RecordFromAccount(programID string, acct ledger.Account, dec *decoder.Decoder) (Record, error) {
	seg, err := dec.Decode(acct.Data)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ProgramID:     programID,
		Discriminator: seg.Discriminator,
		Instruction:   seg.Instruction,
		UserID:        acct.Pubkey,
	}, nil
}

// IngestAccounts decodes and ingests every account in order. Malformed records are
// always skipped; ingest failures are handled according to policy. Cancellation is
// checked between records.
func (e *Engine) IngestAccounts(ctx context.Context, programID string, accounts []ledger.Account, dec *decoder.Decoder, policy BatchPolicy) BatchResult {
	res := BatchResult{Accounts: len(accounts)}

	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		rec, err := RecordFromAccount(programID, acct, dec)
		if err != nil {
			res.Malformed++
			metrics.RecordsSkippedTotal.WithLabelValues(SkipMalformed).Inc()
			e.logger.Debug("record skipped",
				zap.String("event", "record_skipped"),
				zap.String("reason", SkipMalformed),
				zap.String("program_id", programID),
				zap.String("pubkey", acct.Pubkey),
				zap.Error(err))
			continue
		}

		if err := e.Ingest(ctx, rec); err != nil {
			res.Failed++
			if res.Err == nil {
				res.Err = err
			}
			if policy == BatchSkipAndContinue {
				metrics.RecordsSkippedTotal.WithLabelValues(SkipFailed).Inc()
				continue
			}
			return res
		}
		res.Ingested++
	}

	return res
}
