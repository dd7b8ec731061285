// Package query serves discriminator lookups with write-through caching.
//
// A lookup first reads the graph. When the graph holds nothing for the program the
// service fetches the program's accounts from the ledger, ingests the decodable ones
// and answers from the graph again, so the next lookup is a cache hit.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/ledger"
	"github.com/dyluth/discgraph/internal/metrics"
	"github.com/dyluth/discgraph/pkg/graph"
	"go.uber.org/zap"
)

var errNoSource = errors.New("no ledger source configured")

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Decoder *decoder.Decoder
	Policy  ingest.BatchPolicy
	Logger  *zap.Logger
}

// Service answers graph queries, filling the graph from the ledger on a miss.
type Service struct {
	store   graph.Store
	source  ledger.Source
	engine  *ingest.Engine
	decoder *decoder.Decoder
	policy  ingest.BatchPolicy
	logger  *zap.Logger
}

// NewService wires a query service. A nil source turns every cache miss into
// KindSourceUnavailable.
func NewService(store graph.Store, source ledger.Source, engine *ingest.Engine, opts Options) *Service {
	if opts.Decoder == nil {
		opts.Decoder = decoder.Default()
	}
	if opts.Policy == "" {
		opts.Policy = ingest.BatchFailFast
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		source:  source,
		engine:  engine,
		decoder: opts.Decoder,
		policy:  opts.Policy,
		logger:  opts.Logger.Named("query"),
	}
}

// Policy returns the batch policy applied on a cache miss.
func (s *Service) Policy() ingest.BatchPolicy {
	return s.policy
}

// Discriminators returns every discriminator known for programID.
func (s *Service) Discriminators(ctx context.Context, programID string) ([]graph.DiscriminatorView, error) {
	if programID == "" {
		return nil, &Error{Kind: KindInvalidInput, Err: errors.New("program id is empty")}
	}
	start := time.Now()

	views, err := s.store.QueryByProgramPrefix(ctx, programID)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryStoreError).Inc()
		return nil, &Error{Kind: KindStoreRead, Subject: programID, Err: err}
	}
	if len(views) > 0 {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryHit).Inc()
		s.logger.Debug("cache hit",
			zap.String("event", "cache_hit"),
			zap.String("program_id", programID),
			zap.Int("results", len(views)))
		return views, nil
	}

	if s.source == nil {
		metrics.QueriesTotal.WithLabelValues(metrics.QuerySourceUnavailable).Inc()
		return nil, &Error{Kind: KindSourceUnavailable, Subject: programID, Err: errNoSource}
	}

	accounts, err := s.source.ListAccounts(ctx, programID)
	if err != nil {
		if ledger.IsInvalidProgramID(err) {
			return nil, &Error{Kind: KindInvalidInput, Subject: programID, Err: err}
		}
		metrics.QueriesTotal.WithLabelValues(metrics.QuerySourceUnavailable).Inc()
		s.logger.Warn("ledger fetch failed",
			zap.String("event", "cache_fill_fetch_failed"),
			zap.String("program_id", programID),
			zap.Error(err))
		return nil, &Error{Kind: KindSourceUnavailable, Subject: programID, Err: err}
	}

	res := s.engine.IngestAccounts(ctx, programID, accounts, s.decoder, s.policy)
	if res.Err != nil && (s.policy == ingest.BatchFailFast || res.Ingested == 0) {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryStoreError).Inc()
		s.logger.Warn("cache fill failed",
			zap.String("event", "cache_fill_failed"),
			zap.String("program_id", programID),
			zap.Int("ingested", res.Ingested),
			zap.Int("failed", res.Failed),
			zap.Error(res.Err))
		return nil, &Error{Kind: KindStoreWrite, Subject: programID, Err: res.Err}
	}

	if res.Ingested == 0 {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryNotFound).Inc()
		s.logger.Debug("nothing to ingest",
			zap.String("event", "not_found"),
			zap.String("program_id", programID),
			zap.Int("accounts", res.Accounts),
			zap.Int("malformed", res.Malformed))
		return nil, &Error{Kind: KindNotFound, Subject: programID}
	}

	views, err = s.store.QueryByProgramPrefix(ctx, programID)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryStoreError).Inc()
		return nil, &Error{Kind: KindStoreRead, Subject: programID, Err: err}
	}
	if len(views) == 0 {
		metrics.QueriesTotal.WithLabelValues(metrics.QueryNotFound).Inc()
		return nil, &Error{Kind: KindNotFound, Subject: programID}
	}

	metrics.QueriesTotal.WithLabelValues(metrics.QueryFilled).Inc()
	s.logger.Info("cache filled",
		zap.String("event", "cache_filled"),
		zap.String("program_id", programID),
		zap.Int("accounts", res.Accounts),
		zap.Int("ingested", res.Ingested),
		zap.Int("malformed", res.Malformed),
		zap.Int("failed", res.Failed),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()))
	return views, nil
}

// IngestOne writes a single user-supplied record.
func (s *Service) IngestOne(ctx context.Context, rec ingest.Record) error {
	if err := s.engine.Ingest(ctx, rec); err != nil {
		if ingest.IsInvalidRecord(err) {
			return &Error{Kind: KindInvalidInput, Subject: rec.ProgramID, Err: err}
		}
		return &Error{Kind: KindStoreWrite, Subject: rec.ProgramID, Err: err}
	}
	return nil
}

// Instructions returns the instructions mapped from a discriminator key.
func (s *Service) Instructions(ctx context.Context, discriminatorKey string) ([]graph.InstructionView, error) {
	if discriminatorKey == "" {
		return nil, &Error{Kind: KindInvalidInput, Err: errors.New("discriminator key is empty")}
	}

	views, err := s.store.InstructionsByDiscriminator(ctx, discriminatorKey)
	if err != nil {
		return nil, &Error{Kind: KindStoreRead, Subject: discriminatorKey, Err: err}
	}
	if len(views) == 0 {
		return nil, &Error{Kind: KindNotFound, Subject: discriminatorKey}
	}
	return views, nil
}

// Programs lists every program with at least one ingested record.
func (s *Service) Programs(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListProgramIDs(ctx)
	if err != nil {
		return nil, &Error{Kind: KindStoreRead, Err: err}
	}
	return ids, nil
}
