// Package ingest upserts one decoded record into the graph.
//
// An ingest writes four nodes (program, discriminator, instruction, user) and then
// three edges between them. The node writes run concurrently and are all awaited
// before any edge is written, so an edge never references a node that was not at
// least attempted. Every write overwrites, which makes re-ingesting a record (or
// retrying a failed one) converge on the same graph.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dyluth/discgraph/internal/keys"
	"github.com/dyluth/discgraph/internal/metrics"
	"github.com/dyluth/discgraph/pkg/graph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Record is one decoded ledger record attributed to a contributor.
type Record struct {
	ProgramID     string
	Discriminator []byte
	Instruction   []byte
	UserID        string
}

// Keys are the document keys an ingest writes.
type Keys struct {
	Program       string
	Discriminator string
	Instruction   string
	User          string
}

// Engine performs the two-phase graph upsert.
type Engine struct {
	store  graph.Store
	logger *zap.Logger
}

// NewEngine creates an engine writing to store. A nil logger discards output.
func NewEngine(store graph.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		logger: logger.Named("ingest"),
	}
}

// DeriveKeys computes the keys for rec without touching the store.
func DeriveKeys(rec Record) (Keys, error) {
	if rec.UserID == "" {
		return Keys{}, fmt.Errorf("%w: user id is empty", keys.ErrInvalidInput)
	}

	discKey, err := keys.Derive(rec.ProgramID, rec.Discriminator)
	if err != nil {
		return Keys{}, err
	}
	instrKey, err := keys.Derive(rec.ProgramID, rec.Instruction)
	if err != nil {
		return Keys{}, err
	}

	return Keys{
		Program:       keys.Namespace(rec.ProgramID),
		Discriminator: discKey,
		Instruction:   instrKey,
		User:          keys.Namespace(rec.UserID),
	}, nil
}

// Ingest writes rec into the graph. It returns nil only when every node and edge
// write succeeded. Failures are *Error values; nothing is retried here.
func (e *Engine) Ingest(ctx context.Context, rec Record) error {
	start := time.Now()

	k, err := DeriveKeys(rec)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return &Error{Phase: PhaseValidate, Err: err}
	}

	discHex := hex.EncodeToString(rec.Discriminator)
	instrHex := hex.EncodeToString(rec.Instruction)

	nodes := []struct {
		collection graph.Collection
		key        string
		fields     map[string]string
	}{
		{graph.CollectionPrograms, k.Program, graph.ProgramToFields(&graph.Program{Key: k.Program, ID: rec.ProgramID})},
		{graph.CollectionDiscriminators, k.Discriminator, graph.DiscriminatorToFields(&graph.Discriminator{
			Key:            k.Discriminator,
			ProgramID:      rec.ProgramID,
			Bytes:          discHex,
			InstructionKey: k.Instruction,
			ContributorID:  rec.UserID,
		})},
		{graph.CollectionInstructions, k.Instruction, graph.InstructionToFields(&graph.Instruction{Key: k.Instruction, Bytes: instrHex})},
		{graph.CollectionUsers, k.User, graph.UserToFields(&graph.User{Key: k.User, ID: rec.UserID})},
	}

	// Phase A: every node write is attempted; the first failure is reported.
	var nodeGroup errgroup.Group
	for _, n := range nodes {
		n := n
		nodeGroup.Go(func() error {
			if err := e.store.UpsertNode(ctx, n.collection, n.key, n.fields); err != nil {
				return &Error{Phase: PhaseNodes, Collection: n.collection, Err: err}
			}
			return nil
		})
	}
	if err := nodeGroup.Wait(); err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.ResultNodeFailure).Inc()
		e.logger.Warn("ingest failed",
			zap.String("event", "ingest_nodes_failed"),
			zap.String("program_id", rec.ProgramID),
			zap.String("key", k.Discriminator),
			zap.Error(err))
		return err
	}

	discRef := keys.Ref(string(graph.CollectionDiscriminators), k.Discriminator)
	edges := []struct {
		collection graph.Collection
		from, to   string
	}{
		{graph.CollectionHasDiscriminator, keys.Ref(string(graph.CollectionPrograms), k.Program), discRef},
		{graph.CollectionMappedTo, discRef, keys.Ref(string(graph.CollectionInstructions), k.Instruction)},
		{graph.CollectionContributedBy, discRef, keys.Ref(string(graph.CollectionUsers), k.User)},
	}

	// Phase B: only reached once every node is written.
	var edgeGroup errgroup.Group
	for _, ed := range edges {
		ed := ed
		edgeGroup.Go(func() error {
			if err := e.store.UpsertEdge(ctx, ed.collection, ed.from, ed.to); err != nil {
				return &Error{Phase: PhaseEdges, Collection: ed.collection, Err: err}
			}
			return nil
		})
	}
	if err := edgeGroup.Wait(); err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.ResultEdgeFailure).Inc()
		e.logger.Warn("ingest failed",
			zap.String("event", "ingest_edges_failed"),
			zap.String("program_id", rec.ProgramID),
			zap.String("key", k.Discriminator),
			zap.Error(err))
		return err
	}

	metrics.IngestsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	e.logger.Debug("ingest complete",
		zap.String("event", "ingest_complete"),
		zap.String("program_id", rec.ProgramID),
		zap.String("key", k.Discriminator),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}
