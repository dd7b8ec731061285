package ingest

import (
	"errors"
	"fmt"

	"github.com/dyluth/discgraph/pkg/graph"
)

// Phase identifies the step of an ingest that failed.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseNodes    Phase = "nodes"
	PhaseEdges    Phase = "edges"
)

// Error reports a failed ingest. For PhaseNodes no edge was attempted; for
// PhaseEdges every node is already written and a retry of the same record is safe.
type Error struct {
	Phase      Phase
	Collection graph.Collection
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("ingest %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("ingest %s (%s): %v", e.Phase, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsInvalidRecord reports whether the record was rejected before any write.
func IsInvalidRecord(err error) bool {
	return phaseOf(err) == PhaseValidate
}

// IsNodeWrite reports whether a node upsert failed.
func IsNodeWrite(err error) bool {
	return phaseOf(err) == PhaseNodes
}

// IsEdgeWrite reports whether an edge upsert failed after all nodes were written.
func IsEdgeWrite(err error) bool {
	return phaseOf(err) == PhaseEdges
}

func phaseOf(err error) Phase {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Phase
	}
	return ""
}
