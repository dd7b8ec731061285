package graph

import (
	"context"
	"fmt"
)

// Collection names a node or edge collection.
type Collection string

const (
	CollectionPrograms       Collection = "Programs"
	CollectionDiscriminators Collection = "Discriminators"
	CollectionInstructions   Collection = "Instructions"
	CollectionUsers          Collection = "Users"

	CollectionHasDiscriminator Collection = "HasDiscriminator"
	CollectionMappedTo         Collection = "MappedTo"
	CollectionContributedBy    Collection = "ContributedBy"
)

// NodeCollections are the vertex collections, in ingest order.
var NodeCollections = []Collection{
	CollectionPrograms,
	CollectionDiscriminators,
	CollectionInstructions,
	CollectionUsers,
}

// EdgeCollections are the relationship collections, in ingest order.
var EdgeCollections = []Collection{
	CollectionHasDiscriminator,
	CollectionMappedTo,
	CollectionContributedBy,
}

// AllCollections returns node collections followed by edge collections.
func AllCollections() []Collection {
	all := make([]Collection, 0, len(NodeCollections)+len(EdgeCollections))
	all = append(all, NodeCollections...)
	return append(all, EdgeCollections...)
}

// IsEdge reports whether c is an edge collection.
func (c Collection) IsEdge() bool {
	for _, e := range EdgeCollections {
		if c == e {
			return true
		}
	}
	return false
}

// Validate rejects collections outside the schema.
func (c Collection) Validate() error {
	for _, known := range AllCollections() {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("unknown collection: %q", string(c))
}

// Kind returns "edge" or "node".
func (c Collection) Kind() string {
	if c.IsEdge() {
		return "edge"
	}
	return "node"
}

// Program is a ledger program address.
type Program struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// Discriminator is a structural tag extracted from a record.
// Bytes are lowercase hex.
type Discriminator struct {
	Key            string `json:"key"`
	ProgramID      string `json:"program_id"`
	Bytes          string `json:"discriminator_bytes"`
	InstructionKey string `json:"linked_instruction_id"`
	ContributorID  string `json:"contributor_user_id"`
}

// Instruction is the payload segment that follows a discriminator.
type Instruction struct {
	Key   string `json:"key"`
	Bytes string `json:"instruction_bytes"`
}

// User is a contributing identity.
type User struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// DiscriminatorView is a discriminator joined with its linked instruction.
type DiscriminatorView struct {
	Key            string `json:"key"`
	ProgramID      string `json:"program_id"`
	Discriminator  string `json:"discriminator"`
	InstructionKey string `json:"instruction_key"`
	Instruction    string `json:"instruction"`
	Contributor    string `json:"contributor"`
}

// InstructionView is an instruction reached from a discriminator.
type InstructionView struct {
	Key         string `json:"key"`
	Instruction string `json:"instruction"`
}

// Store is the graph persistence contract consumed by the ingestion core.
// Implementations must be safe for concurrent use.
type Store interface {
	// UpsertNode writes fields under key, replacing any existing document.
	UpsertNode(ctx context.Context, collection Collection, key string, fields map[string]string) error

	// UpsertEdge writes the from->to relationship, replacing any existing edge with
	// the same endpoints.
	UpsertEdge(ctx context.Context, collection Collection, from, to string) error

	// GetNode returns the fields stored under key, or an error satisfying
	// IsNotFound when there is none.
	GetNode(ctx context.Context, collection Collection, key string) (map[string]string, error)

	// QueryByProgramPrefix returns every discriminator namespaced under programID,
	// joined with its instruction.
	QueryByProgramPrefix(ctx context.Context, programID string) ([]DiscriminatorView, error)

	// InstructionsByDiscriminator follows MappedTo edges from a discriminator key.
	InstructionsByDiscriminator(ctx context.Context, discriminatorKey string) ([]InstructionView, error)

	// ListProgramIDs returns every program id that has been ingested.
	ListProgramIDs(ctx context.Context) ([]string, error)

	// EnsureCollections provisions the named collections. Idempotent.
	EnsureCollections(ctx context.Context, names []Collection) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// Inspector is implemented by stores that can report their provisioning state.
type Inspector interface {
	Collections(ctx context.Context) (map[Collection]string, error)
	Count(ctx context.Context, collection Collection) (int64, error)
}

var (
	_ Inspector = (*RedisStore)(nil)
	_ Inspector = (*PebbleStore)(nil)
)
