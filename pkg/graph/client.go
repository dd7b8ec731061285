package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dyluth/discgraph/internal/keys"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis hashes and sets.
// All keys are namespaced with the store's namespace.
// The store is thread-safe and can be used concurrently from multiple goroutines.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store for the given namespace.
// Returns an error if namespace is empty.
func NewRedisStore(redisOpts *redis.Options, namespace string) (*RedisStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &RedisStore{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// Namespace returns the key namespace.
func (s *RedisStore) Namespace() string {
	return s.namespace
}

// RedisClient exposes the underlying client for diagnostics and tests.
func (s *RedisStore) RedisClient() *redis.Client {
	return s.rdb
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// UpsertNode replaces the document at key inside one MULTI/EXEC block, so readers
// never observe a half-written document. The collection is provisioned on first use.
func (s *RedisStore) UpsertNode(ctx context.Context, collection Collection, key string, fields map[string]string) error {
	if err := collection.Validate(); err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}
	if collection.IsEdge() {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: errors.New("collection holds edges")}
	}
	if key == "" {
		return &StoreError{Op: "upsert node", Collection: collection, Err: errors.New("empty key")}
	}

	hash := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		hash[k] = v
	}

	nodeKey := NodeKey(s.namespace, collection, key)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, CollectionsKey(s.namespace), string(collection), collection.Kind())
		pipe.Del(ctx, nodeKey)
		if len(hash) > 0 {
			pipe.HSet(ctx, nodeKey, hash)
		}
		pipe.SAdd(ctx, MembersKey(s.namespace, collection), key)
		return nil
	})
	if err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// UpsertEdge writes the edge document and the adjacency entry for from->to.
// The edge id is derived from the endpoints, so the same pair always lands on the same key.
func (s *RedisStore) UpsertEdge(ctx context.Context, collection Collection, from, to string) error {
	if err := collection.Validate(); err != nil {
		return &StoreError{Op: "upsert edge", Collection: collection, Err: err}
	}
	if !collection.IsEdge() {
		return &StoreError{Op: "upsert edge", Collection: collection, Err: errors.New("collection holds nodes")}
	}
	if from == "" || to == "" {
		return &StoreError{Op: "upsert edge", Collection: collection, Err: errors.New("edge endpoints cannot be empty")}
	}

	edgeID := EdgeID(from, to)
	edgeKey := EdgeKey(s.namespace, collection, edgeID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, CollectionsKey(s.namespace), string(collection), collection.Kind())
		pipe.Del(ctx, edgeKey)
		pipe.HSet(ctx, edgeKey, map[string]interface{}{fieldFrom: from, fieldTo: to})
		pipe.SAdd(ctx, AdjacencyKey(s.namespace, collection, from), to)
		pipe.SAdd(ctx, MembersKey(s.namespace, collection), edgeID)
		return nil
	})
	if err != nil {
		return &StoreError{Op: "upsert edge", Collection: collection, Key: edgeID, Err: err}
	}
	return nil
}

// EnsureCollections registers the named collections. Safe to call repeatedly.
func (s *RedisStore) EnsureCollections(ctx context.Context, names []Collection) error {
	if len(names) == 0 {
		return nil
	}

	registry := make(map[string]interface{}, len(names))
	for _, name := range names {
		if err := name.Validate(); err != nil {
			return &StoreError{Op: "ensure collection", Collection: name, Err: err}
		}
		registry[string(name)] = name.Kind()
	}

	if err := s.rdb.HSet(ctx, CollectionsKey(s.namespace), registry).Err(); err != nil {
		return &StoreError{Op: "ensure collections", Err: err}
	}
	return nil
}

// Collections returns the provisioned collections and their kinds.
func (s *RedisStore) Collections(ctx context.Context) (map[Collection]string, error) {
	raw, err := s.rdb.HGetAll(ctx, CollectionsKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}

	out := make(map[Collection]string, len(raw))
	for name, kind := range raw {
		out[Collection(name)] = kind
	}
	return out, nil
}

// Count returns the number of documents in a collection.
func (s *RedisStore) Count(ctx context.Context, collection Collection) (int64, error) {
	n, err := s.rdb.SCard(ctx, MembersKey(s.namespace, collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// GetNode returns the stored fields of one node.
// Returns ErrNotFound if the node doesn't exist. Use IsNotFound() to check.
func (s *RedisStore) GetNode(ctx context.Context, collection Collection, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, NodeKey(s.namespace, collection, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	return fields, nil
}

// QueryByProgramPrefix scans the discriminator key set for the program's namespace
// prefix, then joins each discriminator with its linked instruction. Discriminators
// whose instruction node is missing (an ingest that failed half way) are left out.
// Results are sorted by key for stable output.
func (s *RedisStore) QueryByProgramPrefix(ctx context.Context, programID string) ([]DiscriminatorView, error) {
	if programID == "" {
		return nil, fmt.Errorf("program id cannot be empty")
	}

	// Sanitized namespaces contain no glob metacharacters, so the prefix is literal.
	pattern := keys.Prefix(programID) + "*"
	iter := s.rdb.SScan(ctx, MembersKey(s.namespace, CollectionDiscriminators), 0, pattern, 0).Iterator()

	var discKeys []string
	for iter.Next(ctx) {
		discKeys = append(discKeys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan discriminators: %w", err)
	}
	if len(discKeys) == 0 {
		return []DiscriminatorView{}, nil
	}
	sort.Strings(discKeys)

	discs, err := s.readNodes(ctx, CollectionDiscriminators, discKeys)
	if err != nil {
		return nil, err
	}

	instrKeys := make([]string, 0, len(discs))
	parsed := make([]*Discriminator, 0, len(discs))
	for _, fields := range discs {
		if fields == nil {
			continue
		}
		d, err := FieldsToDiscriminator(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize discriminator: %w", err)
		}
		parsed = append(parsed, d)
		instrKeys = append(instrKeys, d.InstructionKey)
	}

	instrs, err := s.readNodes(ctx, CollectionInstructions, instrKeys)
	if err != nil {
		return nil, err
	}

	views := make([]DiscriminatorView, 0, len(parsed))
	for i, d := range parsed {
		if instrs[i] == nil {
			continue
		}
		instr, err := FieldsToInstruction(instrs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize instruction: %w", err)
		}
		views = append(views, DiscriminatorView{
			Key:            d.Key,
			ProgramID:      d.ProgramID,
			Discriminator:  d.Bytes,
			InstructionKey: instr.Key,
			Instruction:    instr.Bytes,
			Contributor:    d.ContributorID,
		})
	}

	return views, nil
}

// InstructionsByDiscriminator follows MappedTo edges out of the discriminator.
func (s *RedisStore) InstructionsByDiscriminator(ctx context.Context, discriminatorKey string) ([]InstructionView, error) {
	from := keys.Ref(string(CollectionDiscriminators), discriminatorKey)
	refs, err := s.rdb.SMembers(ctx, AdjacencyKey(s.namespace, CollectionMappedTo, from)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read MappedTo edges: %w", err)
	}
	sort.Strings(refs)

	instrKeys := make([]string, 0, len(refs))
	for _, ref := range refs {
		collection, key, err := SplitRef(ref)
		if err != nil {
			return nil, err
		}
		if collection != CollectionInstructions {
			return nil, fmt.Errorf("MappedTo edge points at %s, expected %s", collection, CollectionInstructions)
		}
		instrKeys = append(instrKeys, key)
	}

	docs, err := s.readNodes(ctx, CollectionInstructions, instrKeys)
	if err != nil {
		return nil, err
	}

	views := make([]InstructionView, 0, len(docs))
	for _, fields := range docs {
		if fields == nil {
			continue
		}
		instr, err := FieldsToInstruction(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize instruction: %w", err)
		}
		views = append(views, InstructionView{Key: instr.Key, Instruction: instr.Bytes})
	}
	return views, nil
}

// ListProgramIDs returns the unsanitized id of every stored program, sorted.
func (s *RedisStore) ListProgramIDs(ctx context.Context) ([]string, error) {
	programKeys, err := s.rdb.SMembers(ctx, MembersKey(s.namespace, CollectionPrograms)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read programs: %w", err)
	}

	docs, err := s.readNodes(ctx, CollectionPrograms, programKeys)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, fields := range docs {
		if id := fields[fieldID]; id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// readNodes fetches node hashes in one pipeline. The result is index-aligned with
// nodeKeys; missing nodes are nil.
func (s *RedisStore) readNodes(ctx context.Context, collection Collection, nodeKeys []string) ([]map[string]string, error) {
	if len(nodeKeys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(nodeKeys))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range nodeKeys {
			cmds[i] = pipe.HGetAll(ctx, NodeKey(s.namespace, collection, key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	out := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out[i] = fields
		}
	}
	return out, nil
}
