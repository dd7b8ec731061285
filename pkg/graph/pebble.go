package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/dyluth/discgraph/internal/keys"
)

// Key layout inside the pebble keyspace. Parts are joined with a zero byte,
// which never occurs in collection names, sanitized keys or document refs.
//
//	n\0{collection}\0{key}           node document (JSON object of fields)
//	e\0{collection}\0{edge_id}       edge document
//	o\0{collection}\0{from}\0{to}    adjacency entry
//	c\0{collection}                  provisioned collection -> kind
const (
	pebbleNode       = 'n'
	pebbleEdge       = 'e'
	pebbleAdjacency  = 'o'
	pebbleCollection = 'c'
)

// PebbleStore implements Store on an embedded pebble database, for running
// without a Redis server. It is safe for concurrent use.
type PebbleStore struct {
	db *pebble.DB
}

var _ Store = (*PebbleStore)(nil)

// OpenPebbleStore opens (creating if needed) the database at dir.
// opts may be nil.
func OpenPebbleStore(dir string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

// DB exposes the underlying database, e.g. for metrics collection.
func (s *PebbleStore) DB() *pebble.DB {
	return s.db
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is open and readable.
func (s *PebbleStore) Ping(ctx context.Context) error {
	_, closer, err := s.db.Get(collectionKey(CollectionPrograms))
	if closer != nil {
		closer.Close()
	}
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	return nil
}

// UpsertNode replaces the document at key in one atomic batch and provisions
// the collection on first use.
func (s *PebbleStore) UpsertNode(ctx context.Context, collection Collection, key string, fields map[string]string) error {
	if err := collection.Validate(); err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}
	if collection.IsEdge() {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: errors.New("collection holds edges")}
	}
	if key == "" {
		return &StoreError{Op: "upsert node", Collection: collection, Err: errors.New("empty key")}
	}
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}

	doc, err := json.Marshal(fields)
	if err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}

	b := s.db.NewBatch()
	defer b.Close()
	b.Set(collectionKey(collection), []byte(collection.Kind()), nil)
	b.Set(pebbleKey(pebbleNode, string(collection), key), doc, nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return &StoreError{Op: "upsert node", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// UpsertEdge writes the edge document and adjacency entry in one atomic batch.
func (s *PebbleStore) UpsertEdge(ctx context.Context, collection Collection, from, to string) error {
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
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "upsert edge", Collection: collection, Key: edgeID, Err: err}
	}

	doc, err := json.Marshal(map[string]string{fieldFrom: from, fieldTo: to})
	if err != nil {
		return &StoreError{Op: "upsert edge", Collection: collection, Key: edgeID, Err: err}
	}

	b := s.db.NewBatch()
	defer b.Close()
	b.Set(collectionKey(collection), []byte(collection.Kind()), nil)
	b.Set(pebbleKey(pebbleEdge, string(collection), edgeID), doc, nil)
	b.Set(pebbleKey(pebbleAdjacency, string(collection), from, to), nil, nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return &StoreError{Op: "upsert edge", Collection: collection, Key: edgeID, Err: err}
	}
	return nil
}

// GetNode returns the stored fields of one node, or ErrNotFound.
func (s *PebbleStore) GetNode(ctx context.Context, collection Collection, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := s.getNode(collection, key)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	return fields, nil
}

// EnsureCollections registers the named collections. Safe to call repeatedly.
func (s *PebbleStore) EnsureCollections(ctx context.Context, names []Collection) error {
	if len(names) == 0 {
		return nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	for _, name := range names {
		if err := name.Validate(); err != nil {
			return &StoreError{Op: "ensure collection", Collection: name, Err: err}
		}
		b.Set(collectionKey(name), []byte(name.Kind()), nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return &StoreError{Op: "ensure collections", Err: err}
	}
	return nil
}

// Collections returns the provisioned collections and their kinds.
func (s *PebbleStore) Collections(ctx context.Context) (map[Collection]string, error) {
	prefix := []byte{pebbleCollection, 0}
	out := make(map[Collection]string)
	err := s.scan(prefix, func(k, v []byte) error {
		out[Collection(k[len(prefix):])] = string(v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	return out, nil
}

// Count returns the number of documents in a collection.
func (s *PebbleStore) Count(ctx context.Context, collection Collection) (int64, error) {
	kind := byte(pebbleNode)
	if collection.IsEdge() {
		kind = pebbleEdge
	}

	var n int64
	err := s.scan(pebbleKey(kind, string(collection), ""), func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// QueryByProgramPrefix range-scans the program's discriminator keys and joins
// each with its linked instruction. Discriminators without an instruction are
// left out.
func (s *PebbleStore) QueryByProgramPrefix(ctx context.Context, programID string) ([]DiscriminatorView, error) {
	if programID == "" {
		return nil, fmt.Errorf("program id cannot be empty")
	}

	var discs []*Discriminator
	prefix := pebbleKey(pebbleNode, string(CollectionDiscriminators), keys.Prefix(programID))
	err := s.scan(prefix, func(_, v []byte) error {
		fields, err := decodeDoc(v)
		if err != nil {
			return err
		}
		d, err := FieldsToDiscriminator(fields)
		if err != nil {
			return fmt.Errorf("failed to deserialize discriminator: %w", err)
		}
		discs = append(discs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	views := make([]DiscriminatorView, 0, len(discs))
	for _, d := range discs {
		fields, err := s.getNode(CollectionInstructions, d.InstructionKey)
		if err != nil {
			return nil, err
		}
		if fields == nil {
			continue
		}
		instr, err := FieldsToInstruction(fields)
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
func (s *PebbleStore) InstructionsByDiscriminator(ctx context.Context, discriminatorKey string) ([]InstructionView, error) {
	from := keys.Ref(string(CollectionDiscriminators), discriminatorKey)
	prefix := pebbleKey(pebbleAdjacency, string(CollectionMappedTo), from, "")

	var refs []string
	err := s.scan(prefix, func(k, _ []byte) error {
		refs = append(refs, string(k[len(prefix):]))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read MappedTo edges: %w", err)
	}

	views := make([]InstructionView, 0, len(refs))
	for _, ref := range refs {
		collection, key, err := SplitRef(ref)
		if err != nil {
			return nil, err
		}
		if collection != CollectionInstructions {
			return nil, fmt.Errorf("MappedTo edge points at %s, expected %s", collection, CollectionInstructions)
		}
		fields, err := s.getNode(CollectionInstructions, key)
		if err != nil {
			return nil, err
		}
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
func (s *PebbleStore) ListProgramIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.scan(pebbleKey(pebbleNode, string(CollectionPrograms), ""), func(_, v []byte) error {
		fields, err := decodeDoc(v)
		if err != nil {
			return err
		}
		if id := fields[fieldID]; id != "" {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read programs: %w", err)
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *PebbleStore) getNode(collection Collection, key string) (map[string]string, error) {
	v, closer, err := s.db.Get(pebbleKey(pebbleNode, string(collection), key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	defer closer.Close()
	return decodeDoc(v)
}

// scan calls fn for every key with the given prefix, in key order.
// Key and value are only valid during the call.
func (s *PebbleStore) scan(prefix []byte, fn func(k, v []byte) error) error {
	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func pebbleKey(kind byte, parts ...string) []byte {
	var b bytes.Buffer
	b.WriteByte(kind)
	for _, p := range parts {
		b.WriteByte(0)
		b.WriteString(p)
	}
	return b.Bytes()
}

func collectionKey(c Collection) []byte {
	return pebbleKey(pebbleCollection, string(c))
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func decodeDoc(v []byte) (map[string]string, error) {
	var fields map[string]string
	if err := json.Unmarshal(v, &fields); err != nil {
		return nil, fmt.Errorf("corrupt document: %w", err)
	}
	return fields, nil
}

