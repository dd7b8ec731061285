package graph

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/dyluth/discgraph/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contractStore interface {
	Store
	Inspector
}

func setupPebbleStore(t *testing.T) *PebbleStore {
	store, err := OpenPebbleStore("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storeBackends() map[string]func(t *testing.T) contractStore {
	return map[string]func(t *testing.T) contractStore{
		"redis": func(t *testing.T) contractStore {
			store, _ := setupTestStore(t)
			return store
		},
		"pebble": func(t *testing.T) contractStore {
			return setupPebbleStore(t)
		},
	}
}

// writeRecord performs the same writes as a complete ingest, without the engine.
func writeRecord(t *testing.T, s Store, programID, discHex, instrHex, user string) string {
	t.Helper()
	ctx := context.Background()

	discKey := keys.Prefix(programID) + discHex
	instrKey := keys.Prefix(programID) + "i" + instrHex
	discRef := keys.Ref(string(CollectionDiscriminators), discKey)

	require.NoError(t, s.UpsertNode(ctx, CollectionPrograms, keys.Namespace(programID), ProgramToFields(&Program{ID: programID})))
	require.NoError(t, s.UpsertNode(ctx, CollectionInstructions, instrKey, InstructionToFields(&Instruction{Key: instrKey, Bytes: instrHex})))
	require.NoError(t, s.UpsertNode(ctx, CollectionUsers, keys.Namespace(user), UserToFields(&User{ID: user})))
	require.NoError(t, s.UpsertNode(ctx, CollectionDiscriminators, discKey, DiscriminatorToFields(&Discriminator{
		Key:            discKey,
		ProgramID:      programID,
		Bytes:          discHex,
		InstructionKey: instrKey,
		ContributorID:  user,
	})))
	require.NoError(t, s.UpsertEdge(ctx, CollectionHasDiscriminator, keys.Ref(string(CollectionPrograms), keys.Namespace(programID)), discRef))
	require.NoError(t, s.UpsertEdge(ctx, CollectionMappedTo, discRef, keys.Ref(string(CollectionInstructions), instrKey)))
	require.NoError(t, s.UpsertEdge(ctx, CollectionContributedBy, discRef, keys.Ref(string(CollectionUsers), keys.Namespace(user))))
	return discKey
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("ping", func(t *testing.T) {
				assert.NoError(t, newStore(t).Ping(ctx))
			})

			t.Run("repeated writes converge", func(t *testing.T) {
				s := newStore(t)
				writeRecord(t, s, "P1", "0102", "0304", "U1")
				writeRecord(t, s, "P1", "0102", "0304", "U1")

				for _, c := range AllCollections() {
					n, err := s.Count(ctx, c)
					require.NoError(t, err)
					assert.Equal(t, int64(1), n, "collection %s", c)
				}
			})

			t.Run("collections provisioned lazily and explicitly", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.UpsertEdge(ctx, CollectionMappedTo, "Discriminators/a", "Instructions/b"))

				got, err := s.Collections(ctx)
				require.NoError(t, err)
				assert.Equal(t, map[Collection]string{CollectionMappedTo: "edge"}, got)

				require.NoError(t, s.EnsureCollections(ctx, AllCollections()))
				got, err = s.Collections(ctx)
				require.NoError(t, err)
				assert.Len(t, got, len(AllCollections()))
			})

			t.Run("prefix query is scoped to one program", func(t *testing.T) {
				s := newStore(t)
				writeRecord(t, s, "P1", "aa", "bb", "U1")
				writeRecord(t, s, "P10", "cc", "dd", "U2")

				views, err := s.QueryByProgramPrefix(ctx, "P1")
				require.NoError(t, err)
				require.Len(t, views, 1)
				assert.Equal(t, "aa", views[0].Discriminator)
				assert.Equal(t, "bb", views[0].Instruction)
				assert.Equal(t, "U1", views[0].Contributor)

				views, err = s.QueryByProgramPrefix(ctx, "P2")
				require.NoError(t, err)
				assert.NotNil(t, views)
				assert.Empty(t, views)
			})

			t.Run("instructions by discriminator", func(t *testing.T) {
				s := newStore(t)
				discKey := writeRecord(t, s, "P1", "aa", "bb", "U1")

				views, err := s.InstructionsByDiscriminator(ctx, discKey)
				require.NoError(t, err)
				require.Len(t, views, 1)
				assert.Equal(t, "bb", views[0].Instruction)
			})

			t.Run("get node", func(t *testing.T) {
				s := newStore(t)
				discKey := writeRecord(t, s, "P1", "aa", "bb", "U1")

				fields, err := s.GetNode(ctx, CollectionDiscriminators, discKey)
				require.NoError(t, err)
				assert.Equal(t, "aa", fields["discriminator_bytes"])

				_, err = s.GetNode(ctx, CollectionDiscriminators, "P1:missing")
				require.Error(t, err)
				assert.True(t, IsNotFound(err))
			})

			t.Run("program ids keep their unsanitized form", func(t *testing.T) {
				s := newStore(t)
				writeRecord(t, s, "prog/b", "01", "02", "U1")
				writeRecord(t, s, "prog-a", "03", "04", "U1")

				ids, err := s.ListProgramIDs(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"prog-a", "prog/b"}, ids)
			})

			t.Run("rejects writes outside the schema", func(t *testing.T) {
				s := newStore(t)
				assert.True(t, IsStoreError(s.UpsertNode(ctx, CollectionMappedTo, "k", nil)))
				assert.True(t, IsStoreError(s.UpsertEdge(ctx, CollectionUsers, "a", "b")))
				assert.True(t, IsStoreError(s.UpsertNode(ctx, Collection("Bogus"), "k", nil)))
			})
		})
	}
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("ab"), prefixUpperBound([]byte("aa")))
	assert.Equal(t, []byte{'a', 1}, prefixUpperBound([]byte{'a', 0}))
	assert.Equal(t, []byte("b"), prefixUpperBound([]byte{'a', 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff}))
}

func TestPebbleStore_Persists(t *testing.T) {
	fs := vfs.NewMem()
	store, err := OpenPebbleStore("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	writeRecord(t, store, "P1", "aa", "bb", "U1")
	require.NoError(t, store.Close())

	reopened, err := OpenPebbleStore("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	defer reopened.Close()

	views, err := reopened.QueryByProgramPrefix(context.Background(), "P1")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
