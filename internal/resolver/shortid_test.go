package resolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/pkg/graph"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *graph.RedisStore {
	mr := miniredis.RunT(t)
	store, err := graph.NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ingestDisc(t *testing.T, store graph.Store, programID string, disc byte) string {
	t.Helper()
	rec := ingest.Record{
		ProgramID:     programID,
		Discriminator: []byte{disc, 0, 0, 0, 0, 0, 0, 0},
		Instruction:   []byte{0xaa},
		UserID:        "U1",
	}
	require.NoError(t, ingest.NewEngine(store, nil).Ingest(context.Background(), rec))
	k, err := ingest.DeriveKeys(rec)
	require.NoError(t, err)
	return k.Discriminator
}

func hashOf(key string) string {
	return key[strings.Index(key, ":")+1:]
}

func TestResolveDiscriminatorKey(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	full := ingestDisc(t, store, "P1", 1)

	t.Run("full key passes through", func(t *testing.T) {
		got, err := ResolveDiscriminatorKey(ctx, store, "", full)
		require.NoError(t, err)
		assert.Equal(t, full, got)
	})

	t.Run("short prefix resolves", func(t *testing.T) {
		got, err := ResolveDiscriminatorKey(ctx, store, "P1", hashOf(full)[:8])
		require.NoError(t, err)
		assert.Equal(t, full, got)
	})

	t.Run("upper case prefix resolves", func(t *testing.T) {
		got, err := ResolveDiscriminatorKey(ctx, store, "P1", strings.ToUpper(hashOf(full)[:8]))
		require.NoError(t, err)
		assert.Equal(t, full, got)
	})

	t.Run("unknown full key", func(t *testing.T) {
		_, err := ResolveDiscriminatorKey(ctx, store, "", "P1:"+strings.Repeat("0", 64))
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveDiscriminatorKey(ctx, store, "P1", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("program required", func(t *testing.T) {
		_, err := ResolveDiscriminatorKey(ctx, store, "", hashOf(full)[:8])
		require.Error(t, err)
	})

	t.Run("other program does not match", func(t *testing.T) {
		_, err := ResolveDiscriminatorKey(ctx, store, "P10", hashOf(full)[:8])
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	var matches []string
	for i := 0; i < 12; i++ {
		matches = append(matches, fmt.Sprintf("P1:abcdef%02d", i))
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortKey: "abcdef", Matches: matches})
	assert.Contains(t, msg, "matches 12 discriminators")
	assert.Contains(t, msg, "  P1:abcdef09\n")
	assert.NotContains(t, msg, "P1:abcdef10")
	assert.Contains(t, msg, "...and 2 more")
	assert.True(t, IsAmbiguousError(&AmbiguousError{}))
}
