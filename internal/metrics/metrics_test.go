package metrics

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleCollector(t *testing.T) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set([]byte("k"), []byte("v"), pebble.Sync))

	c := NewPebbleCollector(db)
	assert.Equal(t, 6, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "discgraph_pebble_wal_bytes_written_total")
	assert.Contains(t, names, "discgraph_pebble_memtable_size_bytes")
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(IngestsTotal.WithLabelValues(ResultSuccess))
	IngestsTotal.WithLabelValues(ResultSuccess).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(IngestsTotal.WithLabelValues(ResultSuccess)))

	ActivePollers.Inc()
	defer ActivePollers.Dec()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ActivePollers), 1.0)
}
