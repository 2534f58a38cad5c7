package leveldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestConsumersOfReturnsFinalizedRecordsInOrder(t *testing.T) {
	sink := newTestSink(t)

	require.NoError(t, sink.put("hash-a", []string{"c1"}))
	require.NoError(t, sink.put("hash-a", []string{"c2", "c3"}))
	require.NoError(t, sink.put("hash-b", []string{"other"}))

	consumers, err := sink.ConsumersOf("hash-a")
	require.NoError(t, err)
	require.Len(t, consumers, 2)
	assert.Equal(t, []string{"c1"}, consumers[0])
	assert.Equal(t, []string{"c2", "c3"}, consumers[1])
}

func TestConsumersOfUnknownHashIsEmpty(t *testing.T) {
	sink := newTestSink(t)
	consumers, err := sink.ConsumersOf("never-written")
	require.NoError(t, err)
	assert.Empty(t, consumers)
}
