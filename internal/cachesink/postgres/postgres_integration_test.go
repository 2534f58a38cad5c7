//go:build integration

package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/eagerclean/internal/testutil"
)

func TestFinalizeAsyncPersistsAndConsumersOfReadsBack(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	sink := newWithDB(testDB.DB, Config{Workers: 1, Queue: 4})
	defer sink.Close()

	sink.FinalizeAsync("task-hash-1", []string{"consumer-1", "consumer-2"})

	require.Eventually(t, func() bool {
		consumers, err := sink.ConsumersOf("task-hash-1")
		return err == nil && len(consumers) == 1
	}, 5*time.Second, 50*time.Millisecond)

	consumers, err := sink.ConsumersOf("task-hash-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"consumer-1", "consumer-2"}, consumers[0])
}
