package confstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windevs/sensornode/log2"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	s, err := Open(t.TempDir(), log)
	require.NoError(t, err)

	assert.Equal(t, "", s.Get(FieldSSID))

	require.NoError(t, s.Put(FieldSSID, "myssid"))
	assert.Equal(t, "myssid", s.Get(FieldSSID))

	require.NoError(t, s.Clear(FieldSSID))
	assert.Equal(t, "", s.Get(FieldSSID))
}

func TestFieldsDoNotOverlap(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	s, err := Open(t.TempDir(), log)
	require.NoError(t, err)

	require.NoError(t, s.Put(FieldSSID, "net-one"))
	require.NoError(t, s.Put(FieldPassword, "hunter2hunter2"))
	assert.Equal(t, "net-one", s.Get(FieldSSID))
	assert.Equal(t, "hunter2hunter2", s.Get(FieldPassword))

	// shorter rewrite must not leak previous tail
	require.NoError(t, s.Put(FieldPassword, "x"))
	assert.Equal(t, "x", s.Get(FieldPassword))
}

func TestSurvivesReopen(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	dir := t.TempDir()

	s1, err := Open(dir, log)
	require.NoError(t, err)
	require.NoError(t, s1.Put(FieldSSID, "persisted"))

	s2, err := Open(dir, log)
	require.NoError(t, err)
	assert.Equal(t, "persisted", s2.Get(FieldSSID))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	s, err := Open(t.TempDir(), log)
	require.NoError(t, err)

	// loop, web handler and reset button all go through one Store;
	// run under -race
	wg := sync.WaitGroup{}
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, s.Put(FieldSSID, "concurrent-net"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, s.Clear(FieldPassword))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Get(FieldSSID)
			_ = s.Get(FieldPassword)
		}
	}()
	wg.Wait()

	assert.Equal(t, "concurrent-net", s.Get(FieldSSID))
	assert.Equal(t, "", s.Get(FieldPassword))
}

func TestOversizeRejected(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	s, err := Open(t.TempDir(), log)
	require.NoError(t, err)

	long := make([]byte, FieldSSID.MaxLen)
	for i := range long {
		long[i] = 'a'
	}
	err = s.Put(FieldSSID, string(long))
	require.Error(t, err)
	// failed put must not mutate the stored value
	assert.Equal(t, "", s.Get(FieldSSID))
}
