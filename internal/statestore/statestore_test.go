package statestore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "state.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestMemoryStorePutTake(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Put("state-1", "verifier-1", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "verifier-1", value)

	// One-time use: a second take misses.
	_, ok = s.Take("state-1")
	assert.False(t, ok)
}

func TestMemoryStoreMiss(t *testing.T) {
	_, ok := NewMemoryStore().Take("never-put")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put("state-1", "verifier-1", -time.Second))

	_, ok := s.Take("state-1")
	assert.False(t, ok)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put("state-1", "old", time.Minute))
	require.NoError(t, s.Put("state-1", "new", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "new", value)
}

func TestDurableStorePutTake(t *testing.T) {
	s, err := NewDurableStore(testDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Put("state-1", "verifier-1", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "verifier-1", value)

	_, ok = s.Take("state-1")
	assert.False(t, ok)
}

func TestDurableStoreExpiry(t *testing.T) {
	s, err := NewDurableStore(testDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Put("state-1", "verifier-1", -time.Second))

	// An expired row is removed on take and reported as a miss.
	_, ok := s.Take("state-1")
	assert.False(t, ok)
	_, ok = s.Take("state-1")
	assert.False(t, ok)
}

func TestDurableStoreReplacesExistingKey(t *testing.T) {
	s, err := NewDurableStore(testDB(t))
	require.NoError(t, err)

	require.NoError(t, s.Put("state-1", "old", time.Minute))
	require.NoError(t, s.Put("state-1", "new", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "new", value)
}

type failingStore struct{}

func (failingStore) Put(string, string, time.Duration) error { return errors.New("db gone") }
func (failingStore) Take(string) (string, bool)              { return "", false }

func TestTwoTierPrefersDurable(t *testing.T) {
	durable, err := NewDurableStore(testDB(t))
	require.NoError(t, err)
	s := NewTwoTier(durable)

	require.NoError(t, s.Put("state-1", "verifier-1", time.Minute))

	// The value is in the durable tier, not the local one.
	value, ok := durable.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "verifier-1", value)
}

func TestTwoTierFallsBackWhenDurableFails(t *testing.T) {
	s := NewTwoTier(failingStore{})

	require.NoError(t, s.Put("state-1", "verifier-1", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "verifier-1", value)
}

func TestTwoTierNilDurable(t *testing.T) {
	s := NewTwoTier(nil)

	require.NoError(t, s.Put("state-1", "verifier-1", time.Minute))

	value, ok := s.Take("state-1")
	require.True(t, ok)
	assert.Equal(t, "verifier-1", value)
}
