package storage

import (
	"sync"
	"testing"

	"globaldb/pkg/cluster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingObserver struct {
	mu        sync.Mutex
	mutations []cluster.Mutation
}

func (r *recordingObserver) OnMutation(group, key string, value []byte, op cluster.Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, cluster.NewMutation(group, key, value, op))
	return 1
}

func openMemStore(t *testing.T, obs Observer) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true}, obs, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	obs := &recordingObserver{}
	s := openMemStore(t, obs)

	n, err := s.Put("wallet.alice", "balance", []byte("100"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	value, err := s.Get("wallet.alice", "balance")
	require.NoError(t, err)
	assert.Equal(t, []byte("100"), value)

	require.Len(t, obs.mutations, 1)
	assert.Equal(t, cluster.OpPut, obs.mutations[0].Op)
	assert.Equal(t, "wallet.alice", obs.mutations[0].Group)
	assert.Equal(t, []byte("100"), obs.mutations[0].Value)
}

func TestStoreDelete(t *testing.T) {
	obs := &recordingObserver{}
	s := openMemStore(t, obs)

	_, err := s.Put("wallet.alice", "balance", []byte("100"))
	require.NoError(t, err)

	_, err = s.Delete("wallet.alice", "balance")
	require.NoError(t, err)

	_, err = s.Get("wallet.alice", "balance")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Delete("wallet.alice", "balance")
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, obs.mutations, 2, "missing key delete is not observed")
	assert.Equal(t, cluster.OpDelete, obs.mutations[1].Op)
	assert.Nil(t, obs.mutations[1].Value)
}

func TestStoreKeysByGroup(t *testing.T) {
	s := openMemStore(t, nil)

	for _, k := range []string{"b", "a", "c"} {
		_, err := s.Put("votes.1", k, []byte(k))
		require.NoError(t, err)
	}
	_, err := s.Put("votes.10", "z", []byte("z"))
	require.NoError(t, err)

	keys, err := s.Keys("votes.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	keys, err = s.Keys("empty")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreInvalidKeys(t *testing.T) {
	s := openMemStore(t, nil)

	_, err := s.Put("", "k", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Put("g", "", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Put("g\x00x", "k", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Keys("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStoreNilValueStoredEmpty(t *testing.T) {
	s := openMemStore(t, nil)

	_, err := s.Put("g", "k", nil)
	require.NoError(t, err)
	value, err := s.Get("g", "k")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestStoreMaxValueSize(t *testing.T) {
	obs := &recordingObserver{}
	s, err := Open(Options{InMemory: true, MaxValueSize: 4}, obs, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Put("g", "k", []byte("1234"))
	require.NoError(t, err)
	_, err = s.Put("g", "k", []byte("12345"))
	assert.ErrorIs(t, err, ErrValueTooLarge)
	assert.Len(t, obs.mutations, 1, "rejected writes are not observed")
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir}, nil, nil)
	require.NoError(t, err)
	_, err = s.Put("g", "k", []byte("v"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s, err = Open(Options{Dir: dir}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	value, err := s.Get("g", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestStoreClosed(t *testing.T) {
	s, err := Open(Options{InMemory: true}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Put("g", "k", []byte("v"))
	assert.ErrorIs(t, err, ErrClosed)
}
