package storage_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/storage"
	"orbitdb/go-kvstore/storage/mocks"
	"orbitdb/go-kvstore/storage/storagetest"
)

func TestCachedStorage(t *testing.T) {
	storagetest.TestStorageSuite(t, func(t *testing.T) storage.Storage {
		s, err := storage.NewCachedStorage(storage.NewMemoryStorage(), 2)
		require.NoError(t, err)
		return s
	})
}

func TestCachedStorage_InvalidSize(t *testing.T) {
	_, err := storage.NewCachedStorage(storage.NewMemoryStorage(), 0)
	assert.Error(t, err)
}

func TestCachedStorage_ServesFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockStorage(ctrl)

	// The backend is read exactly once; the second Get is a cache hit.
	backend.EXPECT().Get([]byte("key1")).Return([]byte("value1"), nil).Times(1)

	s, err := storage.NewCachedStorage(backend, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		value, err := s.Get([]byte("key1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value1"), value)
	}
}

func TestCachedStorage_EvictionFallsBack(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s, err := storage.NewCachedStorage(backend, 2)
	require.NoError(t, err)

	require.NoError(t, s.Put([]byte("key1"), []byte("value1")))
	require.NoError(t, s.Put([]byte("key2"), []byte("value2")))
	require.NoError(t, s.Put([]byte("key3"), []byte("value3")))

	// key1 was evicted from the cache but still lives in the backend.
	value, err := s.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

func TestCachedStorage_BatchInvalidates(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s, err := storage.NewCachedStorage(backend, 4)
	require.NoError(t, err)

	require.NoError(t, s.Put([]byte("key1"), []byte("value1")))
	_, err = s.Get([]byte("key1"))
	require.NoError(t, err)

	batch := s.NewBatch()
	require.NoError(t, batch.Delete([]byte("key1")))
	require.NoError(t, batch.Commit())

	_, err = s.Get([]byte("key1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedStorage_FailedPutDropsEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockStorage(ctrl)
	ioErr := errors.New("disk full")

	gomock.InOrder(
		backend.EXPECT().Put([]byte("key1"), []byte("value1")).Return(nil),
		backend.EXPECT().Put([]byte("key1"), []byte("value2")).Return(ioErr),
		backend.EXPECT().Get([]byte("key1")).Return([]byte("value1"), nil),
	)

	s, err := storage.NewCachedStorage(backend, 2)
	require.NoError(t, err)

	require.NoError(t, s.Put([]byte("key1"), []byte("value1")))
	assert.ErrorIs(t, s.Put([]byte("key1"), []byte("value2")), ioErr)

	value, err := s.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

// pausingStorage blocks the first Get after it has read the backend, until
// resume is closed.
type pausingStorage struct {
	storage.Storage
	paused chan struct{}
	resume chan struct{}
	once   sync.Once
}

func (p *pausingStorage) Get(key []byte) ([]byte, error) {
	value, err := p.Storage.Get(key)
	p.once.Do(func() {
		close(p.paused)
		<-p.resume
	})
	return value, err
}

func TestCachedStorage_WriteDuringReadIsNotShadowed(t *testing.T) {
	key := []byte("key1")
	tests := []struct {
		name  string
		write func(s *storage.CachedStorage) error
		want  []byte
	}{
		{
			name:  "put",
			write: func(s *storage.CachedStorage) error { return s.Put(key, []byte("new")) },
			want:  []byte("new"),
		},
		{
			name:  "delete",
			write: func(s *storage.CachedStorage) error { return s.Delete(key) },
		},
		{
			name: "batch",
			write: func(s *storage.CachedStorage) error {
				batch := s.NewBatch()
				defer batch.Close()
				if err := batch.Put(key, []byte("batched")); err != nil {
					return err
				}
				return batch.Commit()
			},
			want: []byte("batched"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryStorage()
			require.NoError(t, backend.Put(key, []byte("old")))
			paused := &pausingStorage{
				Storage: backend,
				paused:  make(chan struct{}),
				resume:  make(chan struct{}),
			}
			s, err := storage.NewCachedStorage(paused, 4)
			require.NoError(t, err)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Get(key)
			}()
			<-paused.paused

			written := make(chan error, 1)
			go func() { written <- tt.write(s) }()
			close(paused.resume)

			wg.Wait()
			require.NoError(t, <-written)

			value, err := s.Get(key)
			if tt.want == nil {
				assert.ErrorIs(t, err, storage.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, value)
		})
	}
}
