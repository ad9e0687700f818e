package storage

import (
	"errors"
	"math/bits"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ShardedMapStorage is a thread-safe key-value storage,
// divided into segments (shards) to reduce contention for locking
type ShardedMapStorage struct {
	shards    []*MapStorage
	shardMask uint64
}

// NewShardedMapStorage creates a new instance of ShardedMapStorage.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64
func NewShardedMapStorage(requestedShards uint) (*ShardedMapStorage, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > 64 {
		return nil, errors.New("requested shards must be less or equal than 64")
	}

	s := &ShardedMapStorage{
		shards:    make([]*MapStorage, requestedShards),
		shardMask: uint64(requestedShards - 1),
	}

	for i := range s.shards {
		s.shards[i] = NewMapStorage()
	}

	return s, nil
}

func (s *ShardedMapStorage) shard(key string) *MapStorage {
	return s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// Get returns the value and true if the key is found. Otherwise, "", false
func (s *ShardedMapStorage) Get(key string) (string, bool) {
	return s.shard(key).Get(key)
}

// Set writes the value based on the options. Returns true if recording has been performed
func (s *ShardedMapStorage) Set(key, value string, options SetOptions) bool {
	return s.shard(key).Set(key, value, options)
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (s *ShardedMapStorage) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

// Exists reports whether the key is present and not expired
func (s *ShardedMapStorage) Exists(key string) bool {
	return s.shard(key).Exists(key)
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (s *ShardedMapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	return s.shard(key).Expiry(key)
}

// DeleteExpired runs the sampling on every shard in parallel and returns the mean ratio
func (s *ShardedMapStorage) DeleteExpired(limit int) float64 {
	var wg sync.WaitGroup
	var totalRatio float64
	var mu sync.Mutex // protects totalRatio

	wg.Add(len(s.shards))

	for _, shard := range s.shards {
		go func(m *MapStorage) {
			defer wg.Done()
			ratio := m.DeleteExpired(limit)

			mu.Lock()
			totalRatio += ratio
			mu.Unlock()
		}(shard)
	}

	wg.Wait()

	return totalRatio / float64(len(s.shards))
}
