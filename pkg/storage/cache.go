package storage

import (
	"container/list"
	"sync"
	"time"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/types"
)

// SeriesCache is an in-memory LRU + TTL cache of extracted channel
// series, keyed by recording and channel. It fronts the on-disk store so
// repeated sweeps over the same recording skip badger entirely.
type SeriesCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
}

type cacheEntry struct {
	key       string
	series    types.TimeSeries
	timestamp time.Time
	element   *list.Element
}

// NewSeriesCache creates a cache holding up to capacity series for at
// most ttl each.
func NewSeriesCache(capacity int, ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached series.
func (sc *SeriesCache) Get(recording string, ch fitfile.Channel) (types.TimeSeries, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	key := cacheKey(recording, ch)
	entry, exists := sc.cache[key]
	if !exists {
		return types.TimeSeries{}, false
	}

	if time.Since(entry.timestamp) > sc.ttl {
		sc.removeLocked(key)
		return types.TimeSeries{}, false
	}

	sc.lru.MoveToFront(entry.element)
	return entry.series, true
}

// Put stores a series in the cache.
func (sc *SeriesCache) Put(recording string, ch fitfile.Channel, series types.TimeSeries) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	key := cacheKey(recording, ch)
	if entry, exists := sc.cache[key]; exists {
		entry.series = series
		entry.timestamp = time.Now()
		sc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		series:    series,
		timestamp: time.Now(),
	}
	entry.element = sc.lru.PushFront(entry)
	sc.cache[key] = entry

	if sc.lru.Len() > sc.capacity {
		oldest := sc.lru.Back()
		if oldest != nil {
			sc.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// removeLocked removes an entry (must hold lock).
func (sc *SeriesCache) removeLocked(key string) {
	if entry, exists := sc.cache[key]; exists {
		sc.lru.Remove(entry.element)
		delete(sc.cache, key)
	}
}

// Clear drops all cached series.
func (sc *SeriesCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache = make(map[string]*cacheEntry)
	sc.lru = list.New()
}

// Size returns the current number of cached series.
func (sc *SeriesCache) Size() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.cache)
}

// Stats returns cache statistics.
func (sc *SeriesCache) Stats() CacheStats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	expired := 0
	for _, entry := range sc.cache {
		if time.Since(entry.timestamp) > sc.ttl {
			expired++
		}
	}

	return CacheStats{
		Size:     len(sc.cache),
		Capacity: sc.capacity,
		Expired:  expired,
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Size     int
	Capacity int
	Expired  int
}

func cacheKey(recording string, ch fitfile.Channel) string {
	return recording + "\x00" + string(ch)
}
