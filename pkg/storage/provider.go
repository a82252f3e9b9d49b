package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/types"
)

// Provider vends channel time series for a recording.
type Provider interface {
	Series(ctx context.Context, recording string, ch fitfile.Channel) (types.TimeSeries, error)
}

// ExtractFunc decodes one channel from a recording. fitfile.Extract
// satisfies it.
type ExtractFunc func(path string, ch fitfile.Channel) (types.TimeSeries, error)

// CachingProvider resolves series through three layers: the in-memory
// LRU, then the badger store, then a fresh FIT decode, populating the
// upper layers on the way back.
type CachingProvider struct {
	store   *SeriesStore
	cache   *SeriesCache
	extract ExtractFunc

	hits   uint64
	misses uint64
	mu     sync.RWMutex
}

// NewCachingProvider wires a provider on top of an open store.
func NewCachingProvider(store *SeriesStore, extract ExtractFunc) *CachingProvider {
	return &CachingProvider{
		store:   store,
		cache:   NewSeriesCache(store.cfg.MaxCacheEntries, store.cfg.CacheTTL),
		extract: extract,
	}
}

// Series implements Provider.
func (p *CachingProvider) Series(ctx context.Context, recording string, ch fitfile.Channel) (types.TimeSeries, error) {
	if series, ok := p.cache.Get(recording, ch); ok {
		p.mu.Lock()
		p.hits++
		p.mu.Unlock()
		return series, nil
	}

	series, err := p.store.Get(ctx, recording, ch)
	if err == nil {
		p.mu.Lock()
		p.hits++
		p.mu.Unlock()
		p.cache.Put(recording, ch, series)
		return series, nil
	}
	if !errors.Is(err, ErrSeriesNotFound) {
		return types.TimeSeries{}, err
	}

	p.mu.Lock()
	p.misses++
	p.mu.Unlock()

	series, err = p.extract(recording, ch)
	if err != nil {
		return types.TimeSeries{}, err
	}

	if err := p.store.Put(ctx, recording, ch, series); err != nil {
		return types.TimeSeries{}, err
	}
	p.cache.Put(recording, ch, series)

	return series, nil
}

// Recordings lists the cataloged recordings.
func (p *CachingProvider) Recordings() []string {
	return p.store.Catalog().Names()
}

// CacheStats returns memory-cache statistics with hit/miss counters.
func (p *CachingProvider) CacheStats() (CacheStats, uint64, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache.Stats(), p.hits, p.misses
}

// HitRate returns the cache hit rate as a percentage.
func (p *CachingProvider) HitRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := p.hits + p.misses
	if total == 0 {
		return 0.0
	}
	return float64(p.hits) / float64(total) * 100.0
}
