package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/types"
)

// ErrSeriesNotFound reports a recording/channel pair absent from the
// store.
var ErrSeriesNotFound = errors.New("series not found in store")

// catalogKey is where the serialized catalog lives in badger.
var catalogKey = []byte("!catalog")

// Config holds store configuration.
type Config struct {
	Path             string
	CompressionLevel int
	MaxCacheEntries  int
	CacheTTL         time.Duration
}

// DefaultConfig returns default store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:             "./cache",
		CompressionLevel: 3,
		MaxCacheEntries:  64,
		CacheTTL:         time.Hour,
	}
}

// SeriesStore persists extracted channel series in BadgerDB, compressed
// with the float codec. Everything in it can be rebuilt from the original
// recordings; it exists so that sweeping many window durations over the
// same file decodes the FIT data once.
type SeriesStore struct {
	cfg     *Config
	db      *badger.DB
	codec   *Codec
	catalog *Catalog
	mu      sync.RWMutex
}

// Open opens (or creates) a store at cfg.Path and loads its catalog.
func Open(cfg *Config) (*SeriesStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // BadgerDB logging is noise here

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	codec, err := NewCodec(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	s := &SeriesStore{
		cfg:     cfg,
		db:      db,
		codec:   codec,
		catalog: NewCatalog(),
	}

	if err := s.loadCatalog(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

type seriesPayload struct {
	Count            int    `json:"count"`
	CompressedTimes  []byte `json:"times"`
	CompressedValues []byte `json:"values"`
}

// Put persists an extracted series and updates the catalog.
func (s *SeriesStore) Put(ctx context.Context, recording string, ch fitfile.Channel, series types.TimeSeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := series.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	compressedTimes, err := s.codec.Compress(series.Times)
	if err != nil {
		return fmt.Errorf("failed to compress times: %w", err)
	}
	compressedValues, err := s.codec.Compress(series.Values)
	if err != nil {
		return fmt.Errorf("failed to compress values: %w", err)
	}

	payload := &seriesPayload{
		Count:            series.Len(),
		CompressedTimes:  compressedTimes,
		CompressedValues: compressedValues,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// The catalog must never advertise a series the transaction did not
	// commit, so keep a snapshot to restore on failure.
	prevCatalog, err := s.catalog.Serialize()
	if err != nil {
		return err
	}
	s.catalog.AddSeries(recording, ch, series)
	catalogBytes, err := s.catalog.Serialize()
	if err != nil {
		_ = s.catalog.Deserialize(prevCatalog)
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(seriesKey(recording, ch), payloadBytes); err != nil {
			return err
		}
		return txn.Set(catalogKey, catalogBytes)
	})
	if err != nil {
		_ = s.catalog.Deserialize(prevCatalog)
		return err
	}
	return nil
}

// Get reads a persisted series, or ErrSeriesNotFound.
func (s *SeriesStore) Get(ctx context.Context, recording string, ch fitfile.Channel) (types.TimeSeries, error) {
	if err := ctx.Err(); err != nil {
		return types.TimeSeries{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seriesKey(recording, ch))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payloadBytes = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.TimeSeries{}, fmt.Errorf("%w: %s/%s", ErrSeriesNotFound, recording, ch)
	}
	if err != nil {
		return types.TimeSeries{}, err
	}

	var payload seriesPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return types.TimeSeries{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	times, err := s.codec.Decompress(payload.CompressedTimes, payload.Count)
	if err != nil {
		return types.TimeSeries{}, fmt.Errorf("failed to decompress times: %w", err)
	}
	values, err := s.codec.Decompress(payload.CompressedValues, payload.Count)
	if err != nil {
		return types.TimeSeries{}, fmt.Errorf("failed to decompress values: %w", err)
	}

	return types.TimeSeries{Times: times, Values: values}, nil
}

// Catalog exposes the recording catalog.
func (s *SeriesStore) Catalog() *Catalog {
	return s.catalog
}

// Close closes the store.
func (s *SeriesStore) Close() error {
	if s.codec != nil {
		s.codec.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// loadCatalog restores the catalog persisted by earlier Put calls.
func (s *SeriesStore) loadCatalog() error {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil // fresh store
	}
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	return s.catalog.Deserialize(data)
}

// seriesKey generates the storage key for a recording/channel pair.
func seriesKey(recording string, ch fitfile.Channel) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(recording)
	buf.WriteByte('/')
	buf.WriteString(string(ch))
	return buf.Bytes()
}
