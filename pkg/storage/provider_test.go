package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/types"
)

func TestCachingProviderExtractsOnce(t *testing.T) {
	store, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	extractions := 0
	extract := func(path string, ch fitfile.Channel) (types.TimeSeries, error) {
		extractions++
		return types.TimeSeries{
			Times:  []float64{0, 1, 2},
			Values: []float64{200, 205, 210},
		}, nil
	}

	provider := NewCachingProvider(store, extract)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		series, err := provider.Series(ctx, "run.fit", fitfile.ChannelPower)
		if err != nil {
			t.Fatalf("Series call %d failed: %v", i, err)
		}
		if series.Len() != 3 {
			t.Errorf("Call %d: expected 3 samples, got %d", i, series.Len())
		}
	}

	if extractions != 1 {
		t.Errorf("Expected a single extraction across repeated calls, got %d", extractions)
	}

	_, hits, misses := provider.CacheStats()
	if misses != 1 {
		t.Errorf("Expected 1 miss, got %d", misses)
	}
	if hits != 2 {
		t.Errorf("Expected 2 hits, got %d", hits)
	}
}

func TestCachingProviderFallsBackToStore(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	series := types.TimeSeries{
		Times:  []float64{0, 1},
		Values: []float64{88, 90},
	}
	if err := store.Put(ctx, "run.fit", fitfile.ChannelCadence, series); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	// A provider with an extractor that always fails must still serve
	// the persisted series.
	provider := NewCachingProvider(store, func(string, fitfile.Channel) (types.TimeSeries, error) {
		return types.TimeSeries{}, errors.New("extractor should not run")
	})

	got, err := provider.Series(ctx, "run.fit", fitfile.ChannelCadence)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("Expected 2 samples, got %d", got.Len())
	}

	store.Close()
}

func TestCachingProviderPropagatesExtractError(t *testing.T) {
	store, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	boom := errors.New("corrupt recording")
	provider := NewCachingProvider(store, func(string, fitfile.Channel) (types.TimeSeries, error) {
		return types.TimeSeries{}, boom
	})

	_, err = provider.Series(context.Background(), "bad.fit", fitfile.ChannelPower)
	if !errors.Is(err, boom) {
		t.Errorf("Expected extraction error, got %v", err)
	}

	if provider.HitRate() != 0 {
		t.Errorf("Expected 0%% hit rate, got %f", provider.HitRate())
	}
}
