package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/types"
)

// Catalog tracks which channels have been extracted for which recordings,
// with per-channel sample counts and time spans. It doubles as the
// listing surface for the API and CLI.
type Catalog struct {
	mu sync.RWMutex
	// recordings maps a recording fingerprint to its metadata.
	recordings map[uint64]*RecordingMeta
	// channelIndex maps a channel to the recordings carrying it.
	channelIndex map[fitfile.Channel][]uint64
}

// RecordingMeta holds catalog metadata about a single recording.
type RecordingMeta struct {
	ID       uint64                          `json:"id"`
	Name     string                          `json:"name"`
	Channels map[fitfile.Channel]ChannelMeta `json:"channels"`
}

// ChannelMeta describes one extracted channel of a recording.
type ChannelMeta struct {
	Samples int     `json:"samples"`
	MinTime float64 `json:"min_time"`
	MaxTime float64 `json:"max_time"`
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		recordings:   make(map[uint64]*RecordingMeta),
		channelIndex: make(map[fitfile.Channel][]uint64),
	}
}

// AddSeries records an extracted channel and returns the recording's
// fingerprint. Re-adding the same recording/channel refreshes the
// metadata.
func (c *Catalog) AddSeries(name string, ch fitfile.Channel, series types.TimeSeries) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := fingerprint(name)
	meta, exists := c.recordings[id]
	if !exists {
		meta = &RecordingMeta{
			ID:       id,
			Name:     name,
			Channels: make(map[fitfile.Channel]ChannelMeta),
		}
		c.recordings[id] = meta
	}

	if _, seen := meta.Channels[ch]; !seen {
		c.channelIndex[ch] = append(c.channelIndex[ch], id)
	}

	cm := ChannelMeta{Samples: series.Len()}
	if series.Len() > 0 {
		cm.MinTime = series.Times[0]
		cm.MaxTime = series.Times[series.Len()-1]
	}
	meta.Channels[ch] = cm

	return id
}

// Recording returns the metadata for a recording name.
func (c *Catalog) Recording(name string) (RecordingMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.recordings[fingerprint(name)]
	if !ok {
		return RecordingMeta{}, false
	}
	return *meta, true
}

// Names lists all cataloged recording names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.recordings))
	for _, meta := range c.recordings {
		names = append(names, meta.Name)
	}
	sort.Strings(names)
	return names
}

// FindByChannel lists the recordings that carry a channel, sorted.
func (c *Catalog) FindByChannel(ch fitfile.Channel) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.channelIndex[ch]))
	for _, id := range c.channelIndex[ch] {
		if meta, ok := c.recordings[id]; ok {
			names = append(names, meta.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of cataloged recordings.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recordings)
}

// Serialize serializes the catalog for persistence.
func (c *Catalog) Serialize() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metas := make([]*RecordingMeta, 0, len(c.recordings))
	for _, meta := range c.recordings {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })

	data, err := json.Marshal(metas)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize catalog: %w", err)
	}
	return data, nil
}

// Deserialize rebuilds the catalog from Serialize output, replacing the
// current content.
func (c *Catalog) Deserialize(data []byte) error {
	var metas []*RecordingMeta
	if err := json.Unmarshal(data, &metas); err != nil {
		return fmt.Errorf("failed to deserialize catalog: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordings = make(map[uint64]*RecordingMeta, len(metas))
	c.channelIndex = make(map[fitfile.Channel][]uint64)
	for _, meta := range metas {
		c.recordings[meta.ID] = meta
		for ch := range meta.Channels {
			c.channelIndex[ch] = append(c.channelIndex[ch], meta.ID)
		}
	}
	return nil
}

// fingerprint hashes a recording name to a stable ID (FNV-1a).
func fingerprint(name string) uint64 {
	var hash uint64 = 14695981039346656037
	for _, b := range []byte(name) {
		hash ^= uint64(b)
		hash *= 1099511628211
	}
	return hash
}
