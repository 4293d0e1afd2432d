package ffmpeg

import (
	"github.com/avroom/reelcut/internal/ports"
)

// DefaultCacheCapacity bounds the decoded-frame cache.
const DefaultCacheCapacity = 32

type cacheKey struct {
	assetID string
	tick    int64
}

// frameCache is a bounded map with LRU eviction driven by a logical
// clock: the counter advances on every read hit and write, and
// overflow evicts the entry with the smallest stamp. Not safe for
// concurrent use on its own; the Decoder's lock guards it.
type frameCache struct {
	capacity int
	entries  map[cacheKey]ports.VideoFrame
	order    map[cacheKey]uint64
	clock    uint64
}

func newFrameCache(capacity int) *frameCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &frameCache{
		capacity: capacity,
		entries:  make(map[cacheKey]ports.VideoFrame),
		order:    make(map[cacheKey]uint64),
	}
}

func (c *frameCache) get(assetID string, tick int64) (ports.VideoFrame, bool) {
	key := cacheKey{assetID: assetID, tick: tick}
	frame, ok := c.entries[key]
	if !ok {
		return ports.VideoFrame{}, false
	}
	c.clock++
	c.order[key] = c.clock
	return frame, true
}

func (c *frameCache) put(assetID string, tick int64, frame ports.VideoFrame) {
	key := cacheKey{assetID: assetID, tick: tick}
	c.entries[key] = frame
	c.clock++
	c.order[key] = c.clock
	if len(c.entries) > c.capacity {
		var (
			lru   cacheKey
			best  uint64
			found bool
		)
		for k, stamp := range c.order {
			if !found || stamp < best {
				lru, best, found = k, stamp, true
			}
		}
		delete(c.entries, lru)
		delete(c.order, lru)
	}
}

func (c *frameCache) len() int { return len(c.entries) }

func (c *frameCache) clear() {
	c.entries = make(map[cacheKey]ports.VideoFrame)
	c.order = make(map[cacheKey]uint64)
	c.clock = 0
}
