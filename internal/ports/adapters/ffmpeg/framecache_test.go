package ffmpeg

import (
	"testing"

	"github.com/avroom/reelcut/internal/ports"
)

func frameAt(pts float64) ports.VideoFrame {
	return ports.VideoFrame{PTS: pts}
}

func TestFrameCacheEvictsOldest(t *testing.T) {
	c := newFrameCache(3)
	c.put("a", 0, frameAt(0))
	c.put("a", 1, frameAt(1))
	c.put("a", 2, frameAt(2))
	c.put("a", 3, frameAt(3))

	if c.len() != 3 {
		t.Fatalf("len = %d, want 3", c.len())
	}
	if _, ok := c.get("a", 0); ok {
		t.Fatal("oldest entry survived eviction")
	}
	for tick := int64(1); tick <= 3; tick++ {
		if _, ok := c.get("a", tick); !ok {
			t.Fatalf("entry %d missing", tick)
		}
	}
}

func TestFrameCacheGetProtectsFromEviction(t *testing.T) {
	c := newFrameCache(3)
	c.put("a", 0, frameAt(0))
	c.put("a", 1, frameAt(1))
	c.put("a", 2, frameAt(2))

	// Touching the oldest entry promotes it past tick 1.
	if _, ok := c.get("a", 0); !ok {
		t.Fatal("expected hit")
	}
	c.put("a", 3, frameAt(3))

	if _, ok := c.get("a", 0); !ok {
		t.Fatal("touched entry was evicted")
	}
	if _, ok := c.get("a", 1); ok {
		t.Fatal("least-recently-touched entry survived")
	}
}

func TestFrameCacheKeysPerAsset(t *testing.T) {
	c := newFrameCache(4)
	c.put("a", 7, frameAt(1))
	c.put("b", 7, frameAt(2))

	fa, ok := c.get("a", 7)
	if !ok || fa.PTS != 1 {
		t.Fatalf("asset a frame = %+v, %v", fa, ok)
	}
	fb, ok := c.get("b", 7)
	if !ok || fb.PTS != 2 {
		t.Fatalf("asset b frame = %+v, %v", fb, ok)
	}
}

func TestFrameCacheClear(t *testing.T) {
	c := newFrameCache(2)
	c.put("a", 0, frameAt(0))
	c.clear()
	if c.len() != 0 {
		t.Fatalf("len after clear = %d", c.len())
	}
	if _, ok := c.get("a", 0); ok {
		t.Fatal("entry survived clear")
	}
}
