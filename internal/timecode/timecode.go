// Package timecode is the timeline's time domain: positions that must be
// exact (snap grids, cache keys, split points) are integer ticks, public
// values are seconds.
package timecode

import "math"

// TicksPerSecond is the fixed tick rate shared by every consumer of tick
// values. 90kHz divides evenly by all common video frame rates.
const TicksPerSecond int64 = 90000

// ToTicks converts seconds to the nearest whole tick.
func ToTicks(seconds float64) int64 {
	return int64(math.Round(seconds * float64(TicksPerSecond)))
}

// ToSeconds converts ticks back to seconds. For any value that originated
// as whole ticks the round trip through ToTicks is lossless.
func ToSeconds(ticks int64) float64 {
	return float64(ticks) / float64(TicksPerSecond)
}

// FrameTicks returns the length of frameMultiple frames at fps in ticks,
// never below one tick.
func FrameTicks(fps float64, frameMultiple int) int64 {
	if fps < 1 {
		fps = 1
	}
	if frameMultiple < 1 {
		frameMultiple = 1
	}
	ticks := int64(math.Round(float64(TicksPerSecond) / fps * float64(frameMultiple)))
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// SnapToGrid rounds ticks to the nearest multiple of interval.
func SnapToGrid(ticks, interval int64) int64 {
	if interval <= 0 {
		return ticks
	}
	return int64(math.Round(float64(ticks)/float64(interval))) * interval
}
