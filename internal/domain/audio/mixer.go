// Package audio is the pure DSP layer: gain envelopes, resampling, bus
// mixing, side-chain ducking and RMS waveform reduction. Buffers are
// interleaved float32 PCM with explicit rate and channel count.
package audio

import (
	"math"

	"github.com/avroom/reelcut/internal/project"
)

// Buffer is interleaved PCM.
type Buffer struct {
	Samples  []float32
	Rate     int
	Channels int
}

// Frames is the per-channel sample count.
func (b Buffer) Frames() int {
	if b.Channels < 1 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration in seconds.
func (b Buffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// ClipBuffer is one decoded clip placed on the timeline, ready for mixing.
type ClipBuffer struct {
	Buffer
	Start    float64 // timeline seconds
	Envelope []project.GainPoint
}

// ApplyGainEnvelope multiplies samples in place by a per-frame gain curve:
// envelope points are linearly interpolated across the buffer duration and
// held flat before the first and after the last point. The same gain
// applies to every channel of a frame. An empty envelope is a no-op.
func ApplyGainEnvelope(samples []float32, channels, rate int, envelope []project.GainPoint) {
	if len(envelope) == 0 || channels < 1 || rate <= 0 {
		return
	}
	frames := len(samples) / channels
	seg := 0
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(rate)
		g := envelopeGainAt(envelope, t, &seg)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] *= float32(g)
		}
	}
}

// envelopeGainAt interpolates the envelope at t. seg memoizes the bracket
// index across calls with non-decreasing t, so a full buffer pass stays
// linear in frames+points.
func envelopeGainAt(env []project.GainPoint, t float64, seg *int) float64 {
	if t <= env[0].T {
		return env[0].Gain
	}
	last := len(env) - 1
	if t >= env[last].T {
		return env[last].Gain
	}
	for *seg < last-1 && env[*seg+1].T < t {
		*seg++
	}
	a, b := env[*seg], env[*seg+1]
	span := b.T - a.T
	if span <= 0 {
		return a.Gain
	}
	f := (t - a.T) / span
	return a.Gain + (b.Gain-a.Gain)*f
}

// Resample converts a buffer to the target rate with a linear
// interpolation resampler, channel by channel. Same rate returns the
// input unchanged.
func Resample(in Buffer, targetRate int) Buffer {
	if in.Rate == targetRate || in.Rate <= 0 || targetRate <= 0 {
		return in
	}
	frames := in.Frames()
	if frames == 0 {
		return Buffer{Rate: targetRate, Channels: in.Channels}
	}
	ratio := float64(targetRate) / float64(in.Rate)
	outFrames := int(math.Round(float64(frames) * ratio))
	out := Buffer{
		Samples:  make([]float32, outFrames*in.Channels),
		Rate:     targetRate,
		Channels: in.Channels,
	}
	if outFrames == 0 {
		return out
	}
	// Source positions run 0..frames-1 inclusive, evenly spaced.
	step := 0.0
	if outFrames > 1 {
		step = float64(frames-1) / float64(outFrames-1)
	}
	for j := 0; j < outFrames; j++ {
		pos := float64(j) * step
		i0 := int(pos)
		frac := pos - float64(i0)
		i1 := i0 + 1
		if i1 >= frames {
			i1 = frames - 1
		}
		for ch := 0; ch < in.Channels; ch++ {
			a := in.Samples[i0*in.Channels+ch]
			b := in.Samples[i1*in.Channels+ch]
			out.Samples[j*in.Channels+ch] = a + float32(frac)*(b-a)
		}
	}
	return out
}

// MixToBus renders the master bus: the output length comes from the
// latest-ending input, every input is envelope-shaped, resampled to the
// bus rate and summed in at its timeline offset, then the whole bus is
// scaled by masterGain and hard-clipped to [-1,1]. No inputs produce an
// empty bus.
func MixToBus(inputs []ClipBuffer, rate int, masterGain float64) Buffer {
	if len(inputs) == 0 {
		return Buffer{Rate: rate, Channels: 1}
	}

	maxEnd := 0.0
	channels := 1
	for _, in := range inputs {
		if end := in.Start + in.Duration(); end > maxEnd {
			maxEnd = end
		}
		if in.Channels > channels {
			channels = in.Channels
		}
	}
	totalFrames := int(math.Ceil(maxEnd * float64(rate)))
	bus := Buffer{
		Samples:  make([]float32, totalFrames*channels),
		Rate:     rate,
		Channels: channels,
	}

	for _, in := range inputs {
		shaped := Buffer{
			Samples:  append([]float32(nil), in.Samples...),
			Rate:     in.Rate,
			Channels: in.Channels,
		}
		ApplyGainEnvelope(shaped.Samples, shaped.Channels, shaped.Rate, in.Envelope)
		res := Resample(shaped, rate)

		startFrame := int(in.Start * float64(rate))
		frames := res.Frames()
		for f := 0; f < frames; f++ {
			dst := startFrame + f
			if dst >= totalFrames {
				break
			}
			for ch := 0; ch < res.Channels; ch++ {
				bus.Samples[dst*channels+ch] += res.Samples[f*res.Channels+ch]
			}
		}
	}

	for i, s := range bus.Samples {
		v := s * float32(masterGain)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		bus.Samples[i] = v
	}
	return bus
}
