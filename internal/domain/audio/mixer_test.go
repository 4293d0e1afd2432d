package audio

import (
	"math"
	"testing"

	"github.com/avroom/reelcut/internal/project"
)

func floatsNear(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if math.Abs(float64(got[i])-float64(want[i])) > tol {
			t.Fatalf("sample %d = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestApplyGainEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		channels int
		rate     int
		envelope []project.GainPoint
		want     []float32
	}{
		{
			name:     "empty envelope is a no-op",
			samples:  []float32{1, 1, 1, 1},
			channels: 1, rate: 4,
			envelope: nil,
			want:     []float32{1, 1, 1, 1},
		},
		{
			name:     "linear fade across buffer",
			samples:  []float32{1, 1, 1, 1},
			channels: 1, rate: 4,
			envelope: []project.GainPoint{{T: 0, Gain: 1}, {T: 1, Gain: 0}},
			want:     []float32{1, 0.75, 0.5, 0.25},
		},
		{
			name:     "held outside envelope span",
			samples:  []float32{1, 1, 1, 1},
			channels: 1, rate: 4,
			envelope: []project.GainPoint{{T: 0.4, Gain: 0.5}, {T: 0.6, Gain: 0.5}},
			want:     []float32{0.5, 0.5, 0.5, 0.5},
		},
		{
			name:     "same gain on both channels",
			samples:  []float32{1, -1, 1, -1},
			channels: 2, rate: 2,
			envelope: []project.GainPoint{{T: 0, Gain: 1}, {T: 1, Gain: 0}},
			want:     []float32{1, -1, 0.5, -0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]float32(nil), tt.samples...)
			ApplyGainEnvelope(got, tt.channels, tt.rate, tt.envelope)
			floatsNear(t, got, tt.want, 1e-6)
		})
	}
}

func TestResample(t *testing.T) {
	t.Run("same rate returns input", func(t *testing.T) {
		in := Buffer{Samples: []float32{1, 2}, Rate: 48000, Channels: 1}
		out := Resample(in, 48000)
		if &out.Samples[0] != &in.Samples[0] {
			t.Fatal("same-rate resample should not copy")
		}
	})

	t.Run("upsample interpolates linearly", func(t *testing.T) {
		in := Buffer{Samples: []float32{0, 1}, Rate: 2, Channels: 1}
		out := Resample(in, 4)
		if out.Rate != 4 {
			t.Fatalf("rate = %d", out.Rate)
		}
		floatsNear(t, out.Samples, []float32{0, 1.0 / 3, 2.0 / 3, 1}, 1e-6)
	})

	t.Run("downsample keeps endpoints", func(t *testing.T) {
		in := Buffer{Samples: []float32{0, 1, 2, 3}, Rate: 8, Channels: 1}
		out := Resample(in, 4)
		floatsNear(t, out.Samples, []float32{0, 3}, 1e-6)
	})

	t.Run("stereo resamples per channel", func(t *testing.T) {
		in := Buffer{Samples: []float32{0, 10, 1, 11}, Rate: 2, Channels: 2}
		out := Resample(in, 4)
		floatsNear(t, out.Samples, []float32{0, 10, 1.0 / 3, 10 + 1.0/3, 2.0 / 3, 10 + 2.0/3, 1, 11}, 1e-5)
	})
}

func TestMixToBusEmpty(t *testing.T) {
	bus := MixToBus(nil, 48000, 1)
	if len(bus.Samples) != 0 || bus.Rate != 48000 {
		t.Fatalf("empty mix = %+v", bus)
	}
}

func TestMixToBusPlacesAtOffset(t *testing.T) {
	in := ClipBuffer{
		Buffer: Buffer{Samples: []float32{1, 1, 1, 1}, Rate: 4, Channels: 1},
		Start:  0.5,
	}
	bus := MixToBus([]ClipBuffer{in}, 4, 1)

	// Latest end = 0.5 + 1.0 = 1.5s -> 6 frames; input lands at frame 2.
	if bus.Frames() != 6 {
		t.Fatalf("bus frames = %d, want 6", bus.Frames())
	}
	floatsNear(t, bus.Samples, []float32{0, 0, 1, 1, 1, 1}, 1e-6)
}

func TestMixToBusSumsAndClips(t *testing.T) {
	a := ClipBuffer{Buffer: Buffer{Samples: []float32{0.8, 0.3}, Rate: 2, Channels: 1}}
	b := ClipBuffer{Buffer: Buffer{Samples: []float32{0.8, -0.5}, Rate: 2, Channels: 1}}
	bus := MixToBus([]ClipBuffer{a, b}, 2, 1)
	// 1.6 clips to 1.0; -0.2 stays.
	floatsNear(t, bus.Samples, []float32{1, -0.2}, 1e-6)
}

func TestMixToBusAppliesMasterGain(t *testing.T) {
	in := ClipBuffer{Buffer: Buffer{Samples: []float32{0.5, -0.5}, Rate: 2, Channels: 1}}
	bus := MixToBus([]ClipBuffer{in}, 2, 0.5)
	floatsNear(t, bus.Samples, []float32{0.25, -0.25}, 1e-6)
}

func TestMixToBusAppliesEnvelope(t *testing.T) {
	in := ClipBuffer{
		Buffer:   Buffer{Samples: []float32{1, 1, 1, 1}, Rate: 4, Channels: 1},
		Envelope: []project.GainPoint{{T: 0, Gain: 1}, {T: 1, Gain: 0}},
	}
	bus := MixToBus([]ClipBuffer{in}, 4, 1)
	floatsNear(t, bus.Samples, []float32{1, 0.75, 0.5, 0.25}, 1e-6)
}

func TestMixToBusResamplesInputs(t *testing.T) {
	in := ClipBuffer{Buffer: Buffer{Samples: []float32{0, 1}, Rate: 2, Channels: 1}}
	bus := MixToBus([]ClipBuffer{in}, 4, 1)
	floatsNear(t, bus.Samples, []float32{0, 1.0 / 3, 2.0 / 3, 1}, 1e-6)
}

func TestMixToBusWidensToWidestInput(t *testing.T) {
	stereo := ClipBuffer{Buffer: Buffer{Samples: []float32{1, 2, 3, 4}, Rate: 2, Channels: 2}}
	mono := ClipBuffer{Buffer: Buffer{Samples: []float32{10, 20}, Rate: 2, Channels: 1}}
	bus := MixToBus([]ClipBuffer{stereo, mono}, 2, 1)

	if bus.Channels != 2 {
		t.Fatalf("bus channels = %d, want 2", bus.Channels)
	}
	// Mono inputs land in the first channel only; everything clips to 1.
	floatsNear(t, bus.Samples, []float32{1, 1, 1, 1}, 1e-6)
}
