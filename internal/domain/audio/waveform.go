package audio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// DefaultWaveformWindow is the per-window sample count used for timeline
// waveform thumbnails.
const DefaultWaveformWindow = 512

// Waveform is the compact RMS profile persisted next to audio assets.
type Waveform struct {
	WindowSize int       `json:"window_size"`
	RMS        []float64 `json:"rms"`
}

// ComputeWaveform reduces interleaved samples to one RMS value per full
// window of mono frames. Channels are averaged into mono first. A buffer
// shorter than one window yields a single RMS over everything it has;
// empty input yields a single zero.
func ComputeWaveform(samples []float32, channels, windowSize int) Waveform {
	if windowSize < 1 {
		windowSize = DefaultWaveformWindow
	}
	if channels < 1 {
		channels = 1
	}

	frames := len(samples) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(samples[i*channels+ch])
		}
		mono[i] = sum / float64(channels)
	}

	windows := len(mono) / windowSize
	if windows == 0 {
		if len(mono) == 0 {
			return Waveform{WindowSize: windowSize, RMS: []float64{0}}
		}
		return Waveform{WindowSize: windowSize, RMS: []float64{rmsOf(mono)}}
	}

	rms := make([]float64, 0, windows)
	for i := 0; i < windows; i++ {
		rms = append(rms, rmsOf(mono[i*windowSize:(i+1)*windowSize]))
	}
	return Waveform{WindowSize: windowSize, RMS: rms}
}

func rmsOf(window []float64) float64 {
	var sum float64
	for _, s := range window {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(window)))
}

// SaveWaveform writes the profile as JSON.
func SaveWaveform(path string, w Waveform) error {
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal waveform: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadWaveform reads a profile written by SaveWaveform.
func LoadWaveform(path string) (Waveform, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, err
	}
	var w Waveform
	if err := json.Unmarshal(b, &w); err != nil {
		return Waveform{}, fmt.Errorf("parse waveform %s: %w", path, err)
	}
	return w, nil
}
