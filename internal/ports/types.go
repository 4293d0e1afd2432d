package ports

import "image"

// VideoFrame is one decoded frame with its presentation timestamp in
// seconds.
type VideoFrame struct {
	PTS   float64
	Image *image.RGBA
}

// AudioBuffer holds interleaved float32 samples decoded from an asset.
type AudioBuffer struct {
	Start    float64
	Samples  []float32
	Rate     int
	Channels int
}

// ProbeInfo is container-level metadata.
type ProbeInfo struct {
	Duration float64
	Video    []VideoStream
	Audio    []AudioStream
}

type VideoStream struct {
	Index  int
	Width  int
	Height int
	FPS    float64
}

type AudioStream struct {
	Index    int
	Rate     int
	Channels int
}

// EncodeJob configures one export encode.
type EncodeJob struct {
	OutputPath   string
	Width        int
	Height       int
	FPS          float64
	CRF          int
	SpeedPreset  string
	AudioBitrate string
	AudioPath    string
	AudioRate    int
	AudioChans   int
}
