package ports

import (
	"context"
	"io"
)

// Decoder serves decoded media. Implementations serialize access
// internally; callers may share one instance across goroutines.
type Decoder interface {
	Probe(ctx context.Context, path string) (ProbeInfo, error)
	VideoFrameAt(ctx context.Context, assetID, path string, seconds float64) (VideoFrame, error)
	AudioSegment(ctx context.Context, assetID, path string, start, duration float64) (AudioBuffer, error)
	Close() error
}

// Encoder launches an external encode consuming raw RGBA frames on a
// pipe plus a pre-rendered audio file.
type Encoder interface {
	Start(ctx context.Context, job EncodeJob) (EncodeProc, error)
}

// EncodeProc is one running encode. Frames is the raw frame sink;
// writes block when the process falls behind. Diagnostics streams the
// process's progress/error output until exit.
type EncodeProc interface {
	Frames() io.WriteCloser
	Diagnostics() io.Reader
	Wait() error
	Kill() error
}
