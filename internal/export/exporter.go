// Package export orchestrates a full-program render: it drives the
// compositor frame by frame, renders the audio bus once, and streams
// raw frames into an external encoder process while tracking render
// and encode progress and honoring cancellation.
package export

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"github.com/avroom/reelcut/internal/compositor"
	"github.com/avroom/reelcut/internal/domain/audio"
	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/project"
)

type State string

const (
	StateIdle      State = "idle"
	StateRendering State = "rendering"
	StateEncoding  State = "encoding"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

var (
	ErrCancelled     = errors.New("export cancelled")
	ErrUnknownPreset = errors.New("unknown export preset")
)

const (
	busRate     = 48000
	busChannels = 2
)

// Request names the output file and the preset to encode with.
// AudioRate overrides the mix bus sample rate; zero keeps 48 kHz.
type Request struct {
	OutputPath string
	Preset     string
	AudioRate  int
}

// Exporter renders a project to a finished container. One export runs
// at a time per instance; Status is safe to read concurrently.
type Exporter struct {
	project *project.Project
	decoder ports.Decoder
	encoder ports.Encoder
	log     zerolog.Logger

	// OnProgress, when set, receives max(render, encode) whenever the
	// combined progress increases. Both dimensions are monotonic.
	OnProgress func(float64)

	mu        sync.Mutex
	state     State
	render    float64
	encode    float64
	published float64
}

func New(p *project.Project, dec ports.Decoder, enc ports.Encoder, log zerolog.Logger) *Exporter {
	return &Exporter{project: p, decoder: dec, encoder: enc, log: log, state: StateIdle}
}

func (e *Exporter) Status() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Export runs the full pipeline. Cancellation is the context: it is
// checked once per rendered frame, and a cancelled export terminates
// the encoder and leaves no output file behind.
func (e *Exporter) Export(ctx context.Context, req Request) error {
	preset, ok := PresetByName(req.Preset)
	if !ok {
		e.transition(StateFailed)
		return fmt.Errorf("%w: %q", ErrUnknownPreset, req.Preset)
	}

	fps := e.project.Settings.FPS
	if fps <= 0 {
		fps = 30
	}
	duration := e.project.Duration()
	totalFrames := int(math.Ceil(duration * fps))
	if totalFrames < 1 {
		totalFrames = 1
	}

	e.resetProgress()
	e.transition(StateRendering)
	e.log.Info().Str("preset", preset.Name).Int("frames", totalFrames).
		Float64("duration", duration).Msg("export started")

	workDir, err := os.MkdirTemp("", "reelcut-export-")
	if err != nil {
		e.transition(StateFailed)
		return fmt.Errorf("create export workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	rate := req.AudioRate
	if rate <= 0 {
		rate = busRate
	}
	bus := e.renderAudioBus(ctx, rate)
	audioPath := filepath.Join(workDir, "mix.f32le")
	if err := writeRawPCM(audioPath, bus.Samples); err != nil {
		e.transition(StateFailed)
		return fmt.Errorf("write audio bus: %w", err)
	}

	proc, err := e.encoder.Start(ctx, ports.EncodeJob{
		OutputPath:   req.OutputPath,
		Width:        preset.Width,
		Height:       preset.Height,
		FPS:          fps,
		CRF:          preset.CRF,
		SpeedPreset:  preset.SpeedPreset,
		AudioBitrate: preset.AudioBitrate,
		AudioPath:    audioPath,
		AudioRate:    bus.Rate,
		AudioChans:   bus.Channels,
	})
	if err != nil {
		e.transition(StateFailed)
		return fmt.Errorf("start encoder: %w", err)
	}

	tail := newLineTail(40)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		sc := bufio.NewScanner(proc.Diagnostics())
		sc.Split(scanDiagnostics)
		for sc.Scan() {
			line := sc.Text()
			tail.add(line)
			if p, ok := parseProgress(line, totalFrames, duration); ok {
				e.advance(&e.encode, p)
			}
		}
	}()

	comp := compositor.New(e.project, e.decoder, e.log)
	var scaled *image.RGBA
	if preset.Width != e.project.Settings.Width || preset.Height != e.project.Settings.Height {
		scaled = image.NewRGBA(image.Rect(0, 0, preset.Width, preset.Height))
	}

	var writeErr error
	frames := proc.Frames()
	for i := 0; i < totalFrames; i++ {
		if ctx.Err() != nil {
			e.abort(proc, readerDone, req.OutputPath)
			e.transition(StateCancelled)
			return fmt.Errorf("%w at frame %d/%d", ErrCancelled, i, totalFrames)
		}
		frame, err := comp.RenderFrame(ctx, float64(i)/fps)
		if err != nil {
			e.abort(proc, readerDone, req.OutputPath)
			e.transition(StateFailed)
			return fmt.Errorf("render frame %d: %w", i, err)
		}
		out := frame
		if scaled != nil {
			xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)
			out = scaled
		}
		// Blocking write: a slow encoder stalls the render loop here.
		if _, err := frames.Write(out.Pix); err != nil {
			writeErr = err
			break
		}
		e.advance(&e.render, float64(i+1)/float64(totalFrames))
	}

	e.transition(StateEncoding)
	_ = frames.Close()
	<-readerDone
	waitErr := proc.Wait()

	if ctx.Err() != nil {
		// Cancellation can surface as a broken pipe before the
		// per-frame check sees it.
		_ = os.Remove(req.OutputPath)
		e.transition(StateCancelled)
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	if waitErr != nil {
		_ = os.Remove(req.OutputPath)
		e.transition(StateFailed)
		return fmt.Errorf("encoder failed: %w\n%s", waitErr, tail.String())
	}
	if writeErr != nil {
		_ = os.Remove(req.OutputPath)
		e.transition(StateFailed)
		return fmt.Errorf("write frame to encoder: %w", writeErr)
	}

	e.advance(&e.render, 1)
	e.advance(&e.encode, 1)
	e.transition(StateDone)
	e.log.Info().Str("output", req.OutputPath).Msg("export finished")
	return nil
}

// renderAudioBus decodes every audible clip and mixes the master bus.
// Per-clip decode failures are logged and skipped; an empty timeline
// yields one frame of stereo silence so the encoder still has an audio
// input.
func (e *Exporter) renderAudioBus(ctx context.Context, rate int) audio.Buffer {
	var inputs []audio.ClipBuffer
	for _, track := range e.project.Tracks {
		if track.Kind != project.MediaAudio || track.Muted {
			continue
		}
		for _, clip := range track.Clips {
			if clip.Muted {
				continue
			}
			asset, ok := e.project.AssetByID(clip.AssetID)
			if !ok {
				continue
			}
			seg, err := e.decoder.AudioSegment(ctx, asset.ID, asset.Path, clip.In, clip.Duration())
			if err != nil {
				e.log.Warn().Err(err).Str("clip", clip.ID).Msg("audio clip skipped")
				continue
			}
			inputs = append(inputs, audio.ClipBuffer{
				Buffer:   audio.Buffer{Samples: seg.Samples, Rate: seg.Rate, Channels: seg.Channels},
				Start:    clip.Start,
				Envelope: clip.GainEnvelope,
			})
		}
	}
	if len(inputs) == 0 {
		return audio.Buffer{Samples: make([]float32, busChannels), Rate: rate, Channels: busChannels}
	}
	return audio.MixToBus(inputs, rate, 1.0)
}

// abort tears the encoder down mid-stream: close the frame pipe,
// terminate the process, join the reader, reap, drop partial output.
func (e *Exporter) abort(proc ports.EncodeProc, readerDone <-chan struct{}, outputPath string) {
	_ = proc.Frames().Close()
	_ = proc.Kill()
	<-readerDone
	_ = proc.Wait()
	_ = os.Remove(outputPath)
}

func (e *Exporter) transition(next State) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()
	if prev != next {
		e.log.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("export state")
	}
}

func (e *Exporter) resetProgress() {
	e.mu.Lock()
	e.render, e.encode, e.published = 0, 0, 0
	e.mu.Unlock()
}

// advance raises one progress dimension and publishes the combined
// maximum when it grew. dim points at e.render or e.encode.
func (e *Exporter) advance(dim *float64, v float64) {
	e.mu.Lock()
	if v > *dim {
		*dim = v
	}
	combined := math.Max(e.render, e.encode)
	grew := combined > e.published
	if grew {
		e.published = combined
	}
	cb := e.OnProgress
	e.mu.Unlock()
	if grew && cb != nil {
		cb(combined)
	}
}

func writeRawPCM(path string, samples []float32) error {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return os.WriteFile(path, buf, 0o644)
}
