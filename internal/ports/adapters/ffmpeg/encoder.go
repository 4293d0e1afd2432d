package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/avroom/reelcut/internal/ports"
)

// Encoder spawns ffmpeg to mux raw RGBA frames from stdin with a
// pre-rendered f32le audio file into an H.264/AAC container.
type Encoder struct {
	ffmpeg string
	log    zerolog.Logger
}

func NewEncoder(ffmpegPath string, log zerolog.Logger) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Encoder{ffmpeg: ffmpegPath, log: log}
}

func (e *Encoder) Start(ctx context.Context, job ports.EncodeJob) (ports.EncodeProc, error) {
	args := []string{
		"-hide_banner",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", job.Width, job.Height),
		"-r", fmtRate(job.FPS),
		"-i", "-",
		"-f", "f32le",
		"-ar", strconv.Itoa(job.AudioRate),
		"-ac", strconv.Itoa(job.AudioChans),
		"-i", job.AudioPath,
		"-c:v", "libx264",
		"-preset", job.SpeedPreset,
		"-crf", strconv.Itoa(job.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", job.AudioBitrate,
		job.OutputPath,
	}
	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encode: %w", err)
	}
	e.log.Debug().Str("output", job.OutputPath).
		Int("width", job.Width).Int("height", job.Height).
		Msg("encoder process started")
	return &encodeProc{cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

type encodeProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr io.Reader
}

func (p *encodeProc) Frames() io.WriteCloser { return p.stdin }
func (p *encodeProc) Diagnostics() io.Reader { return p.stderr }
func (p *encodeProc) Wait() error            { return p.cmd.Wait() }
func (p *encodeProc) Kill() error            { return p.cmd.Process.Kill() }

func fmtRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
