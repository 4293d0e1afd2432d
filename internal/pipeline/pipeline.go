// Package pipeline assembles the ffmpeg adapters and runs the
// project-level operations the CLI commands map onto.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/avroom/reelcut/internal/domain/audio"
	"github.com/avroom/reelcut/internal/export"
	"github.com/avroom/reelcut/internal/importer"
	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/avroom/reelcut/internal/project"
	"github.com/avroom/reelcut/internal/timecode"
)

// Config selects the external tools and tuning the commands run with.
// Empty tool paths resolve via $PATH.
type Config struct {
	FFmpegPath      string
	FFprobePath     string
	CacheCapacity   int
	AudioSampleRate int
	AutosaveEnabled bool
	Log             zerolog.Logger
}

func (c Config) Validate() error {
	if c.CacheCapacity <= 0 {
		return errors.New("cache capacity must be > 0")
	}
	if c.AudioSampleRate <= 0 {
		return errors.New("audio sample rate must be > 0")
	}
	return nil
}

// App carries the assembled components for one invocation.
type App struct {
	cfg     Config
	decoder ports.Decoder
	encoder ports.Encoder
	log     zerolog.Logger
}

func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &App{
		cfg:     cfg,
		decoder: ffmpeg.NewDecoder(cfg.FFmpegPath, cfg.FFprobePath, cfg.CacheCapacity, cfg.Log),
		encoder: ffmpeg.NewEncoder(cfg.FFmpegPath, cfg.Log),
		log:     cfg.Log,
	}, nil
}

// Close releases the decoder's cached state.
func (a *App) Close() error { return a.decoder.Close() }

// NewProject scaffolds a default project file. Refuses to overwrite an
// existing one.
func (a *App) NewProject(path string) (*project.Project, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}
	p := project.New()
	if err := project.Save(path, p); err != nil {
		return nil, err
	}
	a.log.Info().Str("path", path).Msg("project created")
	return p, nil
}

// Probe reports duration and stream layout of a media file.
func (a *App) Probe(ctx context.Context, path string) (ports.ProbeInfo, error) {
	return a.decoder.Probe(ctx, path)
}

// Import registers media files into the project and saves it. With
// autosave enabled the session also writes periodic snapshots next to
// the project file while the import runs.
func (a *App) Import(ctx context.Context, projectPath string, media ...string) (importer.Result, error) {
	p, err := project.Load(projectPath)
	if err != nil {
		return importer.Result{}, err
	}
	store := project.NewStore(p)
	if a.cfg.AutosaveEnabled {
		saver := project.NewAutosave(store, project.AutosaveConfig{
			Dir: filepath.Dir(projectPath),
			Log: a.log,
		})
		saver.Start()
		defer saver.Stop()
	}

	im := importer.New(p, a.decoder, a.log)
	var res importer.Result
	err = store.Update(func(*project.Project) error {
		var ierr error
		res, ierr = im.Import(ctx, media...)
		return ierr
	})
	if err != nil {
		return res, err
	}
	if err := project.Save(projectPath, p); err != nil {
		return res, fmt.Errorf("save project: %w", err)
	}
	return res, nil
}

// Waveform decodes a file's audio track in full and reduces it to the
// RMS profile the timeline renders from.
func (a *App) Waveform(ctx context.Context, mediaPath string) (audio.Waveform, error) {
	info, err := a.decoder.Probe(ctx, mediaPath)
	if err != nil {
		return audio.Waveform{}, err
	}
	if len(info.Audio) == 0 {
		return audio.Waveform{}, fmt.Errorf("%s has no audio stream", mediaPath)
	}
	seg, err := a.decoder.AudioSegment(ctx, mediaPath, mediaPath, 0, info.Duration)
	if err != nil {
		return audio.Waveform{}, err
	}
	return audio.ComputeWaveform(seg.Samples, seg.Channels, audio.DefaultWaveformWindow), nil
}

// ExportProject renders the project file to req.OutputPath. cb, when
// set, receives the exporter state and combined progress every time the
// progress grows.
func (a *App) ExportProject(ctx context.Context, projectPath string, req export.Request, cb func(export.State, float64)) error {
	p, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	if req.AudioRate == 0 {
		req.AudioRate = a.cfg.AudioSampleRate
	}
	exp := export.New(p, a.decoder, a.encoder, a.log)
	if cb != nil {
		exp.OnProgress = func(v float64) { cb(exp.Status(), v) }
	}
	return exp.Export(ctx, req)
}

// Summary condenses a project file for display.
type Summary struct {
	Path          string
	ProjectID     string
	Version       string
	FPS           float64
	Width, Height int
	Assets        int
	Tracks        int
	Clips         int
	Duration      float64
	DurationTicks int64
	PlayheadTicks int64
}

// Inspect loads a project and condenses its stats. The playhead of a
// fresh session sits at zero.
func (a *App) Inspect(projectPath string) (Summary, error) {
	p, err := project.Load(projectPath)
	if err != nil {
		return Summary{}, err
	}
	clips := 0
	for _, tr := range p.Tracks {
		clips += len(tr.Clips)
	}
	var head timecode.Playhead
	id, _ := p.Metadata["project_id"].(string)
	return Summary{
		Path:          projectPath,
		ProjectID:     id,
		Version:       p.Version,
		FPS:           p.Settings.FPS,
		Width:         p.Settings.Width,
		Height:        p.Settings.Height,
		Assets:        len(p.Assets),
		Tracks:        len(p.Tracks),
		Clips:         clips,
		Duration:      p.Duration(),
		DurationTicks: timecode.ToTicks(p.Duration()),
		PlayheadTicks: head.Ticks(),
	}, nil
}

// ensure adapters implement ports
var _ ports.Decoder = (*ffmpeg.Decoder)(nil)
var _ ports.Encoder = (*ffmpeg.Encoder)(nil)
