// Package importer registers media files as project assets. Stream
// metadata lands in the asset's metadata map; audio assets get a
// waveform sidecar and video assets a thumbnail, both best-effort:
// failures become warnings, never import errors.
package importer

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"github.com/avroom/reelcut/internal/domain/audio"
	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/project"
)

var (
	videoExt = map[string]bool{".mp4": true, ".mov": true, ".mkv": true}
	audioExt = map[string]bool{".mp3": true, ".wav": true, ".aac": true}
)

const (
	waveformSeconds = 5.0
	thumbWidth      = 320
	thumbHeight     = 180
)

// Result lists the registered assets and any per-file warnings.
type Result struct {
	Assets   []*project.Asset
	Warnings []string
}

type Importer struct {
	project *project.Project
	decoder ports.Decoder
	log     zerolog.Logger
	counter int
}

func New(p *project.Project, d ports.Decoder, log zerolog.Logger) *Importer {
	return &Importer{project: p, decoder: d, log: log}
}

// Import registers each supported path as an asset. Unsupported
// extensions are skipped with a warning. Asset ids take a v/a prefix
// from the media kind over one counter shared across kinds.
func (im *Importer) Import(ctx context.Context, paths ...string) (Result, error) {
	var res Result
	for _, path := range paths {
		kind, ok := kindForPath(path)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: unsupported file type", path))
			im.log.Warn().Str("path", path).Msg("unsupported file type, skipping")
			continue
		}

		im.counter++
		prefix := "v"
		if kind == project.MediaAudio {
			prefix = "a"
		}
		asset := &project.Asset{
			ID:       fmt.Sprintf("%s%d", prefix, im.counter),
			Path:     path,
			Kind:     kind,
			Metadata: map[string]any{},
		}
		if info, err := im.decoder.Probe(ctx, path); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: probe failed: %v", path, err))
			im.log.Warn().Err(err).Str("path", path).Msg("probe failed")
		} else {
			fillMetadata(asset.Metadata, info)
		}
		if err := im.project.AddAsset(asset); err != nil {
			return res, fmt.Errorf("register asset %s: %w", path, err)
		}
		res.Assets = append(res.Assets, asset)

		switch kind {
		case project.MediaVideo:
			if err := im.writeThumbnail(ctx, asset); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", asset.ID, err))
				im.log.Warn().Err(err).Str("asset", asset.ID).Msg("thumbnail generation incomplete")
			}
		case project.MediaAudio:
			if err := im.writeWaveform(ctx, asset); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", asset.ID, err))
				im.log.Warn().Err(err).Str("asset", asset.ID).Msg("waveform generation failed")
			}
		}
	}
	return res, nil
}

func kindForPath(path string) (project.MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExt[ext]:
		return project.MediaVideo, true
	case audioExt[ext]:
		return project.MediaAudio, true
	default:
		return "", false
	}
}

func fillMetadata(meta map[string]any, info ports.ProbeInfo) {
	meta["duration"] = info.Duration
	if len(info.Video) > 0 {
		v := info.Video[0]
		meta["width"] = v.Width
		meta["height"] = v.Height
		meta["fps"] = v.FPS
	}
	if len(info.Audio) > 0 {
		a := info.Audio[0]
		meta["sample_rate"] = a.Rate
		meta["channels"] = a.Channels
	}
}

// ThumbnailPath is the sidecar written next to a video asset.
func ThumbnailPath(assetPath string) string { return assetPath + ".thumb.png" }

// WaveformPath is the sidecar written next to an audio asset.
func WaveformPath(assetPath string) string { return assetPath + ".waveform.json" }

// writeThumbnail scales the asset's first frame to a fixed-size PNG.
// When the frame cannot be decoded a black placeholder is written and
// the decode failure is reported as the warning.
func (im *Importer) writeThumbnail(ctx context.Context, asset *project.Asset) error {
	dc := gg.NewContext(thumbWidth, thumbHeight)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	frame, decodeErr := im.decoder.VideoFrameAt(ctx, asset.ID, asset.Path, 0)
	if decodeErr == nil && frame.Image != nil {
		if canvas, ok := dc.Image().(*image.RGBA); ok {
			xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame.Image, frame.Image.Bounds(), xdraw.Src, nil)
		}
	}
	if err := dc.SavePNG(ThumbnailPath(asset.Path)); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if decodeErr != nil {
		return fmt.Errorf("thumbnail is a placeholder: %w", decodeErr)
	}
	return nil
}

// writeWaveform reduces the first seconds of audio to an RMS profile
// sidecar.
func (im *Importer) writeWaveform(ctx context.Context, asset *project.Asset) error {
	seg, err := im.decoder.AudioSegment(ctx, asset.ID, asset.Path, 0, waveformSeconds)
	if err != nil {
		return fmt.Errorf("decode audio for waveform: %w", err)
	}
	wf := audio.ComputeWaveform(seg.Samples, seg.Channels, audio.DefaultWaveformWindow)
	if err := audio.SaveWaveform(WaveformPath(asset.Path), wf); err != nil {
		return fmt.Errorf("write waveform: %w", err)
	}
	return nil
}
