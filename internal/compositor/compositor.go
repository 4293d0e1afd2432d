// Package compositor assembles one finished frame per timeline
// timestamp: it selects the clips covering the instant, decodes their
// frames, runs each clip's effect stack, and paints them onto a canvas
// in track order.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"github.com/avroom/reelcut/internal/domain/effects"
	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/project"
)

type Compositor struct {
	project *project.Project
	decoder ports.Decoder
	log     zerolog.Logger
}

func New(p *project.Project, d ports.Decoder, log zerolog.Logger) *Compositor {
	return &Compositor{project: p, decoder: d, log: log}
}

// RenderFrame composites the timeline at an absolute timestamp into a
// canvas sized per project settings. Later tracks and clips fully
// overwrite earlier pixels; there is no blending. Clips referencing an
// unknown asset are skipped; decode failures abort the render.
func (c *Compositor) RenderFrame(ctx context.Context, seconds float64) (*image.RGBA, error) {
	width, height := c.project.Settings.Width, c.project.Settings.Height
	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	canvas, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("canvas is not RGBA")
	}

	for _, track := range c.project.Tracks {
		if track.Kind != project.MediaVideo || track.Muted {
			continue
		}
		for _, clip := range track.Clips {
			if seconds < clip.Start || seconds >= clip.Start+clip.Duration() {
				continue
			}
			asset, ok := c.project.AssetByID(clip.AssetID)
			if !ok {
				c.log.Debug().Str("clip", clip.ID).Str("asset", clip.AssetID).
					Msg("clip references unknown asset, skipping")
				continue
			}
			local := seconds - clip.Start + clip.In
			frame, err := c.decoder.VideoFrameAt(ctx, asset.ID, asset.Path, local)
			if err != nil {
				return nil, fmt.Errorf("render frame at %.3fs: %w", seconds, err)
			}
			paint(canvas, frame.Image)
			// The clip frame now covers the whole canvas, so effects
			// can run directly on it with canvas-relative regions.
			for _, e := range clip.Effects {
				effects.Apply(canvas, e, local)
			}
		}
	}
	return canvas, nil
}

// paint covers the canvas with the frame, scaling when the source size
// differs.
func paint(canvas, frame *image.RGBA) {
	if frame == nil {
		return
	}
	fb, cb := frame.Bounds(), canvas.Bounds()
	if fb.Dx() == cb.Dx() && fb.Dy() == cb.Dy() {
		draw.Draw(canvas, cb, frame, fb.Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(canvas, cb, frame, fb, xdraw.Src, nil)
}
