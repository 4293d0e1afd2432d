// Package timeline implements the non-destructive structural edits on the
// project's track/clip graph: split, join, ripple delete, move, trim and
// grid snapping. It never touches decoded media.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/avroom/reelcut/internal/project"
	"github.com/avroom/reelcut/internal/timecode"
)

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrClipNotFound  = errors.New("clip not found")
	ErrNotAdjacent   = errors.New("clips must be adjacent to join")
	ErrAssetMismatch = errors.New("cannot join clips from different assets")
)

// Engine mutates one project. It holds the snap grid and the playhead;
// callers serialize access (see project.Store).
type Engine struct {
	Project  *project.Project
	Playhead timecode.Playhead

	snapTicks int64
}

func New(p *project.Project) *Engine {
	return &Engine{
		Project:   p,
		snapTicks: timecode.FrameTicks(p.Settings.FPS, 1),
	}
}

// SnapTime rounds seconds to the nearest snap-grid position. The default
// grid is one frame at the project's fps.
func (e *Engine) SnapTime(seconds float64) float64 {
	interval := e.snapTicks
	if interval < 1 {
		interval = 1
	}
	return timecode.ToSeconds(timecode.SnapToGrid(timecode.ToTicks(seconds), interval))
}

// SetSnapResolution switches the grid to frameMultiple frames.
func (e *Engine) SetSnapResolution(frameMultiple int) {
	e.snapTicks = timecode.FrameTicks(e.Project.Settings.FPS, frameMultiple)
}

// FindClip locates a clip and its index within its track.
func (e *Engine) FindClip(trackID, clipID string) (*project.Track, *project.Clip, int, error) {
	tr, ok := e.Project.TrackByID(trackID)
	if !ok {
		return nil, nil, 0, fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	idx := tr.ClipIndex(clipID)
	if idx < 0 {
		return nil, nil, 0, fmt.Errorf("%w: %q on track %q", ErrClipNotFound, clipID, trackID)
	}
	return tr, tr.Clips[idx], idx, nil
}

// InsertClip adds the clip to the track, creating the track first when it
// does not exist (kind inferred from the clip's asset, video fallback).
func (e *Engine) InsertClip(trackID string, clip *project.Clip) {
	tr := e.ensureTrack(trackID, clip)
	tr.Clips = append(tr.Clips, clip)
	tr.SortClips()
}

// SplitClip cuts the clip at an absolute timeline position. The position is
// clamped into the clip's span; a cut at either boundary is a no-op that
// returns the original clip twice. Both halves get value copies of the
// effect stack, so later effect edits on one half never leak into the
// other. Boundary gain points land in both halves.
func (e *Engine) SplitClip(trackID, clipID string, seconds float64) (*project.Clip, *project.Clip, error) {
	tr, c, idx, err := e.FindClip(trackID, clipID)
	if err != nil {
		return nil, nil, err
	}
	end := c.Start + c.Duration()
	seconds = math.Max(c.Start, math.Min(seconds, end))
	if seconds <= c.Start || seconds >= end {
		return c, c, nil
	}

	offset := seconds - c.Start
	newIn := c.In + offset

	left := &project.Clip{
		ID:           c.ID + "_a",
		AssetID:      c.AssetID,
		Start:        c.Start,
		In:           c.In,
		Out:          newIn,
		Muted:        c.Muted,
		Locked:       c.Locked,
		Effects:      cloneEffects(c.Effects),
		GainEnvelope: filterEnvelope(c.GainEnvelope, func(p project.GainPoint) bool { return p.T <= offset }),
	}
	right := &project.Clip{
		ID:           c.ID + "_b",
		AssetID:      c.AssetID,
		Start:        seconds,
		In:           newIn,
		Out:          c.Out,
		Muted:        c.Muted,
		Locked:       c.Locked,
		Effects:      cloneEffects(c.Effects),
		GainEnvelope: filterEnvelope(c.GainEnvelope, func(p project.GainPoint) bool { return p.T >= offset }),
	}

	tr.Clips = append(tr.Clips[:idx], append([]*project.Clip{left, right}, tr.Clips[idx+1:]...)...)
	return left, right, nil
}

// RippleDelete removes the clip and closes the gap: every later clip on the
// track shifts earlier by the deleted duration, clamped so no start moves
// before the deleted clip's original start.
func (e *Engine) RippleDelete(trackID, clipID string) error {
	tr, c, idx, err := e.FindClip(trackID, clipID)
	if err != nil {
		return err
	}
	dur := c.Duration()
	origStart := c.Start
	tr.Clips = append(tr.Clips[:idx], tr.Clips[idx+1:]...)
	for _, later := range tr.Clips[idx:] {
		later.Start = math.Max(origStart, later.Start-dur)
	}
	return nil
}

// JoinAdjacent merges two clips that sit next to each other in track order
// and reference the same asset. The merged clip spans min(in)..max(out),
// is muted/locked only if both inputs were, keeps the left clip's effects
// and carries both envelopes (right's shifted onto the left's local time).
// On failure the track is left untouched.
func (e *Engine) JoinAdjacent(trackID, leftID, rightID string) (*project.Clip, error) {
	tr, ok := e.Project.TrackByID(trackID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	li := tr.ClipIndex(leftID)
	if li < 0 {
		return nil, fmt.Errorf("%w: %q on track %q", ErrClipNotFound, leftID, trackID)
	}
	ri := tr.ClipIndex(rightID)
	if ri < 0 {
		return nil, fmt.Errorf("%w: %q on track %q", ErrClipNotFound, rightID, trackID)
	}
	if ri != li+1 {
		return nil, fmt.Errorf("%w: %q and %q", ErrNotAdjacent, leftID, rightID)
	}
	left, right := tr.Clips[li], tr.Clips[ri]
	if left.AssetID != right.AssetID {
		return nil, fmt.Errorf("%w: %q vs %q", ErrAssetMismatch, left.AssetID, right.AssetID)
	}

	merged := &project.Clip{
		ID:           left.ID + "_join",
		AssetID:      left.AssetID,
		Start:        left.Start,
		In:           math.Min(left.In, right.In),
		Out:          math.Max(left.Out, right.Out),
		Muted:        left.Muted && right.Muted,
		Locked:       left.Locked && right.Locked,
		Effects:      cloneEffects(left.Effects),
		GainEnvelope: mergeEnvelopes(left, right),
	}
	tr.Clips = append(tr.Clips[:li], append([]*project.Clip{merged}, tr.Clips[ri+1:]...)...)
	return merged, nil
}

// MoveClip repositions the clip (clamped to >= 0) and restores track order.
func (e *Engine) MoveClip(trackID, clipID string, newStart float64) error {
	tr, c, _, err := e.FindClip(trackID, clipID)
	if err != nil {
		return err
	}
	c.Start = math.Max(0, newStart)
	tr.SortClips()
	return nil
}

// TrimClip adjusts the clip's source window. Each provided bound is
// clamped against the other so in <= out always holds; nil leaves the
// bound unchanged.
func (e *Engine) TrimClip(trackID, clipID string, newIn, newOut *float64) error {
	_, c, _, err := e.FindClip(trackID, clipID)
	if err != nil {
		return err
	}
	if newIn != nil {
		c.In = math.Min(math.Max(*newIn, 0), c.Out)
	}
	if newOut != nil {
		c.Out = math.Max(*newOut, c.In)
	}
	return nil
}

func (e *Engine) ensureTrack(trackID string, clip *project.Clip) *project.Track {
	if tr, ok := e.Project.TrackByID(trackID); ok {
		return tr
	}
	kind := project.MediaVideo
	if a, ok := e.Project.AssetByID(clip.AssetID); ok {
		kind = a.Kind
	}
	tr := &project.Track{ID: trackID, Kind: kind}
	e.Project.Tracks = append(e.Project.Tracks, tr)
	sort.SliceStable(e.Project.Tracks, func(i, j int) bool {
		return e.Project.Tracks[i].ID < e.Project.Tracks[j].ID
	})
	return tr
}

func cloneEffects(effects []project.Effect) []project.Effect {
	out := make([]project.Effect, len(effects))
	for i := range effects {
		out[i] = effects[i].Clone()
	}
	return out
}

func filterEnvelope(env []project.GainPoint, keep func(project.GainPoint) bool) []project.GainPoint {
	var out []project.GainPoint
	for _, p := range env {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func mergeEnvelopes(left, right *project.Clip) []project.GainPoint {
	offset := right.Start - left.Start
	out := append([]project.GainPoint(nil), left.GainEnvelope...)
	for _, p := range right.GainEnvelope {
		out = append(out, project.GainPoint{T: p.T + offset, Gain: p.Gain})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}
