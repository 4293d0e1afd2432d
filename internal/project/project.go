// Package project holds the non-destructive timeline data model (assets,
// tracks, clips, effects) and its persisted JSON form.
package project

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Version is the persisted schema version.
const Version = "1.0.0"

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

var (
	ErrDuplicateAsset = errors.New("duplicate asset id")
	ErrDuplicateTrack = errors.New("duplicate track id")
	ErrAssetNotFound  = errors.New("asset not found")
)

type Asset struct {
	ID       string
	Path     string
	Kind     MediaKind
	Metadata map[string]any
}

type Clip struct {
	ID           string
	AssetID      string
	Start        float64 // timeline seconds
	In           float64 // seconds into the asset
	Out          float64
	Muted        bool
	Locked       bool
	Effects      []Effect
	GainEnvelope []GainPoint
}

func (c *Clip) Duration() float64 { return math.Max(0, c.Out-c.In) }

func (c *Clip) End() float64 { return c.Start + c.Duration() }

// Clone deep-copies the clip, including effects and envelope, so edits on
// the copy never alias the original.
func (c *Clip) Clone() *Clip {
	cp := *c
	cp.Effects = make([]Effect, len(c.Effects))
	for i := range c.Effects {
		cp.Effects[i] = c.Effects[i].Clone()
	}
	cp.GainEnvelope = append([]GainPoint(nil), c.GainEnvelope...)
	return &cp
}

type Track struct {
	ID     string
	Kind   MediaKind
	Muted  bool
	Locked bool
	Clips  []*Clip
}

// SortClips restores the by-start ordering invariant. Stable, so
// overlapping clips keep their relative order.
func (t *Track) SortClips() {
	sort.SliceStable(t.Clips, func(i, j int) bool { return t.Clips[i].Start < t.Clips[j].Start })
}

// ClipIndex returns the position of the clip with the given id, or -1.
func (t *Track) ClipIndex(id string) int {
	for i, c := range t.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

type Settings struct {
	FPS                 float64
	Width               int
	Height              int
	AutosaveIntervalSec int
	UIScale             float64
}

func DefaultSettings() Settings {
	return Settings{FPS: 30, Width: 1920, Height: 1080, AutosaveIntervalSec: 120, UIScale: 1.0}
}

// Project is the root aggregate: it owns assets, tracks and everything
// under them. Mutations go through the timeline engine or explicit field
// assignment; persistence goes through the Document form.
type Project struct {
	Settings Settings
	Assets   []*Asset
	Tracks   []*Track
	Metadata map[string]any
	Version  string
}

func New() *Project {
	return &Project{
		Settings: DefaultSettings(),
		Metadata: map[string]any{"project_id": uuid.NewString()},
		Version:  Version,
	}
}

func (p *Project) AssetByID(id string) (*Asset, bool) {
	for _, a := range p.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (p *Project) AddAsset(a *Asset) error {
	if _, ok := p.AssetByID(a.ID); ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAsset, a.ID)
	}
	p.Assets = append(p.Assets, a)
	return nil
}

// RemoveAsset drops the asset and cascades: every clip referencing it is
// removed from every track.
func (p *Project) RemoveAsset(id string) error {
	idx := -1
	for i, a := range p.Assets {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrAssetNotFound, id)
	}
	p.Assets = append(p.Assets[:idx], p.Assets[idx+1:]...)
	for _, tr := range p.Tracks {
		kept := tr.Clips[:0]
		for _, c := range tr.Clips {
			if c.AssetID != id {
				kept = append(kept, c)
			}
		}
		tr.Clips = kept
	}
	return nil
}

func (p *Project) TrackByID(id string) (*Track, bool) {
	for _, t := range p.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func (p *Project) AddTrack(t *Track) error {
	if _, ok := p.TrackByID(t.ID); ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTrack, t.ID)
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// RemoveTrack reports whether a track with the given id was removed.
func (p *Project) RemoveTrack(id string) bool {
	for i, t := range p.Tracks {
		if t.ID == id {
			p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// Duration is the end of the latest-ending clip across all tracks.
func (p *Project) Duration() float64 {
	var d float64
	for _, t := range p.Tracks {
		for _, c := range t.Clips {
			if end := c.End(); end > d {
				d = end
			}
		}
	}
	return d
}
