package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document mirrors the persisted project schema. It doubles as the
// snapshot type handed to store subscribers: plain values, no aliasing
// back into the live model.
type Document struct {
	Project  SettingsDoc    `json:"project"`
	Assets   []AssetDoc     `json:"assets"`
	Tracks   []TrackDoc     `json:"tracks"`
	Metadata map[string]any `json:"metadata"`
	Version  string         `json:"version"`
}

type SettingsDoc struct {
	FPS                 float64 `json:"fps"`
	Resolution          [2]int  `json:"resolution"`
	AutosaveIntervalSec int     `json:"autosave_interval_sec"`
	UIScale             float64 `json:"ui_scale"`
}

type AssetDoc struct {
	ID       string         `json:"id"`
	Path     string         `json:"path"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

type TrackDoc struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Muted  bool      `json:"muted"`
	Locked bool      `json:"locked"`
	Clips  []ClipDoc `json:"clips"`
}

type ClipDoc struct {
	ID           string         `json:"id"`
	Asset        string         `json:"asset"`
	Start        float64        `json:"start"`
	In           float64        `json:"in"`
	Out          float64        `json:"out"`
	Muted        bool           `json:"muted"`
	Locked       bool           `json:"locked"`
	Effects      []EffectDoc    `json:"effects"`
	GainEnvelope []GainPointDoc `json:"gain_envelope"`
}

type EffectDoc struct {
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	Keyframes []KeyframeDoc  `json:"keyframes"`
}

type KeyframeDoc struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type GainPointDoc struct {
	T    float64 `json:"t"`
	Gain float64 `json:"gain"`
}

// ToDocument converts the live model into its persisted form. Slices and
// maps are freshly allocated so the document is a true snapshot.
func ToDocument(p *Project) Document {
	doc := Document{
		Project: SettingsDoc{
			FPS:                 p.Settings.FPS,
			Resolution:          [2]int{p.Settings.Width, p.Settings.Height},
			AutosaveIntervalSec: p.Settings.AutosaveIntervalSec,
			UIScale:             p.Settings.UIScale,
		},
		Assets:   make([]AssetDoc, 0, len(p.Assets)),
		Tracks:   make([]TrackDoc, 0, len(p.Tracks)),
		Metadata: copyMeta(p.Metadata),
		Version:  p.Version,
	}
	if doc.Version == "" {
		doc.Version = Version
	}
	for _, a := range p.Assets {
		doc.Assets = append(doc.Assets, AssetDoc{
			ID:       a.ID,
			Path:     a.Path,
			Type:     string(a.Kind),
			Metadata: copyMeta(a.Metadata),
		})
	}
	for _, t := range p.Tracks {
		td := TrackDoc{
			ID:     t.ID,
			Type:   string(t.Kind),
			Muted:  t.Muted,
			Locked: t.Locked,
			Clips:  make([]ClipDoc, 0, len(t.Clips)),
		}
		for _, c := range t.Clips {
			td.Clips = append(td.Clips, clipToDoc(c))
		}
		doc.Tracks = append(doc.Tracks, td)
	}
	return doc
}

func clipToDoc(c *Clip) ClipDoc {
	cd := ClipDoc{
		ID:           c.ID,
		Asset:        c.AssetID,
		Start:        c.Start,
		In:           c.In,
		Out:          c.Out,
		Muted:        c.Muted,
		Locked:       c.Locked,
		Effects:      make([]EffectDoc, 0, len(c.Effects)),
		GainEnvelope: make([]GainPointDoc, 0, len(c.GainEnvelope)),
	}
	for _, e := range c.Effects {
		cd.Effects = append(cd.Effects, effectToDoc(e))
	}
	for _, g := range c.GainEnvelope {
		cd.GainEnvelope = append(cd.GainEnvelope, GainPointDoc{T: g.T, Gain: g.Gain})
	}
	return cd
}

func effectToDoc(e Effect) EffectDoc {
	ed := EffectDoc{
		Type:      string(e.Kind),
		Params:    map[string]any{},
		Keyframes: make([]KeyframeDoc, 0, len(e.Keyframes)),
	}
	switch e.Kind {
	case EffectMosaic:
		ed.Params["blocks"] = e.Mosaic.Blocks
	case EffectBlur:
		ed.Params["radius"] = e.Blur.Radius
	}
	for _, k := range e.Keyframes {
		ed.Keyframes = append(ed.Keyframes, KeyframeDoc{T: k.T, X: k.X, Y: k.Y, W: k.W, H: k.H})
	}
	return ed
}

// FromDocument rebuilds the live model, validating the schema version and
// every effect kind. Loads are strict: an unknown effect type fails rather
// than being dropped silently.
func FromDocument(doc Document) (*Project, error) {
	if doc.Version != "" && doc.Version != Version {
		return nil, fmt.Errorf("unsupported project version %q", doc.Version)
	}
	p := &Project{
		Settings: Settings{
			FPS:                 doc.Project.FPS,
			Width:               doc.Project.Resolution[0],
			Height:              doc.Project.Resolution[1],
			AutosaveIntervalSec: doc.Project.AutosaveIntervalSec,
			UIScale:             doc.Project.UIScale,
		},
		Metadata: copyMeta(doc.Metadata),
		Version:  Version,
	}
	if p.Settings.FPS <= 0 {
		p.Settings.FPS = DefaultSettings().FPS
	}
	for _, ad := range doc.Assets {
		if err := p.AddAsset(&Asset{
			ID:       ad.ID,
			Path:     ad.Path,
			Kind:     MediaKind(ad.Type),
			Metadata: copyMeta(ad.Metadata),
		}); err != nil {
			return nil, err
		}
	}
	for _, td := range doc.Tracks {
		tr := &Track{ID: td.ID, Kind: MediaKind(td.Type), Muted: td.Muted, Locked: td.Locked}
		for _, cd := range td.Clips {
			c, err := clipFromDoc(cd)
			if err != nil {
				return nil, fmt.Errorf("track %q: %w", td.ID, err)
			}
			tr.Clips = append(tr.Clips, c)
		}
		tr.SortClips()
		if err := p.AddTrack(tr); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func clipFromDoc(cd ClipDoc) (*Clip, error) {
	c := &Clip{
		ID:      cd.ID,
		AssetID: cd.Asset,
		Start:   cd.Start,
		In:      cd.In,
		Out:     cd.Out,
		Muted:   cd.Muted,
		Locked:  cd.Locked,
	}
	for _, ed := range cd.Effects {
		e, err := effectFromDoc(ed)
		if err != nil {
			return nil, fmt.Errorf("clip %q: %w", cd.ID, err)
		}
		c.Effects = append(c.Effects, e)
	}
	for _, gd := range cd.GainEnvelope {
		c.GainEnvelope = append(c.GainEnvelope, GainPoint{T: gd.T, Gain: gd.Gain})
	}
	return c, nil
}

func effectFromDoc(ed EffectDoc) (Effect, error) {
	kfs := make([]Keyframe, 0, len(ed.Keyframes))
	for _, kd := range ed.Keyframes {
		kfs = append(kfs, Keyframe{T: kd.T, X: kd.X, Y: kd.Y, W: kd.W, H: kd.H})
	}
	switch EffectKind(ed.Type) {
	case EffectMosaic:
		return NewMosaic(intParam(ed.Params, "blocks", DefaultMosaicBlocks), kfs...), nil
	case EffectBlur:
		return NewBlur(intParam(ed.Params, "radius", DefaultBlurRadius), kfs...), nil
	default:
		return Effect{}, fmt.Errorf("unknown effect type %q", ed.Type)
	}
}

// intParam reads a numeric param that JSON decoding may have produced as
// float64 or that in-process construction left as int.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Save writes the project to path atomically (temp file + rename).
func Save(path string, p *Project) error {
	b, err := json.MarshalIndent(ToDocument(p), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads and validates a project file.
func Load(path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	p, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", path, err)
	}
	return p, nil
}
