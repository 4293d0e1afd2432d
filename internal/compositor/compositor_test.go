package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"

	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/project"
)

type decodeCall struct {
	assetID string
	seconds float64
}

// fakeDecoder serves synthetic frames per asset id.
type fakeDecoder struct {
	frames map[string]*image.RGBA
	calls  []decodeCall
	err    error
}

func (f *fakeDecoder) Probe(context.Context, string) (ports.ProbeInfo, error) {
	return ports.ProbeInfo{}, nil
}

func (f *fakeDecoder) VideoFrameAt(_ context.Context, assetID, _ string, seconds float64) (ports.VideoFrame, error) {
	f.calls = append(f.calls, decodeCall{assetID: assetID, seconds: seconds})
	if f.err != nil {
		return ports.VideoFrame{}, f.err
	}
	return ports.VideoFrame{PTS: seconds, Image: f.frames[assetID]}, nil
}

func (f *fakeDecoder) AudioSegment(context.Context, string, string, float64, float64) (ports.AudioBuffer, error) {
	return ports.AudioBuffer{}, errors.New("not implemented")
}

func (f *fakeDecoder) Close() error { return nil }

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func twoToneFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func testProject(w, h int) *project.Project {
	p := project.New()
	p.Settings.Width = w
	p.Settings.Height = h
	return p
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestRenderFrameEmptyTimelineIsBackground(t *testing.T) {
	p := testProject(8, 8)
	dec := &fakeDecoder{}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := img.RGBAAt(4, 4); got != (color.RGBA{A: 255}) {
		t.Fatalf("background pixel = %v, want black", got)
	}
	if len(dec.calls) != 0 {
		t.Fatalf("decode calls = %d, want 0", len(dec.calls))
	}
}

func TestRenderFramePaintsActiveClip(t *testing.T) {
	p := testProject(8, 8)
	p.Assets = []*project.Asset{{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo}}
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{ID: "c1", AssetID: "v1", Start: 1, In: 2, Out: 4},
		},
	}}
	dec := &fakeDecoder{frames: map[string]*image.RGBA{"v1": solidFrame(8, 8, red)}}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 2.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := img.RGBAAt(3, 3); got != red {
		t.Fatalf("pixel = %v, want clip colour", got)
	}
	if len(dec.calls) != 1 {
		t.Fatalf("decode calls = %d, want 1", len(dec.calls))
	}
	// Clip-local time folds in the in point.
	if call := dec.calls[0]; call.assetID != "v1" || call.seconds != 3.0 {
		t.Fatalf("decode call = %+v, want v1 at 3.0", call)
	}
}

func TestRenderFrameClipWindow(t *testing.T) {
	p := testProject(8, 8)
	p.Assets = []*project.Asset{{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo}}
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{ID: "c1", AssetID: "v1", Start: 1, In: 0, Out: 2},
		},
	}}

	tests := []struct {
		name    string
		seconds float64
		decoded bool
	}{
		{"before start", 0.5, false},
		{"at start", 1.0, true},
		{"inside", 2.5, true},
		{"at end is exclusive", 3.0, false},
		{"after end", 4.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &fakeDecoder{frames: map[string]*image.RGBA{"v1": solidFrame(8, 8, red)}}
			c := New(p, dec, zerolog.Nop())
			if _, err := c.RenderFrame(context.Background(), tt.seconds); err != nil {
				t.Fatalf("RenderFrame: %v", err)
			}
			if got := len(dec.calls) == 1; got != tt.decoded {
				t.Fatalf("decoded = %v, want %v", got, tt.decoded)
			}
		})
	}
}

func TestRenderFrameSkipsMutedAndNonVideoTracks(t *testing.T) {
	p := testProject(8, 8)
	p.Assets = []*project.Asset{
		{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo},
		{ID: "a1", Path: "a.wav", Kind: project.MediaAudio},
	}
	p.Tracks = []*project.Track{
		{
			ID: "video_1", Kind: project.MediaVideo, Muted: true,
			Clips: []*project.Clip{{ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 10}},
		},
		{
			ID: "audio_1", Kind: project.MediaAudio,
			Clips: []*project.Clip{{ID: "c2", AssetID: "a1", Start: 0, In: 0, Out: 10}},
		},
	}
	dec := &fakeDecoder{frames: map[string]*image.RGBA{"v1": solidFrame(8, 8, red)}}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(dec.calls) != 0 {
		t.Fatalf("decode calls = %d, want 0", len(dec.calls))
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{A: 255}) {
		t.Fatalf("pixel = %v, want background", got)
	}
}

func TestRenderFrameLaterTrackOverwrites(t *testing.T) {
	p := testProject(8, 8)
	p.Assets = []*project.Asset{
		{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo},
		{ID: "v2", Path: "b.mp4", Kind: project.MediaVideo},
	}
	p.Tracks = []*project.Track{
		{ID: "video_1", Kind: project.MediaVideo,
			Clips: []*project.Clip{{ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 10}}},
		{ID: "video_2", Kind: project.MediaVideo,
			Clips: []*project.Clip{{ID: "c2", AssetID: "v2", Start: 0, In: 0, Out: 10}}},
	}
	dec := &fakeDecoder{frames: map[string]*image.RGBA{
		"v1": solidFrame(8, 8, red),
		"v2": solidFrame(8, 8, blue),
	}}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 5.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := img.RGBAAt(4, 4); got != blue {
		t.Fatalf("pixel = %v, want the later track's colour", got)
	}
	if len(dec.calls) != 2 {
		t.Fatalf("decode calls = %d, want 2", len(dec.calls))
	}
}

func TestRenderFrameSkipsUnknownAsset(t *testing.T) {
	p := testProject(8, 8)
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{ID: "c1", AssetID: "ghost", Start: 0, In: 0, Out: 10},
		},
	}}
	dec := &fakeDecoder{}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(dec.calls) != 0 {
		t.Fatalf("decode calls = %d, want 0", len(dec.calls))
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{A: 255}) {
		t.Fatalf("pixel = %v, want background", got)
	}
}

func TestRenderFrameScalesFrameToCanvas(t *testing.T) {
	p := testProject(16, 16)
	p.Assets = []*project.Asset{{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo}}
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 10},
		},
	}}
	dec := &fakeDecoder{frames: map[string]*image.RGBA{"v1": solidFrame(4, 4, red)}}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	for _, pnt := range []image.Point{{0, 0}, {15, 0}, {0, 15}, {15, 15}, {8, 8}} {
		if got := img.RGBAAt(pnt.X, pnt.Y); got != red {
			t.Fatalf("pixel %v = %v, want scaled clip colour", pnt, got)
		}
	}
}

func TestRenderFrameAppliesEffectStack(t *testing.T) {
	p := testProject(16, 16)
	p.Assets = []*project.Asset{{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo}}
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{
				ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 10,
				Effects: []project.Effect{project.NewMosaic(16)},
			},
		},
	}}
	dec := &fakeDecoder{frames: map[string]*image.RGBA{"v1": twoToneFrame(16, 16)}}
	c := New(p, dec, zerolog.Nop())

	img, err := c.RenderFrame(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	// A full-frame mosaic with block size 16 collapses the two-tone
	// frame to one uniform colour.
	want := img.RGBAAt(0, 0)
	if got := img.RGBAAt(15, 15); got != want {
		t.Fatalf("corners differ after mosaic: %v vs %v", want, got)
	}
}

func TestRenderFrameDecodeFailureAborts(t *testing.T) {
	p := testProject(8, 8)
	p.Assets = []*project.Asset{{ID: "v1", Path: "a.mp4", Kind: project.MediaVideo}}
	p.Tracks = []*project.Track{{
		ID:   "video_1",
		Kind: project.MediaVideo,
		Clips: []*project.Clip{
			{ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 10},
		},
	}}
	boom := errors.New("decode blew up")
	dec := &fakeDecoder{err: boom}
	c := New(p, dec, zerolog.Nop())

	if _, err := c.RenderFrame(context.Background(), 1.0); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped decode failure", err)
	}
}
