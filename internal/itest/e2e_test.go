//go:build integration

package itest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avroom/reelcut/internal/domain/timeline"
	"github.com/avroom/reelcut/internal/export"
	"github.com/avroom/reelcut/internal/importer"
	"github.com/avroom/reelcut/internal/pipeline"
	"github.com/avroom/reelcut/internal/project"
)

func testApp(t *testing.T) *pipeline.App {
	t.Helper()
	app, err := pipeline.New(pipeline.Config{
		CacheCapacity:   32,
		AudioSampleRate: 48000,
		Log:             zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestImportAndInspect(t *testing.T) {
	tmp := t.TempDir()
	video := filepath.Join(tmp, "pattern.mp4")
	tone := filepath.Join(tmp, "tone.wav")
	synthVideo(t, video, 4)
	synthAudio(t, tone, 4)

	app := testApp(t)
	projPath := filepath.Join(tmp, "cut.json")
	if _, err := app.NewProject(projPath); err != nil {
		t.Fatalf("new project: %v", err)
	}

	res, err := app.Import(context.Background(), projPath, video, tone)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings: %v", res.Warnings)
	}
	if len(res.Assets) != 2 || res.Assets[0].ID != "v1" || res.Assets[1].ID != "a2" {
		t.Fatalf("assets = %+v", res.Assets)
	}
	meta := res.Assets[0].Metadata
	if meta["width"] != 640 || meta["height"] != 360 {
		t.Fatalf("video metadata = %v", meta)
	}
	if _, err := os.Stat(importer.ThumbnailPath(video)); err != nil {
		t.Fatalf("thumbnail sidecar: %v", err)
	}
	if _, err := os.Stat(importer.WaveformPath(tone)); err != nil {
		t.Fatalf("waveform sidecar: %v", err)
	}

	sum, err := app.Inspect(projPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if sum.Assets != 2 {
		t.Fatalf("inspect assets = %d, want 2", sum.Assets)
	}
}

func TestExportEndToEnd(t *testing.T) {
	tmp := t.TempDir()
	video := filepath.Join(tmp, "pattern.mp4")
	tone := filepath.Join(tmp, "tone.wav")
	synthVideo(t, video, 4)
	synthAudio(t, tone, 4)

	app := testApp(t)
	projPath := filepath.Join(tmp, "cut.json")
	if _, err := app.NewProject(projPath); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Import(context.Background(), projPath, video, tone); err != nil {
		t.Fatalf("import: %v", err)
	}

	// Lay out a 2 s timeline: the middle of the pattern plus the tone.
	p, err := project.Load(projPath)
	if err != nil {
		t.Fatal(err)
	}
	eng := timeline.New(p)
	eng.InsertClip("t1", &project.Clip{ID: "c1", AssetID: "v1", Start: 0, In: 1, Out: 3})
	eng.InsertClip("t2", &project.Clip{ID: "c2", AssetID: "a2", Start: 0, In: 0, Out: 2})
	if err := project.Save(projPath, p); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(tmp, "out.mp4")
	var mu sync.Mutex
	var progress []float64
	cb := func(_ export.State, v float64) {
		mu.Lock()
		progress = append(progress, v)
		mu.Unlock()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	req := export.Request{OutputPath: out, Preset: "draft_720p"}
	if err := app.ExportProject(ctx, projPath, req, cb); err != nil {
		t.Fatalf("export: %v", err)
	}

	if w, h := probeResolution(t, out); w != 1280 || h != 720 {
		t.Fatalf("output resolution = %dx%d, want 1280x720", w, h)
	}
	if d := probeDurationSeconds(t, out); d < 1.8 || d > 2.3 {
		t.Fatalf("output duration = %v, want ~2s", d)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 || progress[len(progress)-1] != 1 {
		t.Fatalf("progress = %v, want trailing 1.0", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, progress)
		}
	}
}

func TestExportCancelRemovesOutput(t *testing.T) {
	tmp := t.TempDir()
	video := filepath.Join(tmp, "pattern.mp4")
	synthVideo(t, video, 4)

	app := testApp(t)
	projPath := filepath.Join(tmp, "cut.json")
	if _, err := app.NewProject(projPath); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Import(context.Background(), projPath, video); err != nil {
		t.Fatalf("import: %v", err)
	}
	p, err := project.Load(projPath)
	if err != nil {
		t.Fatal(err)
	}
	timeline.New(p).InsertClip("t1", &project.Clip{ID: "c1", AssetID: "v1", Start: 0, In: 0, Out: 4})
	if err := project.Save(projPath, p); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	cb := func(export.State, float64) { once.Do(cancel) }

	out := filepath.Join(tmp, "out.mp4")
	req := export.Request{OutputPath: out, Preset: "draft_720p"}
	err = app.ExportProject(ctx, projPath, req, cb)
	if !errors.Is(err, export.ErrCancelled) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("partial output left behind")
	}
}
