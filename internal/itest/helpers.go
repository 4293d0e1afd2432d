//go:build integration

// Package itest exercises the assembled pipeline against real ffmpeg
// binaries. Fixtures are synthesized from lavfi sources so the repo
// carries no media files.
package itest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate go.mod")
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return root
}

// synthVideo renders a silent 640x360 test-pattern clip.
func synthVideo(t *testing.T, path string, seconds int) {
	t.Helper()
	runFixture(t,
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=duration=%d:size=640x360:rate=30", seconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		path,
	)
}

// synthAudio renders a 440 Hz sine tone.
func synthAudio(t *testing.T, path string, seconds int) {
	t.Helper()
	runFixture(t,
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%d", seconds),
		path,
	)
}

func runFixture(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", append([]string{"-y", "-v", "error"}, args...)...)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
}

func probeDurationSeconds(t *testing.T, path string) float64 {
	t.Helper()
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe: %v\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse duration %q: %v", s, err)
	}
	return sec
}

func probeResolution(t *testing.T, path string) (int, int) {
	t.Helper()
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe: %v\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		t.Fatalf("parse resolution %q: %v", s, err)
	}
	return w, h
}
