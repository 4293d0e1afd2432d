// Package ffmpeg adapts the ports.Decoder and ports.Encoder contracts
// onto external ffmpeg/ffprobe processes: rawvideo RGBA and f32le PCM
// over pipes, container metadata via ffprobe JSON.
package ffmpeg

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avroom/reelcut/internal/ports"
	"github.com/avroom/reelcut/internal/timecode"
)

// DecodeError reports a failed decode or probe for one asset.
type DecodeError struct {
	AssetID string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.AssetID, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.AssetID, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type assetStreams struct {
	path  string
	info  ports.ProbeInfo
	video *ports.VideoStream
	audio *ports.AudioStream
}

// Decoder shells out to ffmpeg/ffprobe per request. Stream metadata is
// probed lazily per asset id and kept for the Decoder's lifetime; one
// mutex serializes all public operations so at most one decode runs at
// a time and the registries and frame cache stay consistent.
type Decoder struct {
	mu      sync.Mutex
	ffmpeg  string
	ffprobe string
	assets  map[string]*assetStreams
	cache   *frameCache
	log     zerolog.Logger
}

func NewDecoder(ffmpegPath, ffprobePath string, cacheCapacity int, log zerolog.Logger) *Decoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Decoder{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		assets:  make(map[string]*assetStreams),
		cache:   newFrameCache(cacheCapacity),
		log:     log,
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Index        int    `json:"index"`
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
		Channels     int    `json:"channels"`
	} `json:"streams"`
}

// Probe reads container metadata. It never touches the per-asset
// registries or the cache.
func (d *Decoder) Probe(ctx context.Context, path string) (ports.ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		return ports.ProbeInfo{}, fmt.Errorf("ffprobe %s: %w\n%s", path, err, exitDetail(err))
	}
	info, err := parseProbe(b)
	if err != nil {
		return ports.ProbeInfo{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return info, nil
}

func parseProbe(b []byte) (ports.ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.ProbeInfo{}, err
	}
	info := ports.ProbeInfo{}
	if d, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			info.Video = append(info.Video, ports.VideoStream{
				Index:  s.Index,
				Width:  s.Width,
				Height: s.Height,
				FPS:    parseRational(s.AvgFrameRate),
			})
		case "audio":
			rate, _ := strconv.Atoi(s.SampleRate)
			info.Audio = append(info.Audio, ports.AudioStream{
				Index:    s.Index,
				Rate:     rate,
				Channels: s.Channels,
			})
		}
	}
	return info, nil
}

// VideoFrameAt returns the first decoded frame at or after seconds.
// The lookup key is the frame-grid tick at or before the request; on a
// miss the stream is decoded forward from the nearest keyframe, every
// decoded frame entering the cache under its own pts tick, and the
// first frame whose tick reaches the request tick is returned (or the
// last decodable frame when the stream ends early).
func (d *Decoder) VideoFrameAt(ctx context.Context, assetID, path string, seconds float64) (ports.VideoFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	as, err := d.ensureAsset(ctx, assetID, path)
	if err != nil {
		return ports.VideoFrame{}, err
	}
	if as.video == nil {
		return ports.VideoFrame{}, &DecodeError{AssetID: assetID, Reason: fmt.Sprintf("video stream not found in %s", path)}
	}
	fps := as.video.FPS
	if fps <= 0 {
		fps = 30
	}

	key := frameTick(seconds, fps)
	if frame, ok := d.cache.get(assetID, key); ok {
		return frame, nil
	}

	d.log.Trace().Str("asset", assetID).Float64("seconds", seconds).Msg("frame cache miss")
	frame, err := d.decodeForward(ctx, as, assetID, seconds, fps)
	if err != nil {
		return ports.VideoFrame{}, err
	}
	d.cache.put(assetID, key, frame)
	return frame, nil
}

// frameTick quantizes a timestamp to the pts tick of its containing
// frame, so lookups and decoded frames share one key grid.
func frameTick(seconds, fps float64) int64 {
	index := int64(seconds * fps)
	return timecode.ToTicks(float64(index) / fps)
}

// keyframeBefore finds the pts of the nearest keyframe at or before
// seconds. Any probe failure degrades to decoding from the start.
func (d *Decoder) keyframeBefore(ctx context.Context, path string, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	cmd := exec.CommandContext(ctx, d.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-skip_frame", "nokey",
		"-show_entries", "frame=pts_time",
		"-of", "csv=p=0",
		"-read_intervals", fmtSeconds(seconds)+"%+#1",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		return 0
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	kf, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(line), ","), 64)
	if err != nil || kf < 0 {
		return 0
	}
	return kf
}

func (d *Decoder) decodeForward(ctx context.Context, as *assetStreams, assetID string, seconds, fps float64) (ports.VideoFrame, error) {
	width, height := as.video.Width, as.video.Height
	if width <= 0 || height <= 0 {
		return ports.VideoFrame{}, &DecodeError{AssetID: assetID, Reason: fmt.Sprintf("video stream in %s has no dimensions", as.path)}
	}

	keyframe := d.keyframeBefore(ctx, as.path, seconds)
	cmd := exec.CommandContext(ctx, d.ffmpeg,
		"-v", "error",
		"-ss", fmtSeconds(keyframe),
		"-i", as.path,
		"-map", "0:v:0",
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return ports.VideoFrame{}, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return ports.VideoFrame{}, fmt.Errorf("start ffmpeg decode: %w", err)
	}

	targetTick := timecode.ToTicks(seconds)
	baseIndex := int64(math.Round(keyframe * fps))
	var (
		last  ports.VideoFrame
		found bool
	)
	for index := baseIndex; ; index++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		if _, err := io.ReadFull(out, img.Pix); err != nil {
			break
		}
		pts := float64(index) / fps
		frame := ports.VideoFrame{PTS: pts, Image: img}
		d.cache.put(assetID, timecode.ToTicks(pts), frame)
		last = frame
		if timecode.ToTicks(pts) >= targetTick {
			found = true
			break
		}
	}
	if found {
		// Stop the stream early; the remainder of the file is not needed.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return last, nil
	}
	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		return ports.VideoFrame{}, fmt.Errorf("decode %s: %w", assetID, err)
	}
	if last.Image != nil {
		return last, nil
	}
	return ports.VideoFrame{}, &DecodeError{
		AssetID: assetID,
		Reason:  fmt.Sprintf("no frame decoded at %ss for %s", fmtSeconds(seconds), as.path),
		Err:     wrapTail(waitErr, stderr),
	}
}

// AudioSegment decodes interleaved float32 samples at the stream's
// native rate and channel count, starting near start. A positive
// duration bounds the read and the result is truncated to exactly
// duration*rate frames; otherwise the stream is read to its end.
func (d *Decoder) AudioSegment(ctx context.Context, assetID, path string, start, duration float64) (ports.AudioBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start < 0 {
		start = 0
	}
	as, err := d.ensureAsset(ctx, assetID, path)
	if err != nil {
		return ports.AudioBuffer{}, err
	}
	if as.audio == nil {
		return ports.AudioBuffer{}, &DecodeError{AssetID: assetID, Reason: fmt.Sprintf("audio stream not found in %s", path)}
	}
	rate := as.audio.Rate
	if rate <= 0 {
		rate = 48000
	}
	channels := as.audio.Channels
	if channels < 1 {
		channels = 1
	}

	cmd := exec.CommandContext(ctx, d.ffmpeg,
		"-v", "error",
		"-ss", fmtSeconds(start),
		"-i", as.path,
		"-map", "0:a:0",
		"-vn", "-sn",
		"-f", "f32le",
		"-",
	)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return ports.AudioBuffer{}, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return ports.AudioBuffer{}, fmt.Errorf("start ffmpeg decode: %w", err)
	}

	var raw []byte
	var waitErr error
	if duration > 0 {
		want := int(duration*float64(rate)) * channels * 4
		buf := make([]byte, want)
		n, _ := io.ReadFull(out, buf)
		raw = buf[:n]
		if n == want {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		} else {
			waitErr = cmd.Wait()
		}
	} else {
		raw, _ = io.ReadAll(out)
		waitErr = cmd.Wait()
	}
	if err := ctx.Err(); err != nil {
		return ports.AudioBuffer{}, fmt.Errorf("decode %s: %w", assetID, err)
	}

	samples := make([]float32, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
	}
	samples = samples[:len(samples)/channels*channels]
	if len(samples) == 0 {
		return ports.AudioBuffer{}, &DecodeError{
			AssetID: assetID,
			Reason:  fmt.Sprintf("no audio decoded from %s", as.path),
			Err:     wrapTail(waitErr, stderr),
		}
	}
	return ports.AudioBuffer{Start: start, Samples: samples, Rate: rate, Channels: channels}, nil
}

// Close drops the per-asset stream registries and the frame cache.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets = make(map[string]*assetStreams)
	d.cache.clear()
	return nil
}

// ensureAsset probes the container on first use and keeps the result.
// Callers hold d.mu.
func (d *Decoder) ensureAsset(ctx context.Context, assetID, path string) (*assetStreams, error) {
	if as, ok := d.assets[assetID]; ok {
		return as, nil
	}
	info, err := d.Probe(ctx, path)
	if err != nil {
		return nil, &DecodeError{AssetID: assetID, Reason: "probe failed", Err: err}
	}
	as := &assetStreams{path: path, info: info}
	if len(info.Video) > 0 {
		as.video = &info.Video[0]
	}
	if len(info.Audio) > 0 {
		as.audio = &info.Audio[0]
	}
	d.assets[assetID] = as
	d.log.Debug().Str("asset", assetID).Str("path", path).
		Int("video_streams", len(info.Video)).Int("audio_streams", len(info.Audio)).
		Msg("opened media streams")
	return as, nil
}

// parseRational parses ffprobe rate strings like "30000/1001" or "25".
func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func exitDetail(err error) string {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return string(ee.Stderr)
	}
	return ""
}

func wrapTail(err error, tail *tailBuffer) error {
	s := strings.TrimSpace(tail.String())
	if err == nil && s == "" {
		return nil
	}
	if err == nil {
		return fmt.Errorf("%s", s)
	}
	if s == "" {
		return err
	}
	return fmt.Errorf("%w\n%s", err, s)
}

// tailBuffer keeps the most recent writes up to limit bytes.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
