package export

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	frameMarker = regexp.MustCompile(`frame=\s*(\d+)`)
	timeMarker  = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// parseProgress extracts a fractional encode progress estimate from one
// encoder diagnostic line, preferring the frame counter over the
// timestamp.
func parseProgress(line string, totalFrames int, duration float64) (float64, bool) {
	if m := frameMarker.FindStringSubmatch(line); m != nil && totalFrames > 0 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return clamp01(float64(n) / float64(totalFrames)), true
		}
	}
	if m := timeMarker.FindStringSubmatch(line); m != nil && duration > 0 {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.ParseFloat(m[3], 64)
		elapsed := float64(hours)*3600 + float64(minutes)*60 + seconds
		return clamp01(elapsed / duration), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scanDiagnostics splits on carriage returns as well as newlines, since
// encoder stats lines rewrite themselves in place.
func scanDiagnostics(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanDiagnostics

// lineTail keeps the most recent diagnostic lines for error reports.
// The reader goroutine owns it until its done channel closes.
type lineTail struct {
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}
