package timecode

import "testing"

func TestTickRoundTrip(t *testing.T) {
	// Any value that originated as whole ticks must survive the
	// seconds round trip exactly.
	ticks := []int64{0, 1, 2, 3, 29, 90000, 90001, 123456789, 3000, 2999, 1351350000}
	for _, n := range ticks {
		if got := ToTicks(ToSeconds(n)); got != n {
			t.Fatalf("round trip %d ticks -> %v s -> %d ticks", n, ToSeconds(n), got)
		}
	}
}

func TestToTicksRounds(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    int64
	}{
		{"zero", 0, 0},
		{"one second", 1, 90000},
		{"half tick up", 1.0/180000.0 + 1e-12, 1},
		{"one frame at 30fps", 1.0 / 30.0, 3000},
		{"negative", -1, -90000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToTicks(tt.seconds); got != tt.want {
				t.Fatalf("ToTicks(%v) = %d, want %d", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFrameTicks(t *testing.T) {
	tests := []struct {
		name string
		fps  float64
		mult int
		want int64
	}{
		{"30fps one frame", 30, 1, 3000},
		{"25fps one frame", 25, 1, 3600},
		{"30fps five frames", 30, 5, 15000},
		{"zero fps falls back to 1fps", 0, 1, 90000},
		{"zero multiple clamps", 30, 0, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameTicks(tt.fps, tt.mult); got != tt.want {
				t.Fatalf("FrameTicks(%v, %d) = %d, want %d", tt.fps, tt.mult, got, tt.want)
			}
		})
	}
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		name     string
		ticks    int64
		interval int64
		want     int64
	}{
		{"already on grid", 6000, 3000, 6000},
		{"rounds down", 6100, 3000, 6000},
		{"rounds up", 7600, 3000, 9000},
		{"zero interval passes through", 1234, 0, 1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapToGrid(tt.ticks, tt.interval); got != tt.want {
				t.Fatalf("SnapToGrid(%d, %d) = %d, want %d", tt.ticks, tt.interval, got, tt.want)
			}
		})
	}
}

func TestPlayheadClampsNegative(t *testing.T) {
	var p Playhead
	p.Seek(12.5)
	if got := p.Seconds(); got != 12.5 {
		t.Fatalf("Seconds() = %v, want 12.5", got)
	}
	p.Seek(-3)
	if got := p.Ticks(); got != 0 {
		t.Fatalf("Ticks() after negative seek = %d, want 0", got)
	}
}
