package export

import "sort"

// Preset maps a named export target to encoder settings.
type Preset struct {
	Name         string
	Width        int
	Height       int
	CRF          int
	SpeedPreset  string
	AudioBitrate string
}

var presets = map[string]Preset{
	"draft_720p": {
		Name:         "draft_720p",
		Width:        1280,
		Height:       720,
		CRF:          28,
		SpeedPreset:  "veryfast",
		AudioBitrate: "128k",
	},
	"standard_1080p": {
		Name:         "standard_1080p",
		Width:        1920,
		Height:       1080,
		CRF:          23,
		SpeedPreset:  "fast",
		AudioBitrate: "192k",
	},
}

func PresetByName(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
