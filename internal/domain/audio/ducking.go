package audio

import (
	"errors"
	"math"
)

// windowDur is the side-chain analysis window length.
const windowDur = 0.01 // 10ms

// DuckingParams shape the side-chain response. All gains are dB; Attack
// and Release are time constants in seconds for the dB-domain smoother.
type DuckingParams struct {
	Threshold  float64 // dBFS level above which ducking engages
	BaseGainDB float64 // gain applied while the voice is quiet
	Slope      float64 // dB of attenuation per dB above threshold
	MinGainDB  float64 // attenuation floor
	Attack     float64 // smoothing when gain is falling
	Release    float64 // smoothing when gain is rising
}

func DefaultDuckingParams() DuckingParams {
	return DuckingParams{
		Threshold:  -30,
		BaseGainDB: 0,
		Slope:      1,
		MinGainDB:  -12,
		Attack:     0.05,
		Release:    0.3,
	}
}

var ErrShapeMismatch = errors.New("voice and music buffers must match")

// rmsDB is the RMS level of the window in dBFS, floored to avoid -inf on
// silence.
func rmsDB(samples []float32) float64 {
	if len(samples) == 0 {
		return -120
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1e-12 {
		rms = 1e-12
	}
	return 20 * math.Log10(rms)
}

// ApplyDucking attenuates music wherever voice is loud. Both buffers must
// have the same length and channel count. Per 10ms window: the voice RMS
// level above Threshold sets a target gain of
// BaseGainDB - Slope*(level-Threshold), floored at MinGainDB; quiet
// windows target BaseGainDB. The running gain follows the target through
// an exponential smoother in the dB domain, with the Attack constant while
// falling and Release while rising, and the window of music is scaled by
// the smoothed gain converted to linear.
func ApplyDucking(voice, music []float32, channels, rate int, params DuckingParams) ([]float32, error) {
	if len(voice) != len(music) {
		return nil, ErrShapeMismatch
	}
	if channels < 1 || rate <= 0 {
		return nil, ErrShapeMismatch
	}

	frameSamples := int(float64(rate)*windowDur) * channels
	if frameSamples < channels {
		frameSamples = channels
	}

	attackCoeff := smoothingCoeff(params.Attack)
	releaseCoeff := smoothingCoeff(params.Release)

	out := make([]float32, len(music))
	gainDB := params.BaseGainDB

	for i := 0; i < len(music); i += frameSamples {
		end := i + frameSamples
		if end > len(music) {
			end = len(music)
		}

		level := rmsDB(voice[i:end])
		targetDB := params.BaseGainDB
		if level > params.Threshold {
			targetDB = params.BaseGainDB - params.Slope*(level-params.Threshold)
			if targetDB < params.MinGainDB {
				targetDB = params.MinGainDB
			}
		}

		coeff := releaseCoeff
		if targetDB < gainDB {
			coeff = attackCoeff
		}
		gainDB = coeff*(gainDB-targetDB) + targetDB

		g := float32(math.Pow(10, gainDB/20))
		for j := i; j < end; j++ {
			out[j] = music[j] * g
		}
	}
	return out, nil
}

// smoothingCoeff derives the per-window smoothing factor from a time
// constant: exp(-windowDur/tau). A non-positive tau disables smoothing.
func smoothingCoeff(tau float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-windowDur / tau)
}
