package project

// Keyframe positions an effect's region at a moment of clip-local time.
// X, Y, W, H are normalized to [0,1] relative to the frame.
type Keyframe struct {
	T float64
	X float64
	Y float64
	W float64
	H float64
}

// GainPoint is one node of a clip's gain envelope. T is clip-local seconds,
// Gain is a linear scalar.
type GainPoint struct {
	T    float64
	Gain float64
}

type EffectKind string

const (
	EffectMosaic EffectKind = "mosaic"
	EffectBlur   EffectKind = "blur"
)

const (
	DefaultMosaicBlocks = 24
	DefaultBlurRadius   = 11
)

type MosaicParams struct {
	Blocks int
}

type BlurParams struct {
	Radius int
}

// Effect is a tagged variant over the closed set of effect kinds: only the
// params struct matching Kind is meaningful. Keyframes describe the
// region over clip-local time and are kept ascending by T.
type Effect struct {
	Kind      EffectKind
	Mosaic    MosaicParams
	Blur      BlurParams
	Keyframes []Keyframe
}

func NewMosaic(blocks int, keyframes ...Keyframe) Effect {
	if blocks <= 0 {
		blocks = DefaultMosaicBlocks
	}
	return Effect{Kind: EffectMosaic, Mosaic: MosaicParams{Blocks: blocks}, Keyframes: keyframes}
}

func NewBlur(radius int, keyframes ...Keyframe) Effect {
	if radius <= 0 {
		radius = DefaultBlurRadius
	}
	return Effect{Kind: EffectBlur, Blur: BlurParams{Radius: radius}, Keyframes: keyframes}
}

// Clone returns a copy whose keyframe list does not alias the original.
func (e Effect) Clone() Effect {
	e.Keyframes = append([]Keyframe(nil), e.Keyframes...)
	return e
}
