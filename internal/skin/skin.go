// Package skin derives heuristic skin metrics from raw pixel statistics.
//
// The scores are fixed linear combinations of brightness, contrast, chroma,
// texture and redness measured over the whole frame. They are not a
// calibrated dermatological model and carry no accuracy guarantee.
package skin

import (
	"errors"
	"fmt"
	"math"

	"github.com/vbonduro/glowly/internal/domain"
)

var (
	ErrEmptyImage  = errors.New("image has no pixels")
	ErrShortBuffer = errors.New("pixel buffer shorter than width*height*4")
)

// Metric keys, in the order Analyze reports them.
const (
	KeyHydration   = "hydration"
	KeyOil         = "oil"
	KeySensitivity = "sensitivity"
	KeyTone        = "tone"
	KeyBarrier     = "barrier"
)

// Report is the outcome of one analysis.
type Report struct {
	Metrics []domain.Metric
	Summary string
}

// Scores are the unrounded, clamped values the metrics and narrative are
// built from.
type Scores struct {
	Hydration   float64
	Oil         float64
	Sensitivity float64
	Tone        float64
	Barrier     float64
}

// stats holds the frame-level quantities the scores are derived from.
type stats struct {
	avgBrightness float64
	contrast      float64
	avgChroma     float64
	smoothness    float64
	rednessTilt   float64
}

// Analyze reduces an RGBA buffer (4 bytes per pixel, row-major) to five
// 0-100 scores. Alpha is ignored.
func Analyze(pix []byte, width, height int) (*Report, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	n := width * height
	if len(pix) < n*4 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(pix), n*4)
	}

	s := measure(pix[:n*4], n)
	return s.scores().report(), nil
}

func measure(pix []byte, n int) stats {
	var redSum, greenSum, blueSum float64
	var brightnessSum, brightnessSqSum, chromaSum, textureDelta float64

	for i := 0; i < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])

		redSum += r
		greenSum += g
		blueSum += b

		brightness := (r + g + b) / 3 / 255
		brightnessSum += brightness
		brightnessSqSum += brightness * brightness

		chromaSum += (max(r, g, b) - min(r, g, b)) / 255

		neutral := (r + g + b) / 3
		textureDelta += math.Abs(r-neutral) + math.Abs(g-neutral) + math.Abs(b-neutral)
	}

	count := float64(n)
	avgRed := redSum / count / 255
	avgGreen := greenSum / count / 255
	avgBlue := blueSum / count / 255
	avgBrightness := brightnessSum / count
	variance := brightnessSqSum/count - avgBrightness*avgBrightness
	texture := math.Min(1, textureDelta/(count*255*1.5))

	return stats{
		avgBrightness: avgBrightness,
		contrast:      math.Min(1, math.Sqrt(math.Max(0, variance))*1.6),
		avgChroma:     chromaSum / count,
		smoothness:    clamp01(1 - texture),
		rednessTilt:   clamp01(avgRed - (avgGreen+avgBlue)/2),
	}
}

func (s stats) scores() Scores {
	return Scores{
		Hydration:   clamp100((1-s.avgBrightness)*115 + s.smoothness*20),
		Oil:         clamp100(s.avgBrightness*120 + s.avgChroma*25),
		Sensitivity: clamp100(s.rednessTilt*160 + s.contrast*25),
		Tone:        clamp100((1-s.contrast)*120 - s.rednessTilt*30),
		Barrier:     clamp100(s.smoothness*130 - s.contrast*20),
	}
}

func (sc Scores) report() *Report {
	return &Report{
		Metrics: []domain.Metric{
			{
				Key:   KeyHydration,
				Label: "Hydration support",
				Value: round(sc.Hydration),
				Summary: pick(sc.Hydration > 65,
					"Feels cushioned. Maintain with humectants and breathable occlusives.",
					"Skin looks thirsty. Layer humectants then seal with emollients."),
			},
			{
				Key:   KeyOil,
				Label: "Oil balance",
				Value: round(sc.Oil),
				Summary: pick(sc.Oil > 60,
					"Sebum is more active. Think balancing cleansers and light gel textures.",
					"Oil flow looks calm. Cream textures are safe."),
			},
			{
				Key:   KeySensitivity,
				Label: "Sensitivity risk",
				Value: round(sc.Sensitivity),
				Summary: pick(sc.Sensitivity > 55,
					"Redness shows up, so buffer actives and add soothing botanicals.",
					"Barrier looks calm. Introduce actives gradually to keep it that way."),
			},
			{
				Key:   KeyTone,
				Label: "Tone evenness",
				Value: round(sc.Tone),
				Summary: pick(sc.Tone > 60,
					"Tone reads uniform with subtle warmth.",
					"Some uneven tone. Think gentle exfoliation + brightening antioxidants."),
			},
			{
				Key:   KeyBarrier,
				Label: "Barrier strength",
				Value: round(sc.Barrier),
				Summary: pick(sc.Barrier > 65,
					"Barrier looks resilient; maintain with ceramides + peptides.",
					"Could use reinforcement. Focus on ceramides, cholesterol, fatty acids."),
			},
		},
		Summary: sc.narrative(),
	}
}

func (sc Scores) narrative() string {
	hydration := "dehydrated"
	switch {
	case sc.Hydration > 70:
		hydration = "well cushioned"
	case sc.Hydration > 50:
		hydration = "balanced"
	}

	oil := "even"
	switch {
	case sc.Oil > 65:
		oil = "luminous"
	case sc.Oil < 40:
		oil = "velvety-matte"
	}

	sensitivity := pick(sc.Sensitivity > 60, "easily triggered", "mostly calm")
	tone := pick(sc.Tone > 60, "even", "slightly patchy")
	barrier := pick(sc.Barrier > 60, "supported", "needing more reinforcement")

	return fmt.Sprintf("Complexion looks %s, %s, and %s with a %s barrier that is %s.",
		hydration, oil, tone, sensitivity, barrier)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func round(v float64) int { return int(math.Round(v)) }

func clamp01(v float64) float64 { return math.Min(1, math.Max(0, v)) }

func clamp100(v float64) float64 { return math.Min(100, math.Max(0, v)) }
